// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"fmt"

	"github.com/emer/spikeglm/gauss"
	"github.com/emer/spikeglm/obs"
	"golang.org/x/exp/rand"
)

// Resample runs one single-site Gibbs sweep: for every postsynaptic neuron,
// the presynaptic neurons are visited in a random order and each synapse's
// A and W are drawn jointly from their conditional posterior given the
// current auxiliary variables and all other synapses.
func (ss *SpikeAndSlab) Resample(ds []*obs.Data) error {
	return ss.postFun(func(post int, rng *rand.Rand) error {
		return ss.resamplePost(ds, post, rng)
	})
}

// resamplePost sweeps the synapses into post.  psis holds the activation
// of post in each data batch and is only ever written here: each visit
// takes the synapse's contribution out, redraws it, and puts it back.
func (ss *SpikeAndSlab) resamplePost(ds []*obs.Data, post int, rng *rand.Rand) error {
	psis := make([][]float64, len(ds))
	others := make([][]float64, len(ds))
	for i, d := range ds {
		psis[i] = make([]float64, d.T)
		others[i] = make([]float64, d.T)
		ss.Act.ComputePsiNeuron(d, post, psis[i])
	}

	for _, pre := range rng.Perm(ss.N) {
		sy := ss.Syn(pre, post)
		st := gauss.NewStats(ss.B)
		for i, d := range ds {
			oth := others[i]
			copy(oth, psis[i])
			if sy.Connected() {
				for t := range oth {
					oth[t] -= d.Dot(pre, t, sy.W)
				}
			}
			ss.Act.AddStats(st, d, post, pre+1, oth, false)
		}

		if err := ss.resampleSyn(sy, pre, post, st, rng); err != nil {
			return err
		}

		for i, d := range ds {
			copy(psis[i], others[i])
			if sy.Connected() {
				for t := range psis[i] {
					psis[i][t] += d.Dot(pre, t, sy.W)
				}
			}
		}
	}
	return nil
}

// resampleSyn draws A from its posterior odds with W integrated out, then
// W from its Gaussian posterior if connected.
func (ss *SpikeAndSlab) resampleSyn(sy *Synapse, pre, post int, st *gauss.Stats, rng *rand.Rand) error {
	pr, err := priorOf(ss.Net, pre, post)
	if err != nil {
		return fmt.Errorf("synapse %d -> %d prior: %w", pre, post, err)
	}
	po, err := gauss.NewPosterior(pr, st, 1)
	if err != nil {
		return fmt.Errorf("synapse %d -> %d: %w", pre, post, err)
	}
	lo := gauss.LogOdds(gauss.Logit(ss.Net.P(pre, post)), pr, po)
	if !(rng.Float64() < gauss.Logistic(lo)) {
		sy.Disconnect()
		return nil
	}
	sy.A = 1
	po.Sample(rng, sy.W)
	return nil
}
