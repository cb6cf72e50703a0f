// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"fmt"
	"math"

	"github.com/emer/spikeglm/gauss"
	"github.com/emer/spikeglm/obs"
	"golang.org/x/exp/rand"
)

// MeanFieldUpdate runs one coordinate ascent sweep.  Each synapse update is
// the exact joint optimum of q(A) q(W | A) given all other factors, so the
// lower bound never decreases.
func (ss *SpikeAndSlab) MeanFieldUpdate(ds []*obs.Data) error {
	return ss.postFun(func(post int, rng *rand.Rand) error {
		return ss.mfUpdatePost(ds, post, 1, 1)
	})
}

func (ss *SpikeAndSlab) SVIStep(ds []*obs.Data, minibatchFrac, stepSize float64) error {
	if !(minibatchFrac > 0 && minibatchFrac <= 1) {
		return errorf("minibatch fraction %v not in (0,1]", minibatchFrac)
	}
	if !(stepSize > 0 && stepSize <= 1) {
		return errorf("step size %v not in (0,1]", stepSize)
	}
	return ss.postFun(func(post int, rng *rand.Rand) error {
		return ss.mfUpdatePost(ds, post, 1/minibatchFrac, stepSize)
	})
}

// mfUpdatePost updates the factors of the synapses into post, presynaptic
// neurons in order, keeping E[psi] of post current in a sweep-local buffer.
func (ss *SpikeAndSlab) mfUpdatePost(ds []*obs.Data, post int, scale, step float64) error {
	psis := make([][]float64, len(ds))
	others := make([][]float64, len(ds))
	for i, d := range ds {
		psis[i] = make([]float64, d.T)
		others[i] = make([]float64, d.T)
		ss.Act.MfExpectedPsiNeuron(d, post, psis[i])
	}

	for pre := 0; pre < ss.N; pre++ {
		sy := ss.Syn(pre, post)
		ew := ss.MfExpectedW(pre, post)
		st := gauss.NewStats(ss.B)
		for i, d := range ds {
			oth := others[i]
			for t := range oth {
				oth[t] = psis[i][t] - d.Dot(pre, t, ew)
			}
			ss.Act.AddStats(st, d, post, pre+1, oth, true)
		}

		if err := ss.mfUpdateSyn(sy, pre, post, st, scale, step); err != nil {
			return err
		}

		ew = ss.MfExpectedW(pre, post)
		for i, d := range ds {
			for t := range psis[i] {
				psis[i][t] = others[i][t] + d.Dot(pre, t, ew)
			}
		}
	}
	return nil
}

func (ss *SpikeAndSlab) mfUpdateSyn(sy *Synapse, pre, post int, st *gauss.Stats, scale, step float64) error {
	pr := mfPriorOf(ss.Net, pre, post)
	po, err := gauss.NewPosterior(pr, st, scale)
	if err != nil {
		return fmt.Errorf("synapse %d -> %d: %w", pre, post, err)
	}
	lrho := ss.Net.MfExpectedLogP(pre, post) - ss.Net.MfExpectedLogNotP(pre, post)
	p := gauss.Logistic(gauss.LogOdds(lrho, pr, po))
	cov := po.Cov()

	if step == 1 {
		sy.MfP = p
		copy(sy.MfMu, po.Mu.RawVector().Data)
		sy.MfSigma.CopySym(cov)
		return nil
	}
	sy.MfP = (1-step)*sy.MfP + step*p
	for b := range sy.MfMu {
		sy.MfMu[b] = (1-step)*sy.MfMu[b] + step*po.Mu.AtVec(b)
	}
	cov.ScaleSym(step, cov)
	sy.MfSigma.ScaleSym(1-step, sy.MfSigma)
	sy.MfSigma.AddSym(sy.MfSigma, cov)
	return nil
}

// VLB is the A, W part of the variational lower bound:
//
//	sum over pairs of E[ln p(A)] - E[ln q(A)] + p (E[ln p(W | A = 1)] - E[ln q(W | A = 1)]).
func (ss *SpikeAndSlab) VLB() float64 {
	vlb := 0.0
	for pre := 0; pre < ss.N; pre++ {
		for post := 0; post < ss.N; post++ {
			sy := ss.Syn(pre, post)
			p := sy.MfP
			vlb += gauss.BernoulliNegentropy(p, 1-p, ss.Net.MfExpectedLogP(pre, post), ss.Net.MfExpectedLogNotP(pre, post))
			vlb -= gauss.BernoulliSelfNegentropy(p)
			if p == 0 {
				continue
			}
			ld, err := gauss.LogDet(sy.MfSigma)
			if err != nil {
				return math.Inf(-1)
			}
			lp := gauss.GaussianExpectedLogProb(sy.MfMu, ss.MfExpectedWWTGivenA(pre, post, true),
				ss.Net.MfExpectedMu(pre, post), ss.Net.MfExpectedMuMuT(pre, post),
				ss.Net.MfExpectedSigmaInv(pre, post), ss.Net.MfExpectedLogDetSigma(pre, post))
			vlb += p * (lp - gauss.GaussianSelfNegentropy(ss.B, ld))
		}
	}
	return vlb
}

