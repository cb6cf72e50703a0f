// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"github.com/emer/spikeglm/gauss"
	"github.com/emer/spikeglm/obs"
)

// lkhdTarget returns, for bin t of neuron post, the precision lam and the
// precision-weighted target ylam of the conditionally Gaussian pseudo
// observation of its linear activation:
//
//	without noise:  lam = omega,    ylam = kappa
//	noisy:          lam = 1 / eta,  ylam = psi / eta
//
// with expectations in place of each quantity when mf is set.
func (m *Model) lkhdTarget(d *obs.Data, post, t int, mf bool) (lam, ylam float64) {
	switch {
	case m.Params.Noise.On && mf:
		ei := m.Neurons[post].MfExpectedEtaInv()
		return ei, ei * d.MfPsiMu.At(t, post)
	case m.Params.Noise.On:
		ei := 1 / m.Neurons[post].Eta
		return ei, ei * d.Psi.At(t, post)
	case mf:
		return d.MfOmega.At(t, post), d.Kappa.At(t, post)
	}
	return d.Omega.At(t, post), d.Kappa.At(t, post)
}

// neuronStats sums the statistics of index ind of neuron post over ds.
// others[i] is the activation of post in ds[i] without index ind.
func (m *Model) neuronStats(ds []*obs.Data, post, ind int, others [][]float64, mf bool) *gauss.Stats {
	dim := m.B
	if ind == 0 {
		dim = 1
	}
	st := gauss.NewStats(dim)
	for i, d := range ds {
		m.Act.AddStats(st, d, post, ind, others[i], mf)
	}
	return st
}
