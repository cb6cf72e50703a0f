// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"fmt"
	"math"

	"github.com/emer/spikeglm/gauss"
	"github.com/emer/spikeglm/obs"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// biasPrior is N(Bias.Mu, Bias.SigmaSq) in natural form.
func (m *Model) biasPrior() (*gauss.Prior, error) {
	bp := &m.Params.Bias
	return gauss.NewPrior([]float64{bp.Mu}, mat.NewSymDense(1, []float64{bp.SigmaSq}))
}

// biasOthers returns the activation of post in each of ds without the bias,
// from the sample (mf false) or the expectation (mf true).
func (m *Model) biasOthers(ds []*obs.Data, post int, mf bool) [][]float64 {
	others := make([][]float64, len(ds))
	nrn := &m.Neurons[post]
	for i, d := range ds {
		oth := make([]float64, d.T)
		bias := nrn.Bias
		if mf {
			m.Act.MfExpectedPsiNeuron(d, post, oth)
			bias = nrn.MfBiasMu
		} else {
			m.Act.ComputePsiNeuron(d, post, oth)
		}
		for t := range oth {
			oth[t] -= bias
		}
		others[i] = oth
	}
	return others
}

// resampleBias draws the bias of post from its Gaussian conditional.
func (m *Model) resampleBias(post int) error {
	pr, err := m.biasPrior()
	if err != nil {
		return err
	}
	st := m.neuronStats(m.Data, post, 0, m.biasOthers(m.Data, post, false), false)
	po, err := gauss.NewPosterior(pr, st, 1)
	if err != nil {
		return fmt.Errorf("bias of neuron %d: %w", post, err)
	}
	x := make([]float64, 1)
	po.Sample(m.Rand, x)
	m.Neurons[post].Bias = x[0]
	return nil
}

// mfUpdateBias sets q(bias) to its optimum given the other factors, with
// likelihood statistics scaled by scale and the damped step of SVI.
func (m *Model) mfUpdateBias(ds []*obs.Data, post int, scale, step float64) error {
	pr, err := m.biasPrior()
	if err != nil {
		return err
	}
	st := m.neuronStats(ds, post, 0, m.biasOthers(ds, post, true), true)
	po, err := gauss.NewPosterior(pr, st, scale)
	if err != nil {
		return fmt.Errorf("bias of neuron %d: %w", post, err)
	}
	nrn := &m.Neurons[post]
	nrn.MfBiasMu = (1-step)*nrn.MfBiasMu + step*po.Mu.AtVec(0)
	nrn.MfBiasVar = (1-step)*nrn.MfBiasVar + step/po.Prec.At(0, 0)
	return nil
}

// biasVLB is E[ln p(bias)] - E[ln q(bias)] for post.
func (m *Model) biasVLB(post int) float64 {
	bp := &m.Params.Bias
	nrn := &m.Neurons[post]
	dm := nrn.MfBiasMu - bp.Mu
	elp := -0.5*math.Log(2*math.Pi*bp.SigmaSq) - 0.5*(nrn.MfBiasVar+dm*dm)/bp.SigmaSq
	return elp - gauss.GaussianSelfNegentropy(1, math.Log(nrn.MfBiasVar))
}

func (m *Model) biasLogPrior(post int) float64 {
	bp := &m.Params.Bias
	return distuv.Normal{Mu: bp.Mu, Sigma: math.Sqrt(bp.SigmaSq)}.LogProb(m.Neurons[post].Bias)
}

func (m *Model) resampleBiasFromMF(post int) {
	nrn := &m.Neurons[post]
	nrn.Bias = distuv.Normal{Mu: nrn.MfBiasMu, Sigma: math.Sqrt(nrn.MfBiasVar), Src: m.Rand}.Rand()
}
