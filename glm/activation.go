// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"github.com/emer/spikeglm/gauss"
	"github.com/emer/spikeglm/obs"
	"gonum.org/v1/gonum/mat"
)

// Activation computes the linear predictor psi[t,n] of every neuron from
// the bias and the filtered input through the effective weights, and the
// per-synapse likelihood statistics the weight updates consume.  Methods
// prefixed Mf use expectations under the variational posterior in place
// of the current sample.
type Activation interface {
	// ComputePsi returns the T x N activation of d.
	ComputePsi(d *obs.Data) *mat.Dense

	// ComputePsiNeuron writes the activation of neuron post into dst (length T).
	ComputePsiNeuron(d *obs.Data, post int, dst []float64)

	// Precision is sum_t F[pre][t]' lam_t F[pre][t] for synapse pre -> post.
	Precision(d *obs.Data, pre, post int) *mat.SymDense

	// MeanDotPrecision is sum_t F[pre][t]' (ylam_t - lam_t psiOther_t)
	// for synapse pre -> post, with psiOther the activation of post
	// without this synapse.
	MeanDotPrecision(d *obs.Data, pre, post int, psiOther []float64) *mat.VecDense

	MfExpectedPsi(d *obs.Data) *mat.Dense
	MfExpectedPsiNeuron(d *obs.Data, post int, dst []float64)

	// MfExpectedPsiSq is E[psi^2] per cell.
	MfExpectedPsiSq(d *obs.Data) *mat.Dense
	MfExpectedPsiSqNeuron(d *obs.Data, post int, dst []float64)

	MfPrecision(d *obs.Data, pre, post int) *mat.SymDense
	MfMeanDotPrecision(d *obs.Data, pre, post int, psiOther []float64) *mat.VecDense

	// AddStats accumulates into st the likelihood statistics of index ind
	// of neuron post: 0 is the bias, with a constant covariate of 1, and
	// 1..N the synapse from presynaptic neuron ind-1.  mf selects the
	// expected (mean-field) in place of the sampled representation.
	AddStats(st *gauss.Stats, d *obs.Data, post, ind int, psiOther []float64, mf bool)
}

// LinearActivation is psi = bias + sum_pre F[pre] . WEffective(pre, post),
// plus N(0, eta) noise for noisy neurons.
type LinearActivation struct {
	Model *Model
}

func (ac *LinearActivation) ComputePsi(d *obs.Data) *mat.Dense {
	psi := mat.NewDense(d.T, d.N, nil)
	col := make([]float64, d.T)
	for n := 0; n < d.N; n++ {
		ac.ComputePsiNeuron(d, n, col)
		psi.SetCol(n, col)
	}
	return psi
}

func (ac *LinearActivation) ComputePsiNeuron(d *obs.Data, post int, dst []float64) {
	m := ac.Model
	bias := m.Neurons[post].Bias
	for t := range dst {
		dst[t] = bias
	}
	for pre := 0; pre < m.N; pre++ {
		if !m.Weights.Connected(pre, post) {
			continue
		}
		w := m.Weights.WEffective(pre, post)
		for t := range dst {
			dst[t] += d.Dot(pre, t, w)
		}
	}
}

func (ac *LinearActivation) Precision(d *obs.Data, pre, post int) *mat.SymDense {
	st := gauss.NewStats(d.B)
	ac.AddStats(st, d, post, pre+1, make([]float64, d.T), false)
	return st.Prec
}

func (ac *LinearActivation) MeanDotPrecision(d *obs.Data, pre, post int, psiOther []float64) *mat.VecDense {
	st := gauss.NewStats(d.B)
	ac.AddStats(st, d, post, pre+1, psiOther, false)
	return st.MeanDotPrec
}

func (ac *LinearActivation) MfPrecision(d *obs.Data, pre, post int) *mat.SymDense {
	st := gauss.NewStats(d.B)
	ac.AddStats(st, d, post, pre+1, make([]float64, d.T), true)
	return st.Prec
}

func (ac *LinearActivation) MfMeanDotPrecision(d *obs.Data, pre, post int, psiOther []float64) *mat.VecDense {
	st := gauss.NewStats(d.B)
	ac.AddStats(st, d, post, pre+1, psiOther, true)
	return st.MeanDotPrec
}

func (ac *LinearActivation) MfExpectedPsi(d *obs.Data) *mat.Dense {
	psi := mat.NewDense(d.T, d.N, nil)
	col := make([]float64, d.T)
	for n := 0; n < d.N; n++ {
		ac.MfExpectedPsiNeuron(d, n, col)
		psi.SetCol(n, col)
	}
	return psi
}

func (ac *LinearActivation) MfExpectedPsiNeuron(d *obs.Data, post int, dst []float64) {
	m := ac.Model
	bias := m.Neurons[post].MfBiasMu
	for t := range dst {
		dst[t] = bias
	}
	for pre := 0; pre < m.N; pre++ {
		ew := m.Weights.MfExpectedW(pre, post)
		for t := range dst {
			dst[t] += d.Dot(pre, t, ew)
		}
	}
}

func (ac *LinearActivation) MfExpectedPsiSq(d *obs.Data) *mat.Dense {
	psi := mat.NewDense(d.T, d.N, nil)
	col := make([]float64, d.T)
	for n := 0; n < d.N; n++ {
		ac.MfExpectedPsiSqNeuron(d, n, col)
		psi.SetCol(n, col)
	}
	return psi
}

// MfExpectedPsiSqNeuron uses the independence of the factors of q:
// E[psi^2] = E[psi]^2 + Var(bias) + sum_pre (f' E[ww'] f - (f' E[w])^2).
func (ac *LinearActivation) MfExpectedPsiSqNeuron(d *obs.Data, post int, dst []float64) {
	m := ac.Model
	nrn := &m.Neurons[post]
	mean := make([]float64, d.T)
	for t := range mean {
		mean[t] = nrn.MfBiasMu
		dst[t] = nrn.MfBiasVar
	}
	for pre := 0; pre < m.N; pre++ {
		ew := m.Weights.MfExpectedW(pre, post)
		ewwt := m.Weights.MfExpectedWWT(pre, post)
		for t := range dst {
			f := d.FRow(pre, t)
			fw := dotSlice(f, ew)
			mean[t] += fw
			dst[t] += quadForm(ewwt, f) - fw*fw
		}
	}
	for t := range dst {
		dst[t] += mean[t] * mean[t]
	}
}

func (ac *LinearActivation) AddStats(st *gauss.Stats, d *obs.Data, post, ind int, psiOther []float64, mf bool) {
	m := ac.Model
	one := []float64{1}
	for t := 0; t < d.T; t++ {
		lam, ylam := m.lkhdTarget(d, post, t, mf)
		x := one
		if ind > 0 {
			x = d.FRow(ind-1, t)
		}
		st.AddObs(x, lam, ylam-lam*psiOther[t])
	}
}

func dotSlice(a, b []float64) float64 {
	s := 0.0
	for i, av := range a {
		s += av * b[i]
	}
	return s
}

// quadForm is x' a x.
func quadForm(a mat.Symmetric, x []float64) float64 {
	s := 0.0
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		for j, xj := range x {
			s += xi * a.At(i, j) * xj
		}
	}
	return s
}
