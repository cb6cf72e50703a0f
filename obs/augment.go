// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obs

import (
	"math"

	"github.com/emer/spikeglm/gauss"
	"github.com/emer/spikeglm/pgdraw"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Augmenter is the Polya-Gamma augmented observation model: it holds the
// count Family and converts each batch of counts into the conditionally
// Gaussian pseudo-observations kappa with precisions omega.
type Augmenter struct {
	Family Family
	PG     *pgdraw.Sampler
}

// NewAugmenter returns an Augmenter for fam drawing from rng.
func NewAugmenter(fam Family, rng *rand.Rand) *Augmenter {
	return &Augmenter{Family: fam, PG: pgdraw.NewSampler(rng)}
}

// A returns the first Polya-Gamma parameter, the counts themselves.
func (ag *Augmenter) A(d *Data) *mat.Dense {
	return mat.DenseCopyOf(d.S)
}

// B returns the Polya-Gamma shape per cell: 1 for Bernoulli, S + xi for
// negative binomial.
func (ag *Augmenter) B(d *Data) *mat.Dense {
	b := mat.NewDense(d.T, d.N, nil)
	b.Apply(func(i, j int, v float64) float64 { return ag.Family.B(v) }, d.S)
	return b
}

// Kappa returns a - b/2 per cell.
func (ag *Augmenter) Kappa(d *Data) *mat.Dense {
	k := mat.NewDense(d.T, d.N, nil)
	k.Apply(func(i, j int, v float64) float64 { return v - 0.5*ag.Family.B(v) }, d.S)
	return k
}

// Augment validates the counts of d against the family and allocates its
// auxiliary variables, with omega drawn from PG(b, 0) and q(omega) = PG(b, 0).
func (ag *Augmenter) Augment(d *Data) error {
	if err := CheckCounts(ag.Family, d.S); err != nil {
		return err
	}
	d.Bv = ag.B(d)
	d.Kappa = ag.Kappa(d)
	d.Omega = mat.NewDense(d.T, d.N, nil)
	d.MfC = mat.NewDense(d.T, d.N, nil)
	d.MfOmega = mat.NewDense(d.T, d.N, nil)
	for t := 0; t < d.T; t++ {
		for n := 0; n < d.N; n++ {
			b := d.Bv.At(t, n)
			d.Omega.Set(t, n, ag.PG.Draw(b, 0))
			d.MfOmega.Set(t, n, pgdraw.Mean(b, 0))
		}
	}
	return nil
}

// Resample draws omega[t,n] ~ PG(b[t,n], psi[t,n]) for every cell, where
// psi is the current activation (T x N).
func (ag *Augmenter) Resample(d *Data, psi mat.Matrix) {
	for n := 0; n < d.N; n++ {
		ag.ResampleNeuron(d, n, psi)
	}
}

// ResampleNeuron redraws the omega column of neuron n only.
func (ag *Augmenter) ResampleNeuron(d *Data, n int, psi mat.Matrix) {
	z := mat.Col(nil, n, psi)
	ag.PG.DrawVec(mat.Col(nil, n, d.Bv), z, z)
	d.Omega.SetCol(n, z)
}

// Rvs forward-simulates counts given activation psi.
func (ag *Augmenter) Rvs(psi mat.Matrix) *mat.Dense {
	r, c := psi.Dims()
	s := mat.NewDense(r, c, nil)
	s.Apply(func(i, j int, v float64) float64 { return ag.Family.Rand(v, ag.PG.Rand) }, psi)
	return s
}

// ExpectedS returns the expected counts given activation psi.
func (ag *Augmenter) ExpectedS(psi mat.Matrix) *mat.Dense {
	r, c := psi.Dims()
	s := mat.NewDense(r, c, nil)
	s.Apply(func(i, j int, v float64) float64 { return ag.Family.Mean(v) }, psi)
	return s
}

// StdS returns the standard deviation of the counts given activation psi.
func (ag *Augmenter) StdS(psi mat.Matrix) *mat.Dense {
	r, c := psi.Dims()
	s := mat.NewDense(r, c, nil)
	s.Apply(func(i, j int, v float64) float64 { return ag.Family.Std(v) }, psi)
	return s
}

// LogLikelihood returns the log likelihood of counts s under activation psi,
// summed over all cells.
func (ag *Augmenter) LogLikelihood(s, psi mat.Matrix) float64 {
	r, c := s.Dims()
	ll := 0.0
	for t := 0; t < r; t++ {
		for n := 0; n < c; n++ {
			ll += LogProb(ag.Family, s.At(t, n), psi.At(t, n))
		}
	}
	return ll
}

// MeanFieldUpdate sets q(omega[t,n]) = PG(b, c) with c = sqrt(E[psi^2]),
// the optimum given the current moments of the activation.
func (ag *Augmenter) MeanFieldUpdate(d *Data, mfPsiSq mat.Matrix) {
	for n := 0; n < d.N; n++ {
		ag.MeanFieldUpdateNeuron(d, n, mfPsiSq)
	}
}

// MeanFieldUpdateNeuron updates the q(omega) column of neuron n only.
func (ag *Augmenter) MeanFieldUpdateNeuron(d *Data, n int, mfPsiSq mat.Matrix) {
	for t := 0; t < d.T; t++ {
		c := math.Sqrt(math.Max(mfPsiSq.At(t, n), 0))
		d.MfC.Set(t, n, c)
		d.MfOmega.Set(t, n, pgdraw.Mean(d.Bv.At(t, n), c))
	}
}

// VLB returns the variational lower bound on the log likelihood of d:
// E[ln p(s, omega | psi)] - E[ln q(omega)], given E[psi] and E[psi^2]
// under the current q.  For each cell this is
//
//	LogNorm(s) - b ln 2 + kappa E[psi] - E[omega] E[psi^2] / 2
//	- b ln cosh(c/2) + c^2 E[omega] / 2.
func (ag *Augmenter) VLB(d *Data, mfPsi, mfPsiSq mat.Matrix) float64 {
	vlb := 0.0
	for n := 0; n < d.N; n++ {
		vlb += ag.VLBNeuron(d, n, mfPsi, mfPsiSq)
	}
	return vlb
}

// VLBNeuron is the VLB contribution of neuron n.
func (ag *Augmenter) VLBNeuron(d *Data, n int, mfPsi, mfPsiSq mat.Matrix) float64 {
	vlb := 0.0
	for t := 0; t < d.T; t++ {
		b := d.Bv.At(t, n)
		c := d.MfC.At(t, n)
		eo := d.MfOmega.At(t, n)
		vlb += ag.Family.LogNorm(d.S.At(t, n)) - b*math.Ln2 +
			d.Kappa.At(t, n)*mfPsi.At(t, n) - 0.5*eo*mfPsiSq.At(t, n) -
			b*gauss.LogCosh(0.5*c) + 0.5*c*c*eo
	}
	return vlb
}
