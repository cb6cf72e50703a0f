// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obs

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Data is one batch of augmented spike count data.  The counts S and the
// filtered covariates F are fixed once added; the auxiliary variables are
// rewritten in place by every augmentation step, so a Gibbs iteration must
// refresh Omega before it updates any weight.
type Data struct {
	T int `desc:"number of time bins"`
	N int `desc:"number of neurons"`
	B int `desc:"number of basis functions per presynaptic neuron"`

	S *mat.Dense   `desc:"spike counts, T x N"`
	F []*mat.Dense `desc:"filtered spike history of each presynaptic neuron, T x B"`

	Bv    *mat.Dense `desc:"Polya-Gamma shape b per cell, T x N"`
	Kappa *mat.Dense `desc:"pseudo-observation kappa = a - b/2 per cell, T x N"`
	Omega *mat.Dense `desc:"Polya-Gamma auxiliary variables (Gibbs), T x N"`

	MfC     *mat.Dense `desc:"tilt c of the variational q(omega) = PG(b, c), T x N"`
	MfOmega *mat.Dense `desc:"E[omega] under q(omega), T x N"`

	Psi      *mat.Dense `desc:"latent noisy activation (noisy neurons only, Gibbs), T x N"`
	MfPsiMu  *mat.Dense `desc:"mean of q(psi) (noisy neurons only), T x N"`
	MfPsiVar *mat.Dense `desc:"variance of q(psi) (noisy neurons only), T x N"`
}

// NewData wraps counts s (T x N) and covariates f (N matrices of T x B).
// Shapes are checked here; count values are checked by Augmenter.Augment
// against the observation family.
func NewData(s *mat.Dense, f []*mat.Dense) (*Data, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil counts", ErrShape)
	}
	t, n := s.Dims()
	if len(f) != n {
		return nil, fmt.Errorf("%w: %d covariate matrices for %d neurons", ErrShape, len(f), n)
	}
	b := 0
	for i, fi := range f {
		if fi == nil {
			return nil, fmt.Errorf("%w: nil covariates for neuron %d", ErrShape, i)
		}
		ft, fb := fi.Dims()
		if i == 0 {
			b = fb
		}
		if ft != t || fb != b {
			return nil, fmt.Errorf("%w: covariates for neuron %d are %dx%d, want %dx%d", ErrShape, i, ft, fb, t, b)
		}
	}
	return &Data{T: t, N: n, B: b, S: s, F: f}, nil
}

// FRow returns the covariate row of presynaptic neuron pre at time t,
// as a view into F (not a copy).
func (d *Data) FRow(pre, t int) []float64 {
	return d.F[pre].RawRowView(t)
}

// Dot returns F[pre][t,:] . w
func (d *Data) Dot(pre, t int, w []float64) float64 {
	row := d.F[pre].RawRowView(t)
	s := 0.0
	for i, fv := range row {
		s += fv * w[i]
	}
	return s
}

// Slice returns the data restricted to time bins [st, ed), sharing storage
// with d.  Used to cut a long recording into minibatches.
func (d *Data) Slice(st, ed int) (*Data, error) {
	if st < 0 || ed > d.T || st >= ed {
		return nil, fmt.Errorf("%w: slice [%d,%d) of %d bins", ErrShape, st, ed, d.T)
	}
	f := make([]*mat.Dense, d.N)
	for i, fi := range d.F {
		f[i] = fi.Slice(st, ed, 0, d.B).(*mat.Dense)
	}
	return NewData(d.S.Slice(st, ed, 0, d.N).(*mat.Dense), f)
}
