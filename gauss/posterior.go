// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gauss

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// ErrNotPosDef is returned when a covariance or precision that must be
// symmetric positive definite cannot be Cholesky factorized.
var ErrNotPosDef = errors.New("gauss: matrix is not symmetric positive definite")

// MinPrec is the precision added to the diagonal of a posterior precision
// that fails to factorize, before giving up.
var MinPrec = 1e-8

// Stats are Gaussian likelihood sufficient statistics in natural form:
// Prec = sum_t x_t lam_t x_t^T and MeanDotPrec = sum_t x_t (lam y)_t.
type Stats struct {
	Prec        *mat.SymDense
	MeanDotPrec *mat.VecDense
}

// NewStats returns zero statistics of dimension d.
func NewStats(d int) *Stats {
	return &Stats{Prec: mat.NewSymDense(d, nil), MeanDotPrec: mat.NewVecDense(d, nil)}
}

// Dim is the dimension of the statistics.
func (st *Stats) Dim() int { return st.MeanDotPrec.Len() }

// Add accumulates other statistics of the same dimension.
func (st *Stats) Add(o *Stats) {
	st.Prec.AddSym(st.Prec, o.Prec)
	st.MeanDotPrec.AddVec(st.MeanDotPrec, o.MeanDotPrec)
}

// AddObs adds one observation with covariate x, precision weight lam
// and residual-times-precision ylam.
func (st *Stats) AddObs(x []float64, lam, ylam float64) {
	d := len(x)
	for i := 0; i < d; i++ {
		if x[i] == 0 {
			continue
		}
		st.MeanDotPrec.SetVec(i, st.MeanDotPrec.AtVec(i)+x[i]*ylam)
		lx := lam * x[i]
		for j := i; j < d; j++ {
			st.Prec.SetSym(i, j, st.Prec.At(i, j)+lx*x[j])
		}
	}
}

// Prior is a Gaussian prior in natural form, with the normalizer terms the
// spike-and-slab log odds need.  For a variational hyperprior the fields hold
// expectations: Prec = E[Sigma^-1], MeanDotPrec = E[Sigma^-1] E[mu],
// LogDetCov = E[logdet Sigma], Quad = E[mu^T Sigma^-1 mu].
type Prior struct {
	Prec        *mat.SymDense
	MeanDotPrec *mat.VecDense
	LogDetCov   float64
	Quad        float64
}

// NewPrior converts a mean and covariance to natural form.
// sigma must be symmetric positive definite.
func NewPrior(mu []float64, sigma mat.Symmetric) (*Prior, error) {
	d := sigma.SymmetricDim()
	if len(mu) != d {
		return nil, fmt.Errorf("gauss: prior mean has length %d, covariance is %dx%d", len(mu), d, d)
	}
	var chol mat.Cholesky
	if !chol.Factorize(sigma) {
		return nil, fmt.Errorf("prior covariance: %w", ErrNotPosDef)
	}
	pr := &Prior{Prec: mat.NewSymDense(d, nil), MeanDotPrec: mat.NewVecDense(d, nil)}
	if err := inverseTo(&chol, pr.Prec); err != nil {
		return nil, fmt.Errorf("prior covariance: %w", err)
	}
	muv := mat.NewVecDense(d, append([]float64(nil), mu...))
	if err := chol.SolveVecTo(pr.MeanDotPrec, muv); err != nil {
		return nil, fmt.Errorf("prior covariance: %w", ErrNotPosDef)
	}
	pr.LogDetCov = chol.LogDet()
	pr.Quad = mat.Dot(muv, pr.MeanDotPrec)
	return pr, nil
}

// NewExpectedPrior builds a prior from variational expectations of the
// hyperparameters.
func NewExpectedPrior(eMu []float64, eMuMuT, eSigmaInv mat.Symmetric, eLogDetSigma float64) *Prior {
	d := eSigmaInv.SymmetricDim()
	pr := &Prior{Prec: mat.NewSymDense(d, nil), MeanDotPrec: mat.NewVecDense(d, nil)}
	pr.Prec.CopySym(eSigmaInv)
	pr.MeanDotPrec.MulVec(eSigmaInv, mat.NewVecDense(d, append([]float64(nil), eMu...)))
	pr.LogDetCov = eLogDetSigma
	pr.Quad = Trace(eSigmaInv, eMuMuT)
	return pr
}

// Posterior is a Gaussian posterior held through the Cholesky factor of its
// precision, so neither the covariance nor an inverse is formed unless asked.
type Posterior struct {
	Mu        *mat.VecDense
	Prec      *mat.SymDense
	LogDetCov float64

	chol mat.Cholesky
}

// NewPosterior combines a prior with likelihood statistics scaled by scale
// (1 for a full pass, 1/minibatchFrac for a minibatch):
// Prec = prior.Prec + scale * lk.Prec and Mu = Prec^-1 (prior.MeanDotPrec + scale * lk.MeanDotPrec).
// lk may be nil, giving back the prior.
func NewPosterior(pr *Prior, lk *Stats, scale float64) (*Posterior, error) {
	d := pr.MeanDotPrec.Len()
	po := &Posterior{Mu: mat.NewVecDense(d, nil), Prec: mat.NewSymDense(d, nil)}
	po.Prec.CopySym(pr.Prec)
	rhs := mat.NewVecDense(d, nil)
	rhs.CopyVec(pr.MeanDotPrec)
	if lk != nil {
		if lk.Dim() != d {
			return nil, fmt.Errorf("gauss: likelihood dimension %d, prior dimension %d", lk.Dim(), d)
		}
		if scale == 1 {
			po.Prec.AddSym(po.Prec, lk.Prec)
		} else {
			scl := mat.NewSymDense(d, nil)
			scl.ScaleSym(scale, lk.Prec)
			po.Prec.AddSym(po.Prec, scl)
		}
		rhs.AddScaledVec(rhs, scale, lk.MeanDotPrec)
	}
	if !po.chol.Factorize(po.Prec) {
		for i := 0; i < d; i++ {
			po.Prec.SetSym(i, i, po.Prec.At(i, i)+MinPrec)
		}
		if !po.chol.Factorize(po.Prec) {
			return nil, fmt.Errorf("posterior precision: %w", ErrNotPosDef)
		}
	}
	if err := po.chol.SolveVecTo(po.Mu, rhs); err != nil {
		return nil, fmt.Errorf("posterior mean: %w", err)
	}
	po.LogDetCov = -po.chol.LogDet()
	return po, nil
}

// Dim is the dimension of the posterior.
func (po *Posterior) Dim() int { return po.Mu.Len() }

// Cov returns the posterior covariance.
func (po *Posterior) Cov() *mat.SymDense {
	cov := mat.NewSymDense(po.Dim(), nil)
	if err := inverseTo(&po.chol, cov); err != nil {
		panic(err) // factorization already succeeded
	}
	return cov
}

// inverseTo inverts through a Cholesky factor, accepting the result
// of a poorly conditioned but successful inversion.
func inverseTo(chol *mat.Cholesky, dst *mat.SymDense) error {
	err := chol.InverseTo(dst)
	var cond mat.Condition
	if err != nil && !errors.As(err, &cond) {
		return err
	}
	return nil
}

// Sample writes one draw from the posterior into dst, as Mu + U^-1 z where
// Prec = U^T U and z is standard normal.
func (po *Posterior) Sample(rng *rand.Rand, dst []float64) {
	d := po.Dim()
	u := po.chol.RawU()
	z := make([]float64, d)
	for i := range z {
		z[i] = rng.NormFloat64()
	}
	// back substitution U x = z
	for i := d - 1; i >= 0; i-- {
		s := z[i]
		for j := i + 1; j < d; j++ {
			s -= u.At(i, j) * z[j]
		}
		z[i] = s / u.At(i, i)
	}
	for i := 0; i < d; i++ {
		dst[i] = po.Mu.AtVec(i) + z[i]
	}
}

// LogOdds returns the posterior log odds of the slab (connection present)
// against the spike at zero:
// logitRho + 0.5 (logdet postCov - logdet priorCov) + 0.5 mu' Prec mu - 0.5 prior.Quad.
func LogOdds(logitRho float64, pr *Prior, po *Posterior) float64 {
	return logitRho +
		0.5*(po.LogDetCov-pr.LogDetCov) +
		0.5*mat.Inner(po.Mu, po.Prec, po.Mu) -
		0.5*pr.Quad
}

// Trace returns tr(a b) for symmetric a and b.
func Trace(a, b mat.Symmetric) float64 {
	d := a.SymmetricDim()
	tr := 0.0
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			tr += a.At(i, j) * b.At(j, i)
		}
	}
	return tr
}

// LogDet returns the log determinant of a symmetric positive definite matrix.
func LogDet(a mat.Symmetric) (float64, error) {
	var chol mat.Cholesky
	if !chol.Factorize(a) {
		return 0, ErrNotPosDef
	}
	return chol.LogDet(), nil
}
