// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obs

import (
	"errors"
	"fmt"
	"math"

	"github.com/emer/spikeglm/gauss"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrCounts is returned for spike counts that are negative, non-integer,
	// or outside the support of the observation family.
	ErrCounts = errors.New("obs: invalid spike counts")

	// ErrDispersion is returned for a negative binomial dispersion xi <= 0.
	ErrDispersion = errors.New("obs: negative binomial dispersion must be positive")

	// ErrShape is returned when counts and covariates disagree in shape.
	ErrShape = errors.New("obs: inconsistent data shape")
)

// Family is a discrete count likelihood whose dependence on the activation
// psi can be written as exp(psi)^a / (1 + exp(psi))^b, and hence made
// conditionally Gaussian by a Polya-Gamma auxiliary variable PG(b, psi).
// All methods are per (time, neuron) cell.
type Family interface {
	// Name of the family, for reports
	Name() string

	// B is the Polya-Gamma shape for an observed count s.  The other
	// parameter, a, is the count itself for every family here.
	B(s float64) float64

	// LogNorm is the part of ln p(s | psi) that does not depend on psi.
	LogNorm(s float64) float64

	// CheckCount returns an ErrCounts error if s is outside the support.
	CheckCount(s float64) error

	// Rand draws a count given activation psi.
	Rand(psi float64, rng *rand.Rand) float64

	// Mean is the expected count given activation psi.
	Mean(psi float64) float64

	// Std is the standard deviation of the count given activation psi.
	Std(psi float64) float64
}

// LogProb returns ln p(s | psi) = s psi - b(s) softplus(psi) + LogNorm(s),
// which needs no clipping of the success probability.
func LogProb(fam Family, s, psi float64) float64 {
	return s*psi - fam.B(s)*gauss.Softplus(psi) + fam.LogNorm(s)
}

// CheckCounts checks every count in s against the support of fam.
func CheckCounts(fam Family, s mat.Matrix) error {
	r, c := s.Dims()
	for t := 0; t < r; t++ {
		for n := 0; n < c; n++ {
			if err := fam.CheckCount(s.At(t, n)); err != nil {
				return fmt.Errorf("bin %d neuron %d: %w", t, n, err)
			}
		}
	}
	return nil
}

func checkInteger(s float64) error {
	if s < 0 || s != math.Floor(s) || math.IsInf(s, 0) {
		return fmt.Errorf("%w: %v is not a nonnegative integer", ErrCounts, s)
	}
	return nil
}

// Bernoulli has p(s = 1 | psi) = logistic(psi).
type Bernoulli struct{}

func (bf *Bernoulli) Name() string              { return "Bernoulli" }
func (bf *Bernoulli) B(s float64) float64       { return 1 }
func (bf *Bernoulli) LogNorm(s float64) float64 { return 0 }

func (bf *Bernoulli) CheckCount(s float64) error {
	if s != 0 && s != 1 {
		return fmt.Errorf("%w: Bernoulli count %v not in {0,1}", ErrCounts, s)
	}
	return nil
}

func (bf *Bernoulli) Rand(psi float64, rng *rand.Rand) float64 {
	if rng.Float64() < gauss.Logistic(psi) {
		return 1
	}
	return 0
}

func (bf *Bernoulli) Mean(psi float64) float64 { return gauss.Logistic(psi) }

func (bf *Bernoulli) Std(psi float64) float64 {
	p := gauss.Logistic(psi)
	return math.Sqrt(p * (1 - p))
}

// NegativeBinomial is NB(xi, p) with p = logistic(psi): the number of
// successes before xi failures, with mean xi exp(psi).
type NegativeBinomial struct {
	Xi float64 `desc:"dispersion (number of failures), must be positive -- smaller is more over-dispersed"`
}

// NewNegativeBinomial returns a negative binomial family with dispersion xi.
func NewNegativeBinomial(xi float64) (*NegativeBinomial, error) {
	if !(xi > 0) || math.IsInf(xi, 1) {
		return nil, fmt.Errorf("%w: xi = %v", ErrDispersion, xi)
	}
	return &NegativeBinomial{Xi: xi}, nil
}

func (nb *NegativeBinomial) Name() string        { return fmt.Sprintf("NegativeBinomial(xi=%g)", nb.Xi) }
func (nb *NegativeBinomial) B(s float64) float64 { return s + nb.Xi }

func (nb *NegativeBinomial) LogNorm(s float64) float64 {
	a, _ := math.Lgamma(s + nb.Xi)
	b, _ := math.Lgamma(nb.Xi)
	c, _ := math.Lgamma(s + 1)
	return a - b - c
}

func (nb *NegativeBinomial) CheckCount(s float64) error { return checkInteger(s) }

// Rand draws the count as a gamma-Poisson mixture: lambda ~ Gamma(xi, rate exp(-psi)),
// s ~ Poisson(lambda).
func (nb *NegativeBinomial) Rand(psi float64, rng *rand.Rand) float64 {
	gam := distuv.Gamma{Alpha: nb.Xi, Beta: math.Exp(-psi), Src: rng}
	lam := gam.Rand()
	if lam <= 0 {
		return 0
	}
	return distuv.Poisson{Lambda: lam, Src: rng}.Rand()
}

func (nb *NegativeBinomial) Mean(psi float64) float64 { return nb.Xi * math.Exp(psi) }

// Std is sqrt(mean + mean^2 / xi).
func (nb *NegativeBinomial) Std(psi float64) float64 {
	mu := nb.Mean(psi)
	return math.Sqrt(mu + mu*mu/nb.Xi)
}
