// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package pgdraw draws Polya-Gamma random variables PG(b, z), the auxiliary
variables that render logistic and negative-binomial likelihoods conditionally
Gaussian in their linear predictor.

PG(1, z) is drawn exactly with Devroye's alternating-series accept / reject
scheme (a mixture of a truncated exponential and a truncated inverse-Gaussian
proposal, switching at Params.Trunc).  PG(b, z) for integer b is the sum of b
independent PG(1, z) draws, which is also exact.  For a non-integer b the
fractional remainder is drawn from the infinite gamma-sum representation
truncated at Params.NTerms terms, with the mean of the dropped tail added back.
*/
package pgdraw

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Params are the Polya-Gamma sampler parameters.
type Params struct {
	Trunc  float64 `def:"0.64" desc:"switch point between the truncated inverse-Gaussian (below) and truncated exponential (above) proposals of the Devroye sampler -- 0.64 is optimal for PG(1,z)"`
	NTerms int     `def:"200" min:"1" desc:"number of gamma terms used for the fractional part of a non-integer shape b"`

	TruncRecip float64 `view:"-" json:"-" desc:"1 / Trunc"`
}

func (pp *Params) Defaults() {
	pp.Trunc = 0.64
	pp.NTerms = 200
	pp.Update()
}

// Update must be called after any changes to parameters
func (pp *Params) Update() {
	pp.TruncRecip = 1 / pp.Trunc
}

// Sampler draws Polya-Gamma variates from its own random stream.
// It is not safe for concurrent use.
type Sampler struct {
	Params
	Rand *rand.Rand
}

// NewSampler returns a Sampler with default parameters drawing from rng.
func NewSampler(rng *rand.Rand) *Sampler {
	ps := &Sampler{Rand: rng}
	ps.Defaults()
	return ps
}

// Draw returns one sample of PG(b, z).  b must be positive.
func (ps *Sampler) Draw(b, z float64) float64 {
	n := int(math.Floor(b))
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += ps.drawDevroye(z)
	}
	if frac := b - float64(n); frac > 1e-12 {
		sum += ps.drawGammaSum(frac, z)
	}
	return sum
}

// DrawVec fills out[i] with PG(b[i], z[i]) draws.
func (ps *Sampler) DrawVec(b, z, out []float64) {
	for i := range out {
		out[i] = ps.Draw(b[i], z[i])
	}
}

// Mean returns E[PG(b, z)] = b / (2z) tanh(z / 2), with the limit b/4 at z = 0.
func Mean(b, z float64) float64 {
	z = math.Abs(z)
	if z < 1e-6 {
		return b * (0.25 - z*z/48)
	}
	return b / (2 * z) * math.Tanh(z/2)
}

// drawDevroye samples PG(1, z) as J*(1, z/2) / 4.
func (ps *Sampler) drawDevroye(z float64) float64 {
	z = math.Abs(z) * 0.5
	fz := 0.125*math.Pi*math.Pi + 0.5*z*z
	mass := ps.massTExpon(z)

	for {
		var x float64
		if ps.Rand.Float64() < mass {
			x = ps.Trunc + ps.Rand.ExpFloat64()/fz
		} else {
			x = ps.truncInvGauss(z)
		}

		s := ps.a(0, x)
		y := ps.Rand.Float64() * s
		for n := 1; ; n++ {
			if n%2 == 1 {
				s -= ps.a(n, x)
				if y <= s {
					return 0.25 * x
				}
			} else {
				s += ps.a(n, x)
				if y > s {
					break
				}
			}
		}
	}
}

// a is the n-th term of the alternating series for the J*(1, 0) density,
// using the left (x <= Trunc) or right hand representation.
func (ps *Sampler) a(n int, x float64) float64 {
	k := (float64(n) + 0.5) * math.Pi
	switch {
	case x > ps.Trunc:
		return k * math.Exp(-0.5*k*k*x)
	case x > 0:
		nh := float64(n) + 0.5
		expnt := -1.5*(math.Log(0.5*math.Pi)+math.Log(x)) + math.Log(k) - 2*nh*nh/x
		return math.Exp(expnt)
	}
	return 0
}

// massTExpon is the probability of proposing from the exponential tail.
func (ps *Sampler) massTExpon(z float64) float64 {
	t := ps.Trunc
	fz := 0.125*math.Pi*math.Pi + 0.5*z*z
	b := math.Sqrt(1/t) * (t*z - 1)
	a := -math.Sqrt(1/t) * (t*z + 1)

	x0 := math.Log(fz) + fz*t
	xb := x0 - z + math.Log(distuv.UnitNormal.CDF(b))
	xa := x0 + z + math.Log(distuv.UnitNormal.CDF(a))

	qdivp := 4 / math.Pi * (math.Exp(xb) + math.Exp(xa))
	return 1 / (1 + qdivp)
}

// truncInvGauss samples an inverse-Gaussian(1/z, 1) truncated to (0, Trunc).
func (ps *Sampler) truncInvGauss(z float64) float64 {
	z = math.Abs(z)
	t := ps.Trunc
	x := t + 1
	if ps.TruncRecip > z { // mean 1/z beyond the truncation point
		alpha := 0.0
		for ps.Rand.Float64() > alpha {
			e1 := ps.Rand.ExpFloat64()
			e2 := ps.Rand.ExpFloat64()
			for e1*e1 > 2*e2/t {
				e1 = ps.Rand.ExpFloat64()
				e2 = ps.Rand.ExpFloat64()
			}
			x = 1 + e1*t
			x = t / (x * x)
			alpha = math.Exp(-0.5 * z * z * x)
		}
		return x
	}
	mu := 1 / z
	for x > t {
		y := ps.Rand.NormFloat64()
		y *= y
		halfMu := 0.5 * mu
		muY := mu * y
		x = mu + halfMu*muY - halfMu*math.Sqrt(4*muY+muY*muY)
		if ps.Rand.Float64() > mu/(mu+x) {
			x = mu * mu / x
		}
	}
	return x
}

// drawGammaSum samples PG(b, z) from the truncated series
// 1/(2 pi^2) sum_k g_k / ((k - 1/2)^2 + z^2 / (4 pi^2)), g_k ~ Gamma(b, 1).
func (ps *Sampler) drawGammaSum(b, z float64) float64 {
	gam := distuv.Gamma{Alpha: b, Beta: 1, Src: ps.Rand}
	c := z * z / (4 * math.Pi * math.Pi)
	sum := 0.0
	for k := 1; k <= ps.NTerms; k++ {
		kh := float64(k) - 0.5
		sum += gam.Rand() / (kh*kh + c)
	}
	// mean of the dropped terms, integral of b / (k^2 + c) from K to infinity
	kt := float64(ps.NTerms)
	if c > 0 {
		rc := math.Sqrt(c)
		sum += b * (math.Pi/2 - math.Atan(kt/rc)) / rc
	} else {
		sum += b / kt
	}
	return sum / (2 * math.Pi * math.Pi)
}
