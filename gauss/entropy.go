// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gauss

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BernoulliNegentropy returns E[ln p(x | p)] = E[x] E[ln p] + E[not x] E[ln(1-p)],
// with zero-probability outcomes contributing nothing even where the log is -Inf.
func BernoulliNegentropy(eX, eNotX, eLnP, eLnNotP float64) float64 {
	return xTimes(eX, eLnP) + xTimes(eNotX, eLnNotP)
}

// BernoulliSelfNegentropy returns E_q[ln q(x)] = p ln p + (1-p) ln(1-p) for q = Bern(p).
func BernoulliSelfNegentropy(p float64) float64 {
	return XLogY(p, p) + XLogY(1-p, 1-p)
}

// GaussianExpectedLogProb returns E[ln N(x | mu, Sigma)] under independent
// expectations of x and of the parameters:
//
//	-d/2 ln 2pi - 1/2 E[logdet Sigma]
//	- 1/2 tr(E[Sigma^-1] (E[xx'] - E[x]E[mu]' - E[mu]E[x]' + E[mumu'])).
func GaussianExpectedLogProb(eX []float64, eXXT mat.Symmetric, eMu []float64, eMuMuT, eSigmaInv mat.Symmetric, eLogDetSigma float64) float64 {
	d := len(eX)
	sq := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			sq.SetSym(i, j, eXXT.At(i, j)-eX[i]*eMu[j]-eMu[i]*eX[j]+eMuMuT.At(i, j))
		}
	}
	return -0.5*float64(d)*math.Log(2*math.Pi) - 0.5*eLogDetSigma - 0.5*Trace(eSigmaInv, sq)
}

// GaussianSelfNegentropy returns E_q[ln q(x)] for q = N(mu, Sigma) of dimension d
// with log determinant logDetSigma.
func GaussianSelfNegentropy(d int, logDetSigma float64) float64 {
	return -0.5*float64(d)*(math.Log(2*math.Pi)+1) - 0.5*logDetSigma
}

// OuterPlus returns sigma + mu mu'.
func OuterPlus(sigma mat.Symmetric, mu []float64) *mat.SymDense {
	d := len(mu)
	r := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			r.SetSym(i, j, sigma.At(i, j)+mu[i]*mu[j])
		}
	}
	return r
}
