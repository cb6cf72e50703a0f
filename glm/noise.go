// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"math"

	"github.com/emer/spikeglm/gauss"
	"github.com/emer/spikeglm/obs"
	"gonum.org/v1/gonum/stat/distuv"
)

// Noisy neurons have a latent activation psi ~ N(mean, eta) between the
// linear predictor and the counts, with eta ~ InvGamma(Alpha0, Beta0).

// resamplePsi draws the latent activation of post in d given omega:
// psi ~ N((kappa + mean / eta) / (omega + 1 / eta), 1 / (omega + 1 / eta)).
func (m *Model) resamplePsi(d *obs.Data, post int, mean []float64) {
	ei := 1 / m.Neurons[post].Eta
	for t := 0; t < d.T; t++ {
		prec := d.Omega.At(t, post) + ei
		mu := (d.Kappa.At(t, post) + ei*mean[t]) / prec
		d.Psi.Set(t, post, mu+m.Rand.NormFloat64()/math.Sqrt(prec))
	}
}

// resampleEta draws eta of post from InvGamma(Alpha0 + T/2, Beta0 + sum (psi - mean)^2 / 2).
func (m *Model) resampleEta(post int) {
	np := &m.Params.Noise
	ssq := 0.0
	nt := 0
	for _, d := range m.Data {
		mean := make([]float64, d.T)
		m.Act.ComputePsiNeuron(d, post, mean)
		for t := range mean {
			r := d.Psi.At(t, post) - mean[t]
			ssq += r * r
		}
		nt += d.T
	}
	prec := distuv.Gamma{Alpha: np.Alpha0 + 0.5*float64(nt), Beta: np.Beta0 + 0.5*ssq, Src: m.Rand}
	m.Neurons[post].Eta = 1 / prec.Rand()
}

// mfUpdatePsi sets q(psi) of post in d to its optimum given E[omega],
// E[1 / eta] and the expected activation mean.
func (m *Model) mfUpdatePsi(d *obs.Data, post int, mean []float64) {
	ei := m.Neurons[post].MfExpectedEtaInv()
	for t := 0; t < d.T; t++ {
		prec := d.MfOmega.At(t, post) + ei
		d.MfPsiMu.Set(t, post, (d.Kappa.At(t, post)+ei*mean[t])/prec)
		d.MfPsiVar.Set(t, post, 1/prec)
	}
}

// mfResidSq returns sum_t E[(psi - mean)^2] of post in d and T.
func (m *Model) mfResidSq(d *obs.Data, post int) float64 {
	mean := make([]float64, d.T)
	meanSq := make([]float64, d.T)
	m.Act.MfExpectedPsiNeuron(d, post, mean)
	m.Act.MfExpectedPsiSqNeuron(d, post, meanSq)
	ssq := 0.0
	for t := range mean {
		mu := d.MfPsiMu.At(t, post)
		ssq += mu*mu + d.MfPsiVar.At(t, post) - 2*mu*mean[t] + meanSq[t]
	}
	return ssq
}

// mfUpdateEta sets q(eta) of post to InvGamma(Alpha0 + T/2, Beta0 + E[sum (psi - mean)^2] / 2),
// with statistics scaled by scale and the damped step of SVI.
func (m *Model) mfUpdateEta(ds []*obs.Data, post int, scale, step float64) {
	np := &m.Params.Noise
	ssq := 0.0
	nt := 0
	for _, d := range ds {
		ssq += m.mfResidSq(d, post)
		nt += d.T
	}
	nrn := &m.Neurons[post]
	nrn.MfEtaAlpha = (1-step)*nrn.MfEtaAlpha + step*(np.Alpha0+0.5*scale*float64(nt))
	nrn.MfEtaBeta = (1-step)*nrn.MfEtaBeta + step*(np.Beta0+0.5*scale*ssq)
}

// noiseVLB is the noisy-neuron part of the lower bound for post:
// E[ln p(psi | mean, eta)] - E[ln q(psi)] over all of m.Data, plus
// E[ln p(eta)] - E[ln q(eta)].
func (m *Model) noiseVLB(post int) float64 {
	np := &m.Params.Noise
	nrn := &m.Neurons[post]
	ei := nrn.MfExpectedEtaInv()
	elog := nrn.MfExpectedLogEta()
	vlb := 0.0
	for _, d := range m.Data {
		vlb += -0.5*float64(d.T)*(math.Log(2*math.Pi)+elog) - 0.5*ei*m.mfResidSq(d, post)
		for t := 0; t < d.T; t++ {
			vlb -= gauss.GaussianSelfNegentropy(1, math.Log(d.MfPsiVar.At(t, post)))
		}
	}
	vlb += invGammaExpectedLogProb(np.Alpha0, np.Beta0, ei, elog)
	vlb -= invGammaExpectedLogProb(nrn.MfEtaAlpha, nrn.MfEtaBeta, ei, elog)
	return vlb
}

// invGammaExpectedLogProb is E[ln InvGamma(eta | alpha, beta)] given
// E[1 / eta] and E[ln eta].
func invGammaExpectedLogProb(alpha, beta, eInv, eLog float64) float64 {
	lg, _ := math.Lgamma(alpha)
	return alpha*math.Log(beta) - lg - (alpha+1)*eLog - beta*eInv
}

func (m *Model) noiseLogPrior(post int) float64 {
	np := &m.Params.Noise
	eta := m.Neurons[post].Eta
	return invGammaExpectedLogProb(np.Alpha0, np.Beta0, 1/eta, math.Log(eta))
}

func (m *Model) resampleEtaFromMF(post int) {
	nrn := &m.Neurons[post]
	prec := distuv.Gamma{Alpha: nrn.MfEtaAlpha, Beta: nrn.MfEtaBeta, Src: m.Rand}
	nrn.Eta = 1 / prec.Rand()
}
