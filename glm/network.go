// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"fmt"
	"math"

	"github.com/emer/spikeglm/gauss"
	"gonum.org/v1/gonum/mat"
)

// NetworkPrior supplies the prior over each ordered pair (pre -> post):
// the connection probability P and the Gaussian slab N(Mu, Sigma) over the
// B-dimensional weight.  The Mf methods are the expectations the mean-field
// updates need under a variational posterior over these hyperparameters;
// for a fixed prior they are the point values.
type NetworkPrior interface {
	// NNeurons is the number of neurons N
	NNeurons() int

	// NBasis is the weight dimension B
	NBasis() int

	P(pre, post int) float64
	Mu(pre, post int) []float64
	Sigma(pre, post int) mat.Symmetric

	MfExpectedLogP(pre, post int) float64
	MfExpectedLogNotP(pre, post int) float64
	MfExpectedMu(pre, post int) []float64
	MfExpectedMuMuT(pre, post int) mat.Symmetric
	MfExpectedSigmaInv(pre, post int) mat.Symmetric
	MfExpectedLogDetSigma(pre, post int) float64
}

// pairPrior is the prior of one pair, with the derived quantities cached.
type pairPrior struct {
	p        float64
	mu       []float64
	sigma    *mat.SymDense
	sigmaInv *mat.SymDense
	mumuT    *mat.SymDense
	logDet   float64
}

func newPairPrior(p float64, mu []float64, sigma mat.Symmetric) (*pairPrior, error) {
	if !(p >= 0 && p <= 1) {
		return nil, errorf("connection probability %v not in [0,1]", p)
	}
	pr, err := gauss.NewPrior(mu, sigma)
	if err != nil {
		return nil, err
	}
	pp := &pairPrior{p: p, mu: append([]float64(nil), mu...), logDet: pr.LogDetCov, sigmaInv: pr.Prec}
	pp.sigma = mat.NewSymDense(len(mu), nil)
	pp.sigma.CopySym(sigma)
	pp.mumuT = gauss.OuterPlus(mat.NewSymDense(len(mu), nil), mu)
	return pp, nil
}

// ErdosRenyi is a NetworkPrior in which every pair is connected
// independently with the same probability Rho and has the same weight
// prior, except for pairs individually overridden with SetPair.
type ErdosRenyi struct {
	N   int     `desc:"number of neurons"`
	B   int     `desc:"weight dimension"`
	Rho float64 `desc:"connection probability of every pair not set individually"`

	def   *pairPrior
	pairs map[int]*pairPrior
}

// NewErdosRenyi returns an Erdos-Renyi prior over n neurons with connection
// probability rho and weight prior N(mu, sigma).  rho may be 0 or 1, which
// forces every pair out of or into the network.
func NewErdosRenyi(n int, rho float64, mu []float64, sigma mat.Symmetric) (*ErdosRenyi, error) {
	if n < 1 {
		return nil, errorf("number of neurons %d must be positive", n)
	}
	if len(mu) < 1 {
		return nil, errorf("weight dimension must be positive")
	}
	def, err := newPairPrior(rho, mu, sigma)
	if err != nil {
		return nil, fmt.Errorf("erdos-renyi prior: %w", err)
	}
	return &ErdosRenyi{N: n, B: len(mu), Rho: rho, def: def, pairs: make(map[int]*pairPrior)}, nil
}

// SetPair overrides the prior of the pair pre -> post.
func (er *ErdosRenyi) SetPair(pre, post int, p float64, mu []float64, sigma mat.Symmetric) error {
	if pre < 0 || pre >= er.N || post < 0 || post >= er.N {
		return errorf("pair %d -> %d out of range for %d neurons", pre, post, er.N)
	}
	if len(mu) != er.B {
		return errorf("pair %d -> %d mean has length %d, want %d", pre, post, len(mu), er.B)
	}
	pp, err := newPairPrior(p, mu, sigma)
	if err != nil {
		return fmt.Errorf("pair %d -> %d: %w", pre, post, err)
	}
	er.pairs[pre*er.N+post] = pp
	return nil
}

func (er *ErdosRenyi) pair(pre, post int) *pairPrior {
	if pp, ok := er.pairs[pre*er.N+post]; ok {
		return pp
	}
	return er.def
}

func (er *ErdosRenyi) NNeurons() int { return er.N }
func (er *ErdosRenyi) NBasis() int   { return er.B }

func (er *ErdosRenyi) P(pre, post int) float64           { return er.pair(pre, post).p }
func (er *ErdosRenyi) Mu(pre, post int) []float64        { return er.pair(pre, post).mu }
func (er *ErdosRenyi) Sigma(pre, post int) mat.Symmetric { return er.pair(pre, post).sigma }

func (er *ErdosRenyi) MfExpectedLogP(pre, post int) float64 {
	return math.Log(er.pair(pre, post).p)
}

func (er *ErdosRenyi) MfExpectedLogNotP(pre, post int) float64 {
	return math.Log1p(-er.pair(pre, post).p)
}

func (er *ErdosRenyi) MfExpectedMu(pre, post int) []float64 { return er.pair(pre, post).mu }

func (er *ErdosRenyi) MfExpectedMuMuT(pre, post int) mat.Symmetric {
	return er.pair(pre, post).mumuT
}

func (er *ErdosRenyi) MfExpectedSigmaInv(pre, post int) mat.Symmetric {
	return er.pair(pre, post).sigmaInv
}

func (er *ErdosRenyi) MfExpectedLogDetSigma(pre, post int) float64 {
	return er.pair(pre, post).logDet
}

// priorOf is the natural-form Gaussian prior of pair pre -> post.
func priorOf(net NetworkPrior, pre, post int) (*gauss.Prior, error) {
	return gauss.NewPrior(net.Mu(pre, post), net.Sigma(pre, post))
}

// mfPriorOf is the expected natural-form prior of pair pre -> post.
func mfPriorOf(net NetworkPrior, pre, post int) *gauss.Prior {
	return gauss.NewExpectedPrior(net.MfExpectedMu(pre, post), net.MfExpectedMuMuT(pre, post),
		net.MfExpectedSigmaInv(pre, post), net.MfExpectedLogDetSigma(pre, post))
}
