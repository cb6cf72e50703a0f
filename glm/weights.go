// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"fmt"
	"math"
	"sync"

	"github.com/emer/spikeglm/gauss"
	"github.com/emer/spikeglm/obs"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Weights is the inference capability of a synaptic weight model: Gibbs
// resampling, mean-field coordinate ascent and its stochastic (SVI)
// variant, and the read accessors the activation consumes.
type Weights interface {
	// Resample runs one Gibbs sweep over all synapses given the current
	// auxiliary variables of ds.
	Resample(ds []*obs.Data) error

	// MeanFieldUpdate runs one coordinate ascent sweep over all synapses.
	MeanFieldUpdate(ds []*obs.Data) error

	// SVIStep runs one damped sweep on a minibatch ds holding fraction
	// minibatchFrac of the data: likelihood statistics are scaled by
	// 1 / minibatchFrac and new = (1 - stepSize) old + stepSize proposed.
	SVIStep(ds []*obs.Data, minibatchFrac, stepSize float64) error

	// VLB is the contribution of the weight factors to the variational lower bound.
	VLB() float64

	// ResampleFromMF draws the sampled state from the variational posterior.
	ResampleFromMF() error

	// LogPrior is ln p(A, W) under the network prior.
	LogPrior() float64

	Connected(pre, post int) bool

	// WEffective is A * W for pre -> post.  The returned slice may alias
	// internal state and must not be modified.
	WEffective(pre, post int) []float64

	// MfExpectedW is E[A W] = p mu under q.
	MfExpectedW(pre, post int) []float64

	// MfExpectedWWT is E[A W W'] = p (Sigma + mu mu') under q.
	MfExpectedWWT(pre, post int) *mat.SymDense
}

// SpikeAndSlab is the spike-and-slab weight model: each ordered pair has a
// binary indicator A and a B-dimensional Gaussian weight W that is exactly
// zero whenever A = 0.
type SpikeAndSlab struct {
	N        int          `desc:"number of neurons"`
	B        int          `desc:"weight dimension"`
	NThreads int          `desc:"number of goroutines postsynaptic neurons are divided across"`
	Net      NetworkPrior `desc:"prior over connections and weights"`
	Act      Activation   `desc:"activation supplying the likelihood statistics"`
	Syns     []Synapse    `desc:"synapses, indexed [pre * N + post]"`

	rands []*rand.Rand
}

// NewSpikeAndSlab returns a model with every pair disconnected and the
// variational factors at their initial values from wp.  Random draws for
// thread th come from a stream seeded from rng.
func NewSpikeAndSlab(net NetworkPrior, act Activation, wp *WeightParams, nthr int, rng *rand.Rand) *SpikeAndSlab {
	n, b := net.NNeurons(), net.NBasis()
	if nthr < 1 {
		nthr = 1
	}
	if nthr > n {
		nthr = n
	}
	ss := &SpikeAndSlab{N: n, B: b, NThreads: nthr, Net: net, Act: act}
	ss.Syns = make([]Synapse, n*n)
	for i := range ss.Syns {
		ss.Syns[i].init(b, wp.MfPInit, wp.MfSigmaInit)
	}
	ss.rands = make([]*rand.Rand, nthr)
	ss.rands[0] = rng
	for th := 1; th < nthr; th++ {
		ss.rands[th] = rand.New(rand.NewSource(rng.Uint64()))
	}
	return ss
}

// Syn returns the synapse pre -> post.
func (ss *SpikeAndSlab) Syn(pre, post int) *Synapse {
	return &ss.Syns[pre*ss.N+post]
}

func (ss *SpikeAndSlab) Connected(pre, post int) bool {
	return ss.Syn(pre, post).Connected()
}

func (ss *SpikeAndSlab) WEffective(pre, post int) []float64 {
	return ss.Syn(pre, post).W
}

// MfExpectedWGivenA is E[W | A = a] under q: mu for a, else 0.
func (ss *SpikeAndSlab) MfExpectedWGivenA(pre, post int, a bool) []float64 {
	ew := make([]float64, ss.B)
	if a {
		copy(ew, ss.Syn(pre, post).MfMu)
	}
	return ew
}

// MfExpectedWWTGivenA is E[W W' | A = a] under q: Sigma + mu mu' for a, else 0.
func (ss *SpikeAndSlab) MfExpectedWWTGivenA(pre, post int, a bool) *mat.SymDense {
	r := mat.NewSymDense(ss.B, nil)
	if !a {
		return r
	}
	sy := ss.Syn(pre, post)
	for i := 0; i < ss.B; i++ {
		for j := i; j < ss.B; j++ {
			r.SetSym(i, j, sy.MfSigma.At(i, j)+sy.MfMu[i]*sy.MfMu[j])
		}
	}
	return r
}

func (ss *SpikeAndSlab) MfExpectedW(pre, post int) []float64 {
	ew := ss.MfExpectedWGivenA(pre, post, true)
	p := ss.Syn(pre, post).MfP
	for i := range ew {
		ew[i] *= p
	}
	return ew
}

func (ss *SpikeAndSlab) MfExpectedWWT(pre, post int) *mat.SymDense {
	r := ss.MfExpectedWWTGivenA(pre, post, true)
	r.ScaleSym(ss.Syn(pre, post).MfP, r)
	return r
}

// Adjacency returns the N x N indicator matrix A.
func (ss *SpikeAndSlab) Adjacency() *mat.Dense {
	a, _ := ss.SynValues("A")
	return a
}

// SynValues returns the N x N matrix [pre, post] of the named synapse variable.
func (ss *SpikeAndSlab) SynValues(varNm string) (*mat.Dense, error) {
	vi, err := SynapseVarByName(varNm)
	if err != nil {
		return nil, err
	}
	vals := mat.NewDense(ss.N, ss.N, nil)
	for pre := 0; pre < ss.N; pre++ {
		for post := 0; post < ss.N; post++ {
			vals.Set(pre, post, ss.Syn(pre, post).VarByIndex(vi))
		}
	}
	return vals, nil
}

// WeightValues returns W flattened as [(pre * N + post) * B + b].
func (ss *SpikeAndSlab) WeightValues() []float64 {
	w := make([]float64, 0, ss.N*ss.N*ss.B)
	for i := range ss.Syns {
		w = append(w, ss.Syns[i].W...)
	}
	return w
}

// InitializeWithStandardModel starts both regimes from a fitted dense
// model with weights w, flattened as in WeightValues: every pair is
// connected with W = w, and q has p = 0.9, mu = w, Sigma = 0.05 I.
func (ss *SpikeAndSlab) InitializeWithStandardModel(w []float64) error {
	if len(w) != ss.N*ss.N*ss.B {
		return errorf("standard model has %d weights, want %d x %d x %d", len(w), ss.N, ss.N, ss.B)
	}
	for i := range ss.Syns {
		sy := &ss.Syns[i]
		wi := w[i*ss.B : (i+1)*ss.B]
		sy.A = 1
		copy(sy.W, wi)
		sy.MfP = 0.9
		copy(sy.MfMu, wi)
		sy.MfSigma = mat.NewSymDense(ss.B, nil)
		for b := 0; b < ss.B; b++ {
			sy.MfSigma.SetSym(b, b, 0.05)
		}
	}
	return nil
}

// LogPrior is sum over pairs of ln p(A) + A ln N(W | Mu, Sigma).
func (ss *SpikeAndSlab) LogPrior() float64 {
	lp := 0.0
	for pre := 0; pre < ss.N; pre++ {
		for post := 0; post < ss.N; post++ {
			sy := ss.Syn(pre, post)
			p := ss.Net.P(pre, post)
			if !sy.Connected() {
				lp += math.Log1p(-p)
				continue
			}
			lp += math.Log(p)
			nd, ok := distmv.NewNormal(ss.Net.Mu(pre, post), ss.Net.Sigma(pre, post), nil)
			if !ok {
				return math.NaN()
			}
			lp += nd.LogProb(sy.W)
		}
	}
	return lp
}

// ResampleFromMF draws A ~ Bern(p) and, where A = 1, W ~ N(mu, Sigma).
func (ss *SpikeAndSlab) ResampleFromMF() error {
	rng := ss.rands[0]
	for i := range ss.Syns {
		sy := &ss.Syns[i]
		if !(rng.Float64() < sy.MfP) {
			sy.Disconnect()
			continue
		}
		sy.A = 1
		if err := gauss.SampleMVN(sy.W, sy.MfMu, sy.MfSigma, rng); err != nil {
			return fmt.Errorf("synapse %d -> %d: %w", i/ss.N, i%ss.N, err)
		}
	}
	return nil
}

// postFun calls fun on every postsynaptic neuron, divided into contiguous
// blocks across NThreads goroutines, each with its own random stream.
// Different posts never share activation buffers or synapse columns.
func (ss *SpikeAndSlab) postFun(fun func(post int, rng *rand.Rand) error) error {
	if ss.NThreads <= 1 {
		for post := 0; post < ss.N; post++ {
			if err := fun(post, ss.rands[0]); err != nil {
				return err
			}
		}
		return nil
	}
	var wg sync.WaitGroup
	errs := make([]error, ss.NThreads)
	per := (ss.N + ss.NThreads - 1) / ss.NThreads
	for th := 0; th < ss.NThreads; th++ {
		st := th * per
		ed := min(st+per, ss.N)
		wg.Add(1)
		go func(th, st, ed int) {
			defer wg.Done()
			for post := st; post < ed; post++ {
				if err := fun(post, ss.rands[th]); err != nil {
					errs[th] = err
					return
				}
			}
		}(th, st, ed)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// NoWeights is a weight model with no connections at all, leaving a
// bias-only baseline.
type NoWeights struct {
	N, B int
	zero []float64
}

func NewNoWeights(n, b int) *NoWeights {
	return &NoWeights{N: n, B: b, zero: make([]float64, b)}
}

func (nw *NoWeights) Resample(ds []*obs.Data) error              { return nil }
func (nw *NoWeights) MeanFieldUpdate(ds []*obs.Data) error       { return nil }
func (nw *NoWeights) SVIStep(ds []*obs.Data, f, s float64) error { return nil }
func (nw *NoWeights) VLB() float64                               { return 0 }
func (nw *NoWeights) ResampleFromMF() error                      { return nil }
func (nw *NoWeights) LogPrior() float64                          { return 0 }
func (nw *NoWeights) Connected(pre, post int) bool               { return false }
func (nw *NoWeights) WEffective(pre, post int) []float64         { return nw.zero }
func (nw *NoWeights) MfExpectedW(pre, post int) []float64        { return make([]float64, nw.B) }

func (nw *NoWeights) MfExpectedWWT(pre, post int) *mat.SymDense {
	return mat.NewSymDense(nw.B, nil)
}
