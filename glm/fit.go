// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"context"
	"math"
	"strings"

	"github.com/emer/emergent/v2/timer"
	"github.com/emer/spikeglm/obs"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Methods are the inference methods Fit can run.
type Methods int32

const (
	// Gibbs sampling
	Gibbs Methods = iota

	// MeanField is batch coordinate ascent variational inference
	MeanField

	// SVI is stochastic variational inference over minibatches
	SVI

	MethodsN
)

var methodNames = [...]string{"Gibbs", "MeanField", "SVI"}

func (mt Methods) String() string {
	if mt < 0 || mt >= MethodsN {
		return "Unknown"
	}
	return methodNames[mt]
}

// MethodFromString returns the method with the given name, case insensitive.
func MethodFromString(s string) (Methods, error) {
	for i, nm := range methodNames {
		if strings.EqualFold(nm, s) {
			return Methods(i), nil
		}
	}
	return 0, errorf("unknown inference method %q", s)
}

// FitParams control the inference loop of Fit.
type FitParams struct {
	Method      Methods `desc:"inference method"`
	NIters      int     `def:"100" min:"0" desc:"number of full iterations (sweeps) to run"`
	LogInterval int     `def:"10" min:"0" desc:"log progress every this many iterations -- 0 for never"`
	Burnin      int     `def:"0" min:"0" desc:"number of initial Gibbs iterations whose samples are not kept"`
	KeepSamples bool    `def:"true" desc:"record the adjacency, weights and biases after every kept iteration"`
	BatchSize   int     `viewif:"Method=SVI" def:"1000" min:"1" desc:"number of time bins per SVI minibatch"`
	Delay       float64 `viewif:"Method=SVI" def:"1" min:"0" desc:"SVI step size is (iter + Delay)^-Forget"`
	Forget      float64 `viewif:"Method=SVI" def:"0.5" min:"0" desc:"SVI step size is (iter + Delay)^-Forget -- in (0.5, 1] for convergence"`
}

func (fp *FitParams) Defaults() {
	fp.Method = Gibbs
	fp.NIters = 100
	fp.LogInterval = 10
	fp.Burnin = 0
	fp.KeepSamples = true
	fp.BatchSize = 1000
	fp.Delay = 1
	fp.Forget = 0.5
}

// StepSize is the SVI step size of iteration itr, at most 1.
func (fp *FitParams) StepSize(itr int) float64 {
	return math.Min(1, math.Pow(float64(itr)+fp.Delay, -fp.Forget))
}

// Trace records the progress of Fit, one entry per iteration, and the
// kept samples.  Samples are taken from the sampled state for Gibbs and
// from the variational means for the mean-field methods.
type Trace struct {
	Method Methods
	LogLik []float64 `desc:"log likelihood of the data after each Gibbs iteration"`
	VLB    []float64 `desc:"variational lower bound after each mean-field or SVI iteration"`

	Adjacency []*mat.Dense `desc:"kept N x N adjacency samples (Gibbs) or q(A = 1) (mean-field)"`
	Weights   [][]float64  `desc:"kept effective weights, flattened [(pre * N + post) * B + b]"`
	Biases    [][]float64  `desc:"kept biases"`
	Secs      float64      `desc:"total seconds spent in Fit"`
}

// InclusionFreq is the mean of the kept adjacency samples.
func (tr *Trace) InclusionFreq() *mat.Dense {
	if len(tr.Adjacency) == 0 {
		return nil
	}
	r, c := tr.Adjacency[0].Dims()
	f := mat.NewDense(r, c, nil)
	for _, a := range tr.Adjacency {
		f.Add(f, a)
	}
	f.Scale(1/float64(len(tr.Adjacency)), f)
	return f
}

// MeanWeights is the mean of the kept effective weights.
func (tr *Trace) MeanWeights() []float64 {
	if len(tr.Weights) == 0 {
		return nil
	}
	mw := make([]float64, len(tr.Weights[0]))
	for _, w := range tr.Weights {
		for i, v := range w {
			mw[i] += v
		}
	}
	for i := range mw {
		mw[i] /= float64(len(tr.Weights))
	}
	return mw
}

// Fit runs fp.NIters iterations of fp.Method on the data added so far.
// The context is only checked between iterations, so a sweep is never
// left half done; on cancellation the trace so far is returned with the
// context error.  logger may be nil.
func (m *Model) Fit(ctx context.Context, fp *FitParams, logger *zap.Logger) (*Trace, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fp.Method < 0 || fp.Method >= MethodsN {
		return nil, errorf("unknown inference method %d", fp.Method)
	}
	if fp.NIters < 0 {
		return nil, errorf("number of iterations %d is negative", fp.NIters)
	}
	tr := &Trace{Method: fp.Method}
	var tm timer.Time
	tm.Start()
	defer func() {
		tm.Stop()
		tr.Secs = tm.TotalSecs()
	}()

	var mbs []*obsBatch
	if fp.Method == SVI {
		var err error
		if mbs, err = m.svibatches(fp.BatchSize); err != nil {
			return nil, err
		}
	}

	logger.Info("fit start", zap.Stringer("method", fp.Method), zap.Int("neurons", m.N),
		zap.Int("bins", m.TotalT()), zap.Int("iters", fp.NIters), zap.String("family", m.Obs.Family.Name()))
	for itr := 0; itr < fp.NIters; itr++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("fit canceled", zap.Int("iter", itr), zap.Error(err))
			return tr, err
		}
		var err error
		switch fp.Method {
		case Gibbs:
			err = m.Resample()
		case MeanField:
			err = m.MeanFieldUpdate()
		case SVI:
			mb := mbs[itr%len(mbs)]
			err = m.SVIStep(mb.data, mb.frac, fp.StepSize(itr))
		}
		if err != nil {
			logger.Error("fit failed", zap.Int("iter", itr), zap.Error(err))
			return tr, err
		}

		var score float64
		if fp.Method == Gibbs {
			score = m.LogLikelihood()
			tr.LogLik = append(tr.LogLik, score)
		} else {
			score = m.VLB()
			tr.VLB = append(tr.VLB, score)
		}
		if fp.KeepSamples && (fp.Method != Gibbs || itr >= fp.Burnin) {
			m.recordSample(tr, fp.Method != Gibbs)
		}
		if fp.LogInterval > 0 && (itr+1)%fp.LogInterval == 0 {
			logger.Info("fit progress", zap.Stringer("method", fp.Method), zap.Int("iter", itr+1),
				zap.Float64("score", score), zap.Float64("edges", mat.Sum(m.Adjacency())))
		}
	}
	logger.Debug("fit timers", zap.String("report", m.TimerReport()))
	return tr, nil
}

func (m *Model) recordSample(tr *Trace, mf bool) {
	if !mf {
		tr.Adjacency = append(tr.Adjacency, m.Adjacency())
		tr.Weights = append(tr.Weights, m.WEffective())
		b, _ := m.NeuronValues("Bias")
		tr.Biases = append(tr.Biases, b)
		return
	}
	p := mat.NewDense(m.N, m.N, nil)
	w := make([]float64, 0, m.N*m.N*m.B)
	for pre := 0; pre < m.N; pre++ {
		for post := 0; post < m.N; post++ {
			ew := m.Weights.MfExpectedW(pre, post)
			w = append(w, ew...)
			if ss := m.SpikeAndSlab(); ss != nil {
				p.Set(pre, post, ss.Syn(pre, post).MfP)
			}
		}
	}
	tr.Adjacency = append(tr.Adjacency, p)
	tr.Weights = append(tr.Weights, w)
	b, _ := m.NeuronValues("MfBiasMu")
	tr.Biases = append(tr.Biases, b)
}

// obsBatch is an SVI minibatch and the fraction of all bins it holds.
type obsBatch struct {
	data []*obs.Data
	frac float64
}

func (m *Model) svibatches(size int) ([]*obsBatch, error) {
	mbs, err := m.Minibatches(size)
	if err != nil {
		return nil, err
	}
	if len(mbs) == 0 {
		return nil, errorf("no data to fit")
	}
	tot := float64(m.TotalT())
	bs := make([]*obsBatch, len(mbs))
	for i, mb := range mbs {
		bs[i] = &obsBatch{data: []*obs.Data{mb}, frac: float64(mb.T) / tot}
	}
	return bs, nil
}
