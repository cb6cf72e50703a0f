// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"context"
	"math"
	"testing"

	"github.com/emer/spikeglm/obs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestMethods(t *testing.T) {
	for mt := Gibbs; mt < MethodsN; mt++ {
		got, err := MethodFromString(mt.String())
		require.NoError(t, err)
		assert.Equal(t, mt, got)
	}
	got, err := MethodFromString("meanfield")
	require.NoError(t, err)
	assert.Equal(t, MeanField, got)
	_, err = MethodFromString("hmc")
	assert.ErrorIs(t, err, ErrParams)
	assert.Equal(t, "Unknown", MethodsN.String())
}

func TestStepSize(t *testing.T) {
	fp := &FitParams{}
	fp.Defaults()
	assert.Equal(t, 1.0, fp.StepSize(0))
	assert.InDelta(t, 0.5, fp.StepSize(3), 1e-12)
	assert.Greater(t, fp.StepSize(10), fp.StepSize(11))
}

// A neuron that inhibits itself is found by Gibbs sampling.
func TestGibbsRecoversSelfInhibition(t *testing.T) {
	s := selfInhibitedCounts(t, 5000, -2)
	m := newTestModel(t, 2, 1, 0.5, &obs.Bernoulli{}, nil)
	_, err := m.AddData(s)
	require.NoError(t, err)

	fp := &FitParams{}
	fp.Defaults()
	fp.NIters = 200
	fp.Burnin = 20
	fp.LogInterval = 50
	tr, err := m.Fit(context.Background(), fp, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Len(t, tr.LogLik, 200)
	require.Len(t, tr.Adjacency, 180)
	assert.Len(t, tr.Biases, 180)
	assert.Greater(t, tr.Secs, 0.0)

	assert.Greater(t, tr.InclusionFreq().At(0, 0), 0.8)
	w := tr.MeanWeights()
	assert.True(t, w[0] > -3 && w[0] < -1, "self weight %v", w[0])
	checkSpikeAndSlab(t, m.SpikeAndSlab())
}

// Mean-field inference turns every edge off when the counts are
// independent negative binomial draws.
func TestMeanFieldPrunesIndependent(t *testing.T) {
	const T = 20000
	fam, err := obs.NewNegativeBinomial(10)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(23))
	s := mat.NewDense(T, 2, nil)
	for tt := 0; tt < T; tt++ {
		for n := 0; n < 2; n++ {
			s.Set(tt, n, fam.Rand(-3, rng))
		}
	}

	pars := &Params{}
	pars.Defaults()
	pars.Bias.Mu = -3
	m := newTestModel(t, 2, 1, 0.1, fam, pars)
	_, err = m.AddData(s)
	require.NoError(t, err)
	for i := range m.SpikeAndSlab().Syns {
		require.Equal(t, 0.5, m.SpikeAndSlab().Syns[i].MfP)
	}

	fp := &FitParams{}
	fp.Defaults()
	fp.Method = MeanField
	fp.NIters = 50
	fp.LogInterval = 0
	tr, err := m.Fit(context.Background(), fp, nil)
	require.NoError(t, err)
	assert.Len(t, tr.VLB, 50)
	p := tr.Adjacency[len(tr.Adjacency)-1]
	for pre := 0; pre < 2; pre++ {
		for post := 0; post < 2; post++ {
			assert.Less(t, p.At(pre, post), 0.1, "edge %d -> %d", pre, post)
		}
	}
	assert.InDelta(t, -3, m.Neurons[0].MfBiasMu, 0.1)
}

func checkMonotone(t *testing.T, vlb []float64) {
	t.Helper()
	for i := 1; i < len(vlb); i++ {
		assert.False(t, math.IsNaN(vlb[i]))
		assert.GreaterOrEqual(t, vlb[i], vlb[i-1]-1e-6*math.Abs(vlb[i-1]), "iteration %d", i)
	}
}

func TestMeanFieldVLBMonotone(t *testing.T) {
	for _, noisy := range []bool{false, true} {
		pars := &Params{}
		pars.Defaults()
		pars.Noise.On = noisy
		m := newTestModel(t, 2, 1, 0.5, &obs.Bernoulli{}, pars)
		_, err := m.AddData(selfInhibitedCounts(t, 1000, -2))
		require.NoError(t, err)

		fp := &FitParams{}
		fp.Defaults()
		fp.Method = MeanField
		fp.NIters = 20
		fp.KeepSamples = false
		tr, err := m.Fit(context.Background(), fp, nil)
		require.NoError(t, err)
		assert.Len(t, tr.Adjacency, 0)
		checkMonotone(t, tr.VLB)
	}
}

func TestMeanFieldThreads(t *testing.T) {
	s := randomCounts(300, 3, 0.3, 29)
	var ps []*mat.Dense
	for _, nthr := range []int{1, 3} {
		pars := &Params{}
		pars.Defaults()
		pars.NThreads = nthr
		m := newTestModel(t, 3, 2, 0.5, &obs.Bernoulli{}, pars)
		_, err := m.AddData(s)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			require.NoError(t, m.MeanFieldUpdate())
		}
		p, err := m.SpikeAndSlab().SynValues("MfP")
		require.NoError(t, err)
		ps = append(ps, p)
	}
	assert.True(t, mat.EqualApprox(ps[0], ps[1], 1e-12))
}

func TestFitSVI(t *testing.T) {
	m := newTestModel(t, 2, 1, 0.5, &obs.Bernoulli{}, nil)
	_, err := m.AddData(selfInhibitedCounts(t, 1000, -2))
	require.NoError(t, err)

	fp := &FitParams{}
	fp.Defaults()
	fp.Method = SVI
	fp.NIters = 12
	fp.BatchSize = 250
	tr, err := m.Fit(context.Background(), fp, nil)
	require.NoError(t, err)
	assert.Len(t, tr.VLB, 12)
	assert.Len(t, tr.Adjacency, 12)
	for _, v := range tr.VLB {
		assert.False(t, math.IsNaN(v))
	}
	checkSpikeAndSlab(t, m.SpikeAndSlab())
	// the minibatches are private to Fit
	assert.Len(t, m.Data, 1)
}

func TestFitCanceled(t *testing.T) {
	m := newTestModel(t, 2, 1, 0.5, &obs.Bernoulli{}, nil)
	_, err := m.AddData(randomCounts(100, 2, 0.3, 31))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fp := &FitParams{}
	fp.Defaults()
	tr, err := m.Fit(ctx, fp, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, tr)
	assert.Len(t, tr.LogLik, 0)

	fp.Method = MethodsN
	_, err = m.Fit(context.Background(), fp, nil)
	assert.ErrorIs(t, err, ErrParams)
}

func TestFitFromMF(t *testing.T) {
	m := newTestModel(t, 2, 1, 0.5, &obs.Bernoulli{}, nil)
	_, err := m.AddData(selfInhibitedCounts(t, 2000, -2))
	require.NoError(t, err)
	fp := &FitParams{}
	fp.Defaults()
	fp.Method = MeanField
	fp.NIters = 20
	_, err = m.Fit(context.Background(), fp, nil)
	require.NoError(t, err)

	// starting the sampler from the variational posterior keeps the edge
	require.NoError(t, m.ResampleFromMF())
	fp.Method = Gibbs
	fp.NIters = 20
	tr, err := m.Fit(context.Background(), fp, nil)
	require.NoError(t, err)
	assert.Greater(t, tr.InclusionFreq().At(0, 0), 0.8)
	assert.False(t, math.IsInf(m.LogPrior(), 0))
}
