// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"testing"

	"github.com/emer/spikeglm/obs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// checkSpikeAndSlab asserts A is binary and W is zero wherever A is 0.
func checkSpikeAndSlab(t *testing.T, ss *SpikeAndSlab) {
	t.Helper()
	for i := range ss.Syns {
		sy := &ss.Syns[i]
		assert.True(t, sy.A == 0 || sy.A == 1, "synapse %d: A = %v", i, sy.A)
		if sy.A == 0 {
			for _, w := range sy.W {
				assert.Equal(t, 0.0, w, "synapse %d disconnected with nonzero weight", i)
			}
		}
		assert.True(t, sy.MfP >= 0 && sy.MfP <= 1, "synapse %d: mf p = %v", i, sy.MfP)
	}
}

func TestGibbsInvariants(t *testing.T) {
	for _, nthr := range []int{1, 2} {
		pars := &Params{}
		pars.Defaults()
		pars.NThreads = nthr
		m := newTestModel(t, 3, 2, 0.5, &obs.Bernoulli{}, pars)
		_, err := m.AddData(randomCounts(400, 3, 0.3, 11))
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			require.NoError(t, m.Resample())
			checkSpikeAndSlab(t, m.SpikeAndSlab())
		}
	}
}

func TestForcedConnectivity(t *testing.T) {
	for _, rho := range []float64{0, 1} {
		m := newTestModel(t, 2, 2, rho, &obs.Bernoulli{}, nil)
		_, err := m.AddData(randomCounts(200, 2, 0.3, 13))
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			require.NoError(t, m.Resample())
			assert.Equal(t, 4*rho, mat.Sum(m.Adjacency()), "rho %v", rho)
		}
		for i := 0; i < 3; i++ {
			require.NoError(t, m.MeanFieldUpdate())
		}
		p, err := m.SpikeAndSlab().SynValues("MfP")
		require.NoError(t, err)
		for pre := 0; pre < 2; pre++ {
			for post := 0; post < 2; post++ {
				assert.Equal(t, rho, p.At(pre, post), "rho %v", rho)
			}
		}
		checkSpikeAndSlab(t, m.SpikeAndSlab())
	}
}

func TestMfExpectedWWT(t *testing.T) {
	m := newTestModel(t, 2, 2, 0.5, &obs.Bernoulli{}, nil)
	ss := m.SpikeAndSlab()
	sy := ss.Syn(0, 1)
	sy.MfP = 0.25
	sy.MfMu[0], sy.MfMu[1] = 1, -2
	sy.MfSigma = mat.NewSymDense(2, []float64{0.5, 0.1, 0.1, 0.3})

	exp := mat.NewSymDense(2, []float64{1.5, -1.9, -1.9, 4.3})
	assert.True(t, mat.EqualApprox(exp, ss.MfExpectedWWTGivenA(0, 1, true), 1e-12))
	assert.Equal(t, 0.0, mat.Sum(ss.MfExpectedWWTGivenA(0, 1, false)))
	assert.Equal(t, []float64{0, 0}, ss.MfExpectedWGivenA(0, 1, false))
	assert.Equal(t, []float64{1, -2}, ss.MfExpectedWGivenA(0, 1, true))

	exp.ScaleSym(0.25, exp)
	assert.True(t, mat.EqualApprox(exp, ss.MfExpectedWWT(0, 1), 1e-12))
	assert.InDeltaSlice(t, []float64{0.25, -0.5}, ss.MfExpectedW(0, 1), 1e-15)
}

func TestResampleFromMF(t *testing.T) {
	m := newTestModel(t, 2, 2, 0.5, &obs.Bernoulli{}, nil)
	ss := m.SpikeAndSlab()
	ps := []float64{0, 0.3, 0.7, 1}
	for i := range ss.Syns {
		ss.Syns[i].MfP = ps[i]
		ss.Syns[i].MfMu[0] = 2
	}
	const ndraw = 1000
	freq := make([]float64, len(ss.Syns))
	wsum := 0.0
	for i := 0; i < ndraw; i++ {
		require.NoError(t, m.ResampleFromMF())
		checkSpikeAndSlab(t, ss)
		for j := range ss.Syns {
			freq[j] += ss.Syns[j].A / ndraw
		}
		if ss.Syns[3].Connected() {
			wsum += ss.Syns[3].W[0]
		}
	}
	for j, p := range ps {
		assert.InDelta(t, p, freq[j], 0.05, "synapse %d", j)
	}
	assert.InDelta(t, 2, wsum/ndraw, 0.15)
}

func TestInitializeWithStandardModel(t *testing.T) {
	m := newTestModel(t, 2, 2, 0.5, &obs.Bernoulli{}, nil)
	ss := m.SpikeAndSlab()
	assert.ErrorIs(t, ss.InitializeWithStandardModel(make([]float64, 3)), ErrParams)

	w := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, ss.InitializeWithStandardModel(w))
	assert.Equal(t, 4.0, mat.Sum(ss.Adjacency()))
	assert.Equal(t, w, ss.WeightValues())
	assert.Equal(t, w, m.WEffective())
	sy := ss.Syn(1, 0)
	assert.Equal(t, 0.9, sy.MfP)
	assert.Equal(t, []float64{5, 6}, sy.MfMu)
	assert.Equal(t, 0.05, sy.MfSigma.At(1, 1))
	assert.Equal(t, 0.0, sy.MfSigma.At(0, 1))

	// the synapse accessors do not alias the standard model weights
	w[0] = -1
	assert.Equal(t, 1.0, ss.Syn(0, 0).W[0])
}

func TestSynapseVars(t *testing.T) {
	var sy Synapse
	sy.init(2, 0.4, 1)
	assert.False(t, sy.Connected())
	v, err := sy.VarByName("MfP")
	require.NoError(t, err)
	assert.Equal(t, 0.4, v)
	_, err = sy.VarByName("W")
	assert.Error(t, err)

	sy.A = 1
	sy.W[1] = 3
	sy.Disconnect()
	assert.Equal(t, []float64{0, 0}, sy.W)
	assert.Equal(t, 0.0, sy.A)
}

func TestSVIStepErrors(t *testing.T) {
	m := newTestModel(t, 2, 1, 0.5, &obs.Bernoulli{}, nil)
	d, err := m.AddData(randomCounts(100, 2, 0.3, 19))
	require.NoError(t, err)
	ds := []*obs.Data{d}
	assert.ErrorIs(t, m.SVIStep(ds, 0, 0.5), ErrParams)
	assert.ErrorIs(t, m.SVIStep(ds, 0.5, 1.5), ErrParams)
	assert.ErrorIs(t, m.SpikeAndSlab().SVIStep(ds, 1.5, 0.5), ErrParams)
	require.NoError(t, m.SVIStep(ds, 0.5, 0.5))
	checkSpikeAndSlab(t, m.SpikeAndSlab())
}
