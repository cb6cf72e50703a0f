// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"math"
	"testing"

	"github.com/emer/spikeglm/gauss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestErdosRenyi(t *testing.T) {
	sig := mat.NewSymDense(2, []float64{1, 0, 0, 4})
	er, err := NewErdosRenyi(3, 0.2, []float64{0, 1}, sig)
	require.NoError(t, err)
	assert.Equal(t, 3, er.NNeurons())
	assert.Equal(t, 2, er.NBasis())
	assert.Equal(t, 0.2, er.P(1, 2))
	assert.InDelta(t, math.Log(0.2), er.MfExpectedLogP(0, 0), 1e-15)
	assert.InDelta(t, math.Log(0.8), er.MfExpectedLogNotP(0, 0), 1e-15)
	assert.InDelta(t, 0.25, er.MfExpectedSigmaInv(0, 1).At(1, 1), 1e-12)
	assert.InDelta(t, math.Log(4), er.MfExpectedLogDetSigma(2, 2), 1e-12)
	assert.Equal(t, 1.0, er.MfExpectedMuMuT(1, 1).At(1, 1))

	require.NoError(t, er.SetPair(0, 1, 1, []float64{-2, 0}, mat.NewSymDense(2, []float64{0.5, 0, 0, 0.5})))
	assert.Equal(t, 1.0, er.P(0, 1))
	assert.Equal(t, 0.2, er.P(1, 0))
	assert.Equal(t, []float64{-2, 0}, er.Mu(0, 1))
	assert.Equal(t, math.Inf(-1), er.MfExpectedLogNotP(0, 1))

	// expected prior quad term equals mu' Sigma^-1 mu for a fixed prior
	pr := mfPriorOf(er, 0, 1)
	ppr, err := priorOf(er, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, ppr.Quad, pr.Quad, 1e-12)
	assert.InDelta(t, 8.0, pr.Quad, 1e-12)

	assert.ErrorIs(t, er.SetPair(3, 0, 0.5, []float64{0, 0}, sig), ErrParams)
	assert.ErrorIs(t, er.SetPair(0, 0, 0.5, []float64{0}, sig), ErrParams)
	assert.ErrorIs(t, er.SetPair(0, 0, 1.5, []float64{0, 0}, sig), ErrParams)
	assert.ErrorIs(t, er.SetPair(0, 0, 0.5, []float64{0, 0}, mat.NewSymDense(2, nil)), gauss.ErrNotPosDef)

	_, err = NewErdosRenyi(0, 0.5, []float64{0}, mat.NewSymDense(1, []float64{1}))
	assert.ErrorIs(t, err, ErrParams)
	_, err = NewErdosRenyi(2, -0.1, []float64{0}, mat.NewSymDense(1, []float64{1}))
	assert.ErrorIs(t, err, ErrParams)
}
