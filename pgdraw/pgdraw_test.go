// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pgdraw

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

func TestMean(t *testing.T) {
	assert.InDelta(t, 0.25, Mean(1, 0), 1e-12)
	assert.InDelta(t, 2.5, Mean(10, 0), 1e-12)
	assert.InDelta(t, math.Tanh(1.5)/6, Mean(1, 3), 1e-12)
	assert.InDelta(t, Mean(1, -3), Mean(1, 3), 1e-12)
	// continuity across the small-z branch
	assert.InDelta(t, Mean(1, 1.1e-6), Mean(1, 0.9e-6), 1e-9)
}

func TestDrawMoments(t *testing.T) {
	ps := NewSampler(rand.New(rand.NewSource(1)))
	const n = 20000

	cases := []struct{ b, z float64 }{
		{1, 0},
		{1, 1},
		{1, -4},
		{3, 2},
		{2.5, 1.5},
		{10.5, 0.5},
	}
	xs := make([]float64, n)
	for _, c := range cases {
		for i := range xs {
			xs[i] = ps.Draw(c.b, c.z)
			if xs[i] <= 0 || math.IsNaN(xs[i]) {
				t.Fatalf("PG(%v,%v) draw not positive: %v", c.b, c.z, xs[i])
			}
		}
		mean := stat.Mean(xs, nil)
		cor := Mean(c.b, c.z)
		assert.InDelta(t, cor, mean, 0.03*cor+0.003, "PG(%v,%v) mean", c.b, c.z)
	}
}

func TestDrawVec(t *testing.T) {
	ps := NewSampler(rand.New(rand.NewSource(7)))
	b := []float64{1, 2, 1, 4}
	z := []float64{0, 0.5, -2, 3}
	out := make([]float64, len(b))
	ps.DrawVec(b, z, out)
	for i, v := range out {
		assert.Greater(t, v, 0.0, "idx %d", i)
	}
}
