// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package basis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestCosine(t *testing.T) {
	var bp Params
	bp.Defaults()
	bs, err := Cosine(&bp)
	require.NoError(t, err)
	r, c := bs.Dims()
	assert.Equal(t, 10, r)
	assert.Equal(t, 3, c)
	col := make([]float64, r)
	for b := 0; b < c; b++ {
		mat.Col(col, b, bs)
		assert.InDelta(t, 1.0, floats.Sum(col), 1e-12)
		assert.GreaterOrEqual(t, floats.Min(col), 0.0)
	}
	// first bump peaks at lag 1, last at the end of the window
	assert.Equal(t, 0, floats.MaxIdx(mat.Col(col, 0, bs)))
	assert.Equal(t, r-1, floats.MaxIdx(mat.Col(col, c-1, bs)))

	bp.NB = 0
	_, err = Cosine(&bp)
	assert.ErrorIs(t, err, ErrParams)

	one, err := Cosine(&Params{NB: 1, Window: 1, Offset: 1, Norm: true})
	require.NoError(t, err)
	assert.Equal(t, 1.0, one.At(0, 0))
}

func TestFilterCausal(t *testing.T) {
	s := mat.NewDense(5, 2, []float64{
		1, 0,
		0, 0,
		2, 1,
		0, 0,
		0, 0,
	})
	bs := mat.NewDense(2, 1, []float64{1, 0.5})
	f := Filter(s, bs)
	require.Len(t, f, 2)
	assert.Equal(t, []float64{0, 1, 0.5, 2, 1}, mat.Col(nil, 0, f[0]))
	assert.Equal(t, []float64{0, 0, 0, 1, 0.5}, mat.Col(nil, 0, f[1]))

	row := make([]float64, 1)
	for tt := 0; tt < 5; tt++ {
		FilterRow(row, func(i int) float64 { return s.At(i, 0) }, tt, bs)
		assert.Equal(t, f[0].At(tt, 0), row[0], "bin %d", tt)
	}

	id := Identity(2)
	fi := Filter(s, id)
	assert.Equal(t, []float64{0, 1, 0, 2, 0}, mat.Col(nil, 0, fi[0]))
	assert.Equal(t, []float64{0, 0, 1, 0, 2}, mat.Col(nil, 1, fi[0]))
}
