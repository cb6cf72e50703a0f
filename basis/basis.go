// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package basis turns raw spike trains into the covariates of the GLM:
each presynaptic spike train is convolved with a small set of temporal
basis functions over a finite window of past lags.

A basis is an L x B matrix whose row l is the weight of lag l+1 for each of
the B functions.  Lags start at 1, so a neuron's spike in bin t only affects
activations from bin t+1 on.
*/
package basis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrParams is returned for a basis with no functions or no lags.
var ErrParams = errors.New("basis: number of functions and lags must be positive")

// Params are the parameters of the raised cosine basis.
type Params struct {
	NB     int     `def:"3" min:"1" desc:"number of basis functions"`
	Window int     `def:"10" min:"1" desc:"number of past time bins covered by the basis"`
	Offset float64 `def:"1" min:"0" desc:"offset added to the lag before log stretching -- larger values make the bumps more evenly spaced in linear time"`
	Norm   bool    `def:"true" desc:"normalize each function to unit sum over lags"`
}

func (bp *Params) Defaults() {
	bp.NB = 3
	bp.Window = 10
	bp.Offset = 1
	bp.Norm = true
}

// Cosine returns a Window x NB basis of raised cosine bumps with centers
// evenly spaced in log(lag + Offset).
func Cosine(bp *Params) (*mat.Dense, error) {
	if bp.NB < 1 || bp.Window < 1 {
		return nil, fmt.Errorf("%w: NB = %d, Window = %d", ErrParams, bp.NB, bp.Window)
	}
	x0 := math.Log(1 + bp.Offset)
	x1 := math.Log(float64(bp.Window) + bp.Offset)
	spc := 1.0
	if bp.NB > 1 && x1 > x0 {
		spc = (x1 - x0) / float64(bp.NB-1)
	}
	bs := mat.NewDense(bp.Window, bp.NB, nil)
	for b := 0; b < bp.NB; b++ {
		ctr := x0 + float64(b)*spc
		for l := 0; l < bp.Window; l++ {
			x := math.Log(float64(l+1) + bp.Offset)
			arg := (x - ctr) * math.Pi / (2 * spc)
			if arg < -math.Pi || arg > math.Pi {
				continue
			}
			bs.Set(l, b, 0.5*(1+math.Cos(arg)))
		}
	}
	if bp.Norm {
		col := make([]float64, bp.Window)
		for b := 0; b < bp.NB; b++ {
			mat.Col(col, b, bs)
			if sm := floats.Sum(col); sm > 0 {
				floats.Scale(1/sm, col)
				bs.SetCol(b, col)
			}
		}
	}
	return bs, nil
}

// Identity returns an L x L basis in which function l is lag l+1 alone.
func Identity(l int) *mat.Dense {
	bs := mat.NewDense(l, l, nil)
	for i := 0; i < l; i++ {
		bs.Set(i, i, 1)
	}
	return bs
}

// Filter convolves every column of the T x N spike counts s with the
// L x B basis, returning N matrices of T x B:
// F[n][t,b] = sum_{l=1..L} s[t-l, n] basis[l-1, b].
func Filter(s mat.Matrix, basis mat.Matrix) []*mat.Dense {
	t, n := s.Dims()
	l, nb := basis.Dims()
	f := make([]*mat.Dense, n)
	for i := 0; i < n; i++ {
		fi := mat.NewDense(t, nb, nil)
		for st := 0; st < t; st++ {
			sv := s.At(st, i)
			if sv == 0 {
				continue
			}
			for lag := 1; lag <= l && st+lag < t; lag++ {
				row := fi.RawRowView(st + lag)
				for b := 0; b < nb; b++ {
					row[b] += sv * basis.At(lag-1, b)
				}
			}
		}
		f[i] = fi
	}
	return f
}

// FilterRow computes the covariate row of bin t from the spike history
// s[0:t] only, for forward simulation: dst[b] = sum_l s[t-l] basis[l-1, b].
func FilterRow(dst []float64, hist func(t int) float64, t int, basis mat.Matrix) {
	l, nb := basis.Dims()
	for b := 0; b < nb; b++ {
		dst[b] = 0
	}
	for lag := 1; lag <= l && t-lag >= 0; lag++ {
		sv := hist(t - lag)
		if sv == 0 {
			continue
		}
		for b := 0; b < nb; b++ {
			dst[b] += sv * basis.At(lag-1, b)
		}
	}
}
