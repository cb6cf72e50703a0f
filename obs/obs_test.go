// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obs

import (
	"math"
	"testing"

	"github.com/emer/spikeglm/gauss"
	"github.com/emer/spikeglm/pgdraw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func covariates(t, n, b int) []*mat.Dense {
	f := make([]*mat.Dense, n)
	for i := range f {
		f[i] = mat.NewDense(t, b, nil)
	}
	return f
}

func TestNewNegativeBinomial(t *testing.T) {
	for _, xi := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := NewNegativeBinomial(xi)
		assert.ErrorIs(t, err, ErrDispersion, "xi %v", xi)
	}
	nb, err := NewNegativeBinomial(10)
	require.NoError(t, err)
	assert.Equal(t, 13.0, nb.B(3))
}

func TestNewDataShape(t *testing.T) {
	s := mat.NewDense(4, 2, nil)
	_, err := NewData(s, covariates(4, 1, 1))
	assert.ErrorIs(t, err, ErrShape)
	f := covariates(4, 2, 2)
	f[1] = mat.NewDense(3, 2, nil)
	_, err = NewData(s, f)
	assert.ErrorIs(t, err, ErrShape)
	d, err := NewData(s, covariates(4, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, d.B)

	sl, err := d.Slice(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, sl.T)
	_, err = d.Slice(3, 3)
	assert.ErrorIs(t, err, ErrShape)
}

func TestAugmentCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	nb, _ := NewNegativeBinomial(2)
	cases := []struct {
		fam Family
		s   []float64
		ok  bool
	}{
		{&Bernoulli{}, []float64{0, 1, 1, 0}, true},
		{&Bernoulli{}, []float64{0, 2, 1, 0}, false},
		{nb, []float64{0, 5, 1, 0}, true},
		{nb, []float64{0, -1, 1, 0}, false},
		{nb, []float64{0, 1.5, 1, 0}, false},
	}
	for i, c := range cases {
		ag := NewAugmenter(c.fam, rng)
		d, err := NewData(mat.NewDense(2, 2, c.s), covariates(2, 2, 1))
		require.NoError(t, err)
		err = ag.Augment(d)
		if c.ok {
			assert.NoError(t, err, "case %d", i)
		} else {
			assert.ErrorIs(t, err, ErrCounts, "case %d", i)
		}
	}
}

func TestKappa(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := mat.NewDense(2, 1, []float64{0, 3})
	d, err := NewData(s, covariates(2, 1, 1))
	require.NoError(t, err)

	ag := NewAugmenter(&Bernoulli{}, rng)
	k := ag.Kappa(d)
	assert.Equal(t, -0.5, k.At(0, 0))
	assert.Equal(t, 1.0, ag.B(d).At(1, 0))

	nb, _ := NewNegativeBinomial(10)
	ag = NewAugmenter(nb, rng)
	require.NoError(t, ag.Augment(d))
	assert.Equal(t, 13.0, d.Bv.At(1, 0))
	assert.Equal(t, 3-6.5, d.Kappa.At(1, 0))
	assert.Equal(t, 3.0, ag.A(d).At(1, 0))
	assert.InDelta(t, 2.5, d.MfOmega.At(0, 0), 1e-12)
	assert.Greater(t, d.Omega.At(1, 0), 0.0)
}

func TestLogProb(t *testing.T) {
	bf := &Bernoulli{}
	assert.InDelta(t, math.Log(gauss.Logistic(0.7)), LogProb(bf, 1, 0.7), 1e-12)
	assert.InDelta(t, math.Log(1-gauss.Logistic(0.7)), LogProb(bf, 0, 0.7), 1e-12)
	// far tails stay finite
	assert.InDelta(t, -1000.0, LogProb(bf, 1, -1000), 1e-9)

	nb, _ := NewNegativeBinomial(3)
	// pmf sums to one
	tot := 0.0
	for s := 0; s < 400; s++ {
		tot += math.Exp(LogProb(nb, float64(s), 0.5))
	}
	assert.InDelta(t, 1.0, tot, 1e-9)
}

func TestRvsMoments(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	nb, _ := NewNegativeBinomial(10)
	const n = 20000
	psi := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		psi.Set(i, 0, -1)
		psi.Set(i, 1, 0.5)
	}
	for _, fam := range []Family{&Bernoulli{}, nb} {
		ag := NewAugmenter(fam, rng)
		s := ag.Rvs(psi)
		es := ag.ExpectedS(psi)
		sd := ag.StdS(psi)
		for j := 0; j < 2; j++ {
			m := 0.0
			for i := 0; i < n; i++ {
				m += s.At(i, j)
			}
			m /= n
			assert.InDelta(t, es.At(0, j), m, 4*sd.At(0, j)/math.Sqrt(n), "%s col %d", fam.Name(), j)
		}
	}
	assert.InDelta(t, 10*math.Exp(0.5), nb.Mean(0.5), 1e-12)
}

func TestMeanFieldVLB(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	nb, _ := NewNegativeBinomial(4)
	s := mat.NewDense(3, 1, []float64{0, 2, 7})
	d, err := NewData(s, covariates(3, 1, 1))
	require.NoError(t, err)
	ag := NewAugmenter(nb, rng)
	require.NoError(t, ag.Augment(d))

	// a point mass q(psi) makes the bound tight at the optimal q(omega)
	psi := mat.NewDense(3, 1, []float64{-1, 0.3, 1.2})
	psiSq := mat.NewDense(3, 1, nil)
	psiSq.MulElem(psi, psi)
	ag.MeanFieldUpdate(d, psiSq)
	assert.InDelta(t, pgdraw.Mean(d.Bv.At(2, 0), 1.2), d.MfOmega.At(2, 0), 1e-12)
	assert.InDelta(t, ag.LogLikelihood(s, psi), ag.VLB(d, psi, psiSq), 1e-9)

	// any other q(omega) gives a lower bound
	ag.MeanFieldUpdate(d, mat.NewDense(3, 1, []float64{4, 4, 4}))
	assert.Less(t, ag.VLB(d, psi, psiSq), ag.LogLikelihood(s, psi))
}

func TestResample(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	const n = 5000
	s := mat.NewDense(n, 1, nil)
	d, err := NewData(s, covariates(n, 1, 1))
	require.NoError(t, err)
	ag := NewAugmenter(&Bernoulli{}, rng)
	require.NoError(t, ag.Augment(d))
	psi := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		psi.Set(i, 0, 2)
	}
	ag.Resample(d, psi)
	m := 0.0
	for i := 0; i < n; i++ {
		m += d.Omega.At(i, 0)
	}
	want := pgdraw.Mean(1, 2)
	assert.InDelta(t, want, m/n, 0.05*want)
}
