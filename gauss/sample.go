// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gauss

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// SampleMVN writes a draw from N(mu, sigma) into dst.
// sigma must be symmetric positive definite.
func SampleMVN(dst, mu []float64, sigma mat.Symmetric, rng *rand.Rand) error {
	nd, ok := distmv.NewNormal(mu, sigma, rng)
	if !ok {
		return fmt.Errorf("sample covariance: %w", ErrNotPosDef)
	}
	nd.Rand(dst)
	return nil
}
