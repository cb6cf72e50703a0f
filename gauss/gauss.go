// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package gauss has the conjugate Gaussian / Bernoulli algebra shared by every
inference regime: likelihood sufficient statistics in natural (precision,
mean-dot-precision) form, priors and posteriors built from them by solving
linear systems through a Cholesky factorization, spike-and-slab log posterior
odds, and the entropy terms of the variational lower bound.

All probabilities are handled in log-odds space with numerically stable
logistic / softplus forms, so no probability clipping is needed anywhere:
Logit(0) is -Inf, Logistic(-Inf) is exactly 0, and 0 * log(0) is taken as 0.
*/
package gauss

import "math"

// Logistic returns 1 / (1 + exp(-x)) without overflow for large |x|.
func Logistic(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	ex := math.Exp(x)
	return ex / (1 + ex)
}

// Logit returns log(p / (1-p)), which is -Inf at p = 0 and +Inf at p = 1.
func Logit(p float64) float64 {
	return math.Log(p) - math.Log1p(-p)
}

// Softplus returns log(1 + exp(x)).
func Softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}

// LogCosh returns log(cosh(x)).
func LogCosh(x float64) float64 {
	ax := math.Abs(x)
	return ax + math.Log1p(math.Exp(-2*ax)) - math.Ln2
}

// XLogY returns x * log(y), defined as 0 when x == 0 whatever y is.
func XLogY(x, y float64) float64 {
	if x == 0 {
		return 0
	}
	return x * math.Log(y)
}

// xTimes returns x * y with 0 * Inf taken as 0.
func xTimes(x, y float64) float64 {
	if x == 0 {
		return 0
	}
	return x * y
}
