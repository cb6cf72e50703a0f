// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"errors"
	"fmt"
	"math"
)

// ErrParams is returned for parameter values outside their valid range.
var ErrParams = errors.New("glm: invalid parameters")

// BiasParams are the Gaussian prior on each neuron's bias.
type BiasParams struct {
	Mu      float64 `def:"-1" desc:"prior mean of the bias -- negative values favor sparse firing"`
	SigmaSq float64 `def:"1" min:"0" desc:"prior variance of the bias"`
}

func (bp *BiasParams) Defaults() {
	bp.Mu = -1
	bp.SigmaSq = 1
}

func (bp *BiasParams) Update() {
}

// NoiseParams are the activation noise of noisy neurons, whose activation
// is drawn as psi ~ N(bias + filtered input, eta) with an inverse gamma
// prior on the variance eta.
type NoiseParams struct {
	On     bool    `desc:"add Gaussian noise with variance eta to the activation"`
	Alpha0 float64 `viewif:"On" def:"3" min:"0" desc:"inverse gamma prior shape on eta"`
	Beta0  float64 `viewif:"On" def:"0.5" min:"0" desc:"inverse gamma prior scale on eta"`
	Eta0   float64 `viewif:"On" view:"-" desc:"initial eta, the prior mean Beta0 / (Alpha0 - 1), or the mode when Alpha0 <= 1"`
}

func (np *NoiseParams) Defaults() {
	np.On = false
	np.Alpha0 = 3
	np.Beta0 = 0.5
	np.Update()
}

func (np *NoiseParams) Update() {
	if np.Alpha0 > 1 {
		np.Eta0 = np.Beta0 / (np.Alpha0 - 1)
	} else {
		np.Eta0 = np.Beta0 / (np.Alpha0 + 1)
	}
}

// WeightParams are the initial values of the variational weight factors.
type WeightParams struct {
	MfPInit     float64 `def:"0.5" min:"0" max:"1" desc:"initial q(A = 1) of every synapse"`
	MfSigmaInit float64 `def:"1" min:"0" desc:"initial variance of q(W | A = 1), times identity"`
}

func (wp *WeightParams) Defaults() {
	wp.MfPInit = 0.5
	wp.MfSigmaInit = 1
}

func (wp *WeightParams) Update() {
}

// Params are the parameters of a Model.
type Params struct {
	Seed     uint64 `def:"1" desc:"seed of the model random number generator"`
	NThreads int    `def:"1" min:"1" desc:"number of goroutines across which postsynaptic neurons are divided in the weight updates -- 1 runs everything in the calling goroutine"`

	Bias  BiasParams   `view:"inline" desc:"bias prior"`
	Noise NoiseParams  `view:"inline" desc:"activation noise"`
	Wt    WeightParams `view:"inline" desc:"variational weight initialization"`
}

func (pp *Params) Defaults() {
	pp.Seed = 1
	pp.NThreads = 1
	pp.Bias.Defaults()
	pp.Noise.Defaults()
	pp.Wt.Defaults()
}

// Update must be called after any changes to parameters
func (pp *Params) Update() {
	if pp.NThreads < 1 {
		pp.NThreads = 1
	}
	pp.Bias.Update()
	pp.Noise.Update()
	pp.Wt.Update()
}

// Validate checks the ranges of the parameters.
func (pp *Params) Validate() error {
	switch {
	case !(pp.Bias.SigmaSq > 0):
		return errorf("bias prior variance %v must be positive", pp.Bias.SigmaSq)
	case pp.Noise.On && !(pp.Noise.Alpha0 > 0 && pp.Noise.Beta0 > 0):
		return errorf("noise prior alpha %v and beta %v must be positive", pp.Noise.Alpha0, pp.Noise.Beta0)
	case !(pp.Wt.MfPInit >= 0 && pp.Wt.MfPInit <= 1):
		return errorf("initial connection probability %v not in [0,1]", pp.Wt.MfPInit)
	case !(pp.Wt.MfSigmaInit > 0) || math.IsInf(pp.Wt.MfSigmaInit, 1):
		return errorf("initial weight variance %v must be positive", pp.Wt.MfSigmaInit)
	}
	return nil
}

func errorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrParams}, args...)...)
}
