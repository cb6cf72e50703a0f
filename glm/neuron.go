// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"fmt"
	"math"
	"reflect"

	"gonum.org/v1/gonum/mathext"
)

// glm.Neuron holds the per-neuron parameters: the bias, the activation
// noise variance, and their variational factors
// q(bias) = N(MfBiasMu, MfBiasVar), q(eta) = InvGamma(MfEtaAlpha, MfEtaBeta).
type Neuron struct {
	Bias float64 `desc:"baseline activation"`
	Eta  float64 `desc:"variance of the activation noise (noisy neurons only)"`

	MfBiasMu   float64 `desc:"variational mean of the bias"`
	MfBiasVar  float64 `desc:"variational variance of the bias"`
	MfEtaAlpha float64 `desc:"variational inverse gamma shape of eta"`
	MfEtaBeta  float64 `desc:"variational inverse gamma scale of eta"`
}

var NeuronVars = []string{"Bias", "Eta", "MfBiasMu", "MfBiasVar", "MfEtaAlpha", "MfEtaBeta"}

var NeuronVarsMap map[string]int

func init() {
	NeuronVarsMap = make(map[string]int, len(NeuronVars))
	for i, v := range NeuronVars {
		NeuronVarsMap[v] = i
	}
}

func (nrn *Neuron) VarNames() []string {
	return NeuronVars
}

// NeuronVarIdxByName returns the index of the variable in the Neuron, or error
func NeuronVarIdxByName(varNm string) (int, error) {
	i, ok := NeuronVarsMap[varNm]
	if !ok {
		return -1, fmt.Errorf("Neuron VarByName: variable name: %v not valid", varNm)
	}
	return i, nil
}

// VarByIndex returns variable using index (0 = first variable in NeuronVars list)
func (nrn *Neuron) VarByIndex(idx int) float64 {
	v := reflect.ValueOf(*nrn)
	return v.Field(idx).Float()
}

// VarByName returns variable by name, or error
func (nrn *Neuron) VarByName(varNm string) (float64, error) {
	i, err := NeuronVarIdxByName(varNm)
	if err != nil {
		return 0, err
	}
	return nrn.VarByIndex(i), nil
}

// MfExpectedBiasSq is E[bias^2] under q.
func (nrn *Neuron) MfExpectedBiasSq() float64 {
	return nrn.MfBiasVar + nrn.MfBiasMu*nrn.MfBiasMu
}

// MfExpectedEtaInv is E[1 / eta] = alpha / beta under q.
func (nrn *Neuron) MfExpectedEtaInv() float64 {
	return nrn.MfEtaAlpha / nrn.MfEtaBeta
}

// MfExpectedLogEta is E[ln eta] = ln beta - digamma(alpha) under q.
func (nrn *Neuron) MfExpectedLogEta() float64 {
	return math.Log(nrn.MfEtaBeta) - mathext.Digamma(nrn.MfEtaAlpha)
}
