// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"fmt"
	"reflect"

	"gonum.org/v1/gonum/mat"
)

// glm.Synapse holds the spike-and-slab state of one ordered pair pre -> post:
// the sampled indicator and weight, and their variational factors
// q(A) = Bern(MfP), q(W | A = 1) = N(MfMu, MfSigma).
type Synapse struct {
	A   float64 `desc:"connection indicator, 1 if present, 0 if absent"`
	MfP float64 `desc:"variational probability that the connection is present"`

	W       []float64     `desc:"weight vector over the basis functions -- exactly 0 when A = 0"`
	MfMu    []float64     `desc:"variational mean of the weight given A = 1"`
	MfSigma *mat.SymDense `desc:"variational covariance of the weight given A = 1"`
}

// SynapseVars are the scalar variables of a Synapse.
var SynapseVars = []string{"A", "MfP"}

var SynapseVarsMap map[string]int

func init() {
	SynapseVarsMap = make(map[string]int, len(SynapseVars))
	for i, v := range SynapseVars {
		SynapseVarsMap[v] = i
	}
}

func (sy *Synapse) VarNames() []string {
	return SynapseVars
}

// SynapseVarByName returns the index of the variable in the Synapse, or error
func SynapseVarByName(varNm string) (int, error) {
	i, ok := SynapseVarsMap[varNm]
	if !ok {
		return 0, fmt.Errorf("Synapse VarByName: variable name: %v not valid", varNm)
	}
	return i, nil
}

// VarByIndex returns variable using index (0 = first variable in SynapseVars list)
func (sy *Synapse) VarByIndex(idx int) float64 {
	v := reflect.ValueOf(*sy)
	return v.Field(idx).Float()
}

// VarByName returns variable by name, or error
func (sy *Synapse) VarByName(varNm string) (float64, error) {
	i, err := SynapseVarByName(varNm)
	if err != nil {
		return 0, err
	}
	return sy.VarByIndex(i), nil
}

// init allocates the vectors for weight dimension b, disconnected, with
// q(A) = Bern(p) and q(W | A = 1) = N(0, sig I).
func (sy *Synapse) init(b int, p, sig float64) {
	sy.A = 0
	sy.W = make([]float64, b)
	sy.MfP = p
	sy.MfMu = make([]float64, b)
	sy.MfSigma = mat.NewSymDense(b, nil)
	for i := 0; i < b; i++ {
		sy.MfSigma.SetSym(i, i, sig)
	}
}

// Connected is A == 1.
func (sy *Synapse) Connected() bool {
	return sy.A == 1
}

// Disconnect sets A = 0 and zeroes the weight.
func (sy *Synapse) Disconnect() {
	sy.A = 0
	for i := range sy.W {
		sy.W[i] = 0
	}
}
