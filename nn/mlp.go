// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"fmt"
	"math/rand"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// DenoiserMLP is a small noise-prediction network for flat samples:
//
//	h1  = tanh(Win @ x + Wt @ timeEmbed(t))
//	h2  = tanh(Wh @ h1)
//	out = Wout @ h2
//
// Activations are batch-last (features, B). The model satisfies
// diffusion.Denoiser via PredictNoise and carries a handwritten
// backward pass, so training needs no autodiff machinery.
type DenoiserMLP[T tensor.DType, B tensor.Backend] struct {
	dataDim   int
	hiddenDim int

	timeEmbed *TimeEmbedding[T, B]
	inputProj *Linear[T, B]
	timeProj  *Linear[T, B]
	hidden    *Linear[T, B]
	output    *Linear[T, B]

	// Forward activations kept for the backward pass. One in-flight
	// forward/backward pair per model; training is single-threaded.
	lastX   *tensor.Tensor[T, B]
	lastEmb *tensor.Tensor[T, B]
	lastH1  *tensor.Tensor[T, B]
	lastH2  *tensor.Tensor[T, B]
}

// NewDenoiserMLP creates a denoiser for samples of shape (dataDim, B)
// with the given hidden width and time-embedding dimension. Pass a
// seeded rng for reproducible initialization.
func NewDenoiserMLP[T tensor.DType, B tensor.Backend](dataDim, hiddenDim, timeDim int, rng *rand.Rand, backend B) *DenoiserMLP[T, B] {
	if dataDim <= 0 || hiddenDim <= 0 {
		panic("DenoiserMLP: dimensions must be positive")
	}

	return &DenoiserMLP[T, B]{
		dataDim:   dataDim,
		hiddenDim: hiddenDim,
		timeEmbed: NewTimeEmbedding[T, B](timeDim, backend),
		inputProj: NewLinear[T, B](dataDim, hiddenDim, rng, backend),
		timeProj:  NewLinear[T, B](timeDim, hiddenDim, rng, backend),
		hidden:    NewLinear[T, B](hiddenDim, hiddenDim, rng, backend),
		output:    NewLinear[T, B](hiddenDim, dataDim, rng, backend),
	}
}

// PredictNoise implements the diffusion.Denoiser contract for x of
// shape (dataDim, B).
func (m *DenoiserMLP[T, B]) PredictNoise(x *tensor.Tensor[T, B], timesteps []int) *tensor.Tensor[T, B] {
	shape := x.Shape()
	if len(shape) != 2 || shape[0] != m.dataDim || shape[1] != len(timesteps) {
		panic(fmt.Sprintf("DenoiserMLP: expected input (%d, %d), got %v", m.dataDim, len(timesteps), shape))
	}

	emb := m.timeEmbed.Forward(timesteps)
	h1 := m.inputProj.Forward(x).Add(m.timeProj.Forward(emb)).Tanh()
	h2 := m.hidden.Forward(h1).Tanh()

	m.lastX, m.lastEmb, m.lastH1, m.lastH2 = x, emb, h1, h2
	return m.output.Forward(h2)
}

// Backward accumulates parameter gradients from the loss gradient at
// the output of the last PredictNoise call.
func (m *DenoiserMLP[T, B]) Backward(gradOut *tensor.Tensor[T, B]) {
	if m.lastX == nil {
		panic("DenoiserMLP.Backward: no forward pass recorded")
	}

	dH2 := m.output.Backward(m.lastH2, gradOut)
	dZ2 := tanhGrad(dH2, m.lastH2)
	dH1 := m.hidden.Backward(m.lastH1, dZ2)
	dZ1 := tanhGrad(dH1, m.lastH1)
	m.inputProj.Backward(m.lastX, dZ1)
	m.timeProj.Backward(m.lastEmb, dZ1)
}

// tanhGrad maps the gradient through tanh: dz = dh * (1 - h^2) where h
// is the activation value.
func tanhGrad[T tensor.DType, B tensor.Backend](dh, h *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return dh.Mul(h.Mul(h).Neg().AddScalar(1))
}

// DataDim returns the sample feature dimension.
func (m *DenoiserMLP[T, B]) DataDim() int {
	return m.dataDim
}

// Parameters returns all trainable parameters.
func (m *DenoiserMLP[T, B]) Parameters() []*Parameter[T, B] {
	var params []*Parameter[T, B]
	for _, l := range m.layers() {
		params = append(params, l.Parameters()...)
	}
	return params
}

// ZeroGrad clears all parameter gradients.
func (m *DenoiserMLP[T, B]) ZeroGrad() {
	for _, p := range m.Parameters() {
		p.ZeroGrad()
	}
}

// StateDict exports all layer parameters under prefixed names.
func (m *DenoiserMLP[T, B]) StateDict() map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	for prefix, l := range m.namedLayers() {
		for name, raw := range l.StateDict() {
			out[prefix+"."+name] = raw
		}
	}
	return out
}

// LoadStateDict imports all layer parameters.
func (m *DenoiserMLP[T, B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for prefix, l := range m.namedLayers() {
		sub := make(map[string]*tensor.RawTensor)
		for name, raw := range stateDict {
			if len(name) > len(prefix)+1 && name[:len(prefix)+1] == prefix+"." {
				sub[name[len(prefix)+1:]] = raw
			}
		}
		if err := l.LoadStateDict(sub); err != nil {
			return fmt.Errorf("layer %s: %w", prefix, err)
		}
	}
	return nil
}

// String identifies the model in diagnostics.
func (m *DenoiserMLP[T, B]) String() string {
	return fmt.Sprintf("DenoiserMLP(data=%d, hidden=%d, time=%d)", m.dataDim, m.hiddenDim, m.timeEmbed.Dim())
}

func (m *DenoiserMLP[T, B]) layers() []*Linear[T, B] {
	return []*Linear[T, B]{m.inputProj, m.timeProj, m.hidden, m.output}
}

func (m *DenoiserMLP[T, B]) namedLayers() map[string]*Linear[T, B] {
	return map[string]*Linear[T, B]{
		"input_proj": m.inputProj,
		"time_proj":  m.timeProj,
		"hidden":     m.hidden,
		"output":     m.output,
	}
}
