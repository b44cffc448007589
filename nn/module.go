// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides denoiser building blocks for scps-diffusion:
// parameters, a linear layer, sinusoidal time features, and an MLP
// noise-prediction model with a handwritten backward pass.
//
// Layers follow the diffusion tensor convention: activations are
// (features, B) with the batch axis last.
package nn

import (
	"github.com/FeMa42/scps-diffusion/tensor"
)

// Module is the base interface for trainable components.
type Module[T tensor.DType, B tensor.Backend] interface {
	// Parameters returns all trainable parameters, nested modules
	// included. Parameter-free components return an empty slice.
	Parameters() []*Parameter[T, B]

	// StateDict exports parameters by name for serialization.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict imports parameters from a state dictionary,
	// failing on missing names or shape disagreements.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}
