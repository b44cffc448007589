// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim implements optimizers for training denoiser models.
//
// Gradients live on the parameters themselves (accumulated by the
// models' backward passes); Step consumes them and updates parameter
// values in place.
//
// Example:
//
//	opt := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 1e-3})
//	for step := 0; step < steps; step++ {
//	    opt.ZeroGrad()
//	    backpropagate(model, batch)
//	    opt.Step()
//	}
package optim

import (
	"github.com/FeMa42/scps-diffusion/nn"
	"github.com/FeMa42/scps-diffusion/tensor"
)

// Optimizer is the interface shared by all optimization algorithms.
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient.
	Step()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// LR returns the current learning rate.
	LR() float64
}

// applyInPlace writes src into dst's memory, keeping the parameter
// tensor identity stable across updates.
func applyInPlace[T tensor.DType, B tensor.Backend](dst, src *tensor.Tensor[T, B]) {
	copy(dst.Data(), src.Data())
}

// zeroGrads clears gradients on a parameter list.
func zeroGrads[T tensor.DType, B tensor.Backend](params []*nn.Parameter[T, B]) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
