// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/FeMa42/scps-diffusion/tensor"
)

// Parameter is a trainable tensor with an accumulated gradient.
type Parameter[T tensor.DType, B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[T, B]
	grad   *tensor.Tensor[T, B]
}

// NewParameter wraps an initialized tensor as a named parameter.
func NewParameter[T tensor.DType, B tensor.Backend](name string, t *tensor.Tensor[T, B]) *Parameter[T, B] {
	return &Parameter[T, B]{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter[T, B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[T, B]) Tensor() *tensor.Tensor[T, B] {
	return p.tensor
}

// Grad returns the accumulated gradient, or nil before any backward
// pass.
func (p *Parameter[T, B]) Grad() *tensor.Tensor[T, B] {
	return p.grad
}

// AccumGrad adds g to the accumulated gradient.
func (p *Parameter[T, B]) AccumGrad(g *tensor.Tensor[T, B]) {
	if p.grad == nil {
		p.grad = g
		return
	}
	p.grad = p.grad.Add(g)
}

// ZeroGrad clears the gradient. Call before each training step so
// gradients do not leak across iterations.
func (p *Parameter[T, B]) ZeroGrad() {
	p.grad = nil
}
