// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/FeMa42/scps-diffusion/nn"
	"github.com/FeMa42/scps-diffusion/tensor"
)

// SGD implements stochastic gradient descent with optional momentum:
//
//	v = momentum * v + grad
//	param = param - lr * v
type SGD[T tensor.DType, B tensor.Backend] struct {
	params   []*nn.Parameter[T, B]
	lr       float64
	momentum float64
	velocity map[*nn.Parameter[T, B]]*tensor.Tensor[T, B]
}

// SGDConfig holds SGD hyperparameters.
type SGDConfig struct {
	LR       float64 // learning rate (default 0.01)
	Momentum float64 // momentum factor (0 disables)
}

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD[T tensor.DType, B tensor.Backend](params []*nn.Parameter[T, B], config SGDConfig) *SGD[T, B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[T, B]{
		params:   params,
		lr:       config.LR,
		momentum: config.Momentum,
		velocity: make(map[*nn.Parameter[T, B]]*tensor.Tensor[T, B]),
	}
}

// Step applies one SGD update. Parameters without a gradient are
// skipped.
func (s *SGD[T, B]) Step() {
	for _, param := range s.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}

		update := grad
		if s.momentum != 0 {
			v, ok := s.velocity[param]
			if !ok {
				v = tensor.Zeros[T, B](param.Tensor().Shape(), param.Tensor().Backend())
			}
			v = v.MulScalar(T(s.momentum)).Add(grad)
			s.velocity[param] = v
			update = v
		}

		applyInPlace(param.Tensor(), param.Tensor().Sub(update.MulScalar(T(s.lr))))
	}
}

// ZeroGrad clears all parameter gradients.
func (s *SGD[T, B]) ZeroGrad() {
	zeroGrads(s.params)
}

// LR returns the learning rate.
func (s *SGD[T, B]) LR() float64 {
	return s.lr
}
