// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"math"

	"github.com/FeMa42/scps-diffusion/nn"
	"github.com/FeMa42/scps-diffusion/tensor"
)

// Adam implements Adam (Kingma & Ba, 2014):
//
//	m = beta1*m + (1-beta1)*grad
//	v = beta2*v + (1-beta2)*grad^2
//	param = param - lr * (m / (1-beta1^t)) / (sqrt(v / (1-beta2^t)) + eps)
type Adam[T tensor.DType, B tensor.Backend] struct {
	params []*nn.Parameter[T, B]
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	t      int
	m      map[*nn.Parameter[T, B]]*tensor.Tensor[T, B]
	v      map[*nn.Parameter[T, B]]*tensor.Tensor[T, B]
}

// AdamConfig holds Adam hyperparameters; zero values take the usual
// defaults (lr 1e-3, betas 0.9/0.999, eps 1e-8).
type AdamConfig struct {
	LR    float64
	Betas [2]float64
	Eps   float64
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam[T tensor.DType, B tensor.Backend](params []*nn.Parameter[T, B], config AdamConfig) *Adam[T, B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[T, B]{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter[T, B]]*tensor.Tensor[T, B]),
		v:      make(map[*nn.Parameter[T, B]]*tensor.Tensor[T, B]),
	}
}

// Step applies one Adam update. Parameters without a gradient are
// skipped.
func (a *Adam[T, B]) Step() {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	for _, param := range a.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}
		backend := param.Tensor().Backend()
		shape := param.Tensor().Shape()

		m, ok := a.m[param]
		if !ok {
			m = tensor.Zeros[T, B](shape, backend)
		}
		v, ok := a.v[param]
		if !ok {
			v = tensor.Zeros[T, B](shape, backend)
		}

		m = m.MulScalar(T(a.beta1)).Add(grad.MulScalar(T(1 - a.beta1)))
		v = v.MulScalar(T(a.beta2)).Add(grad.Mul(grad).MulScalar(T(1 - a.beta2)))
		a.m[param] = m
		a.v[param] = v

		mHat := m.DivScalar(T(bc1))
		vHat := v.DivScalar(T(bc2))
		update := mHat.Div(vHat.Sqrt().AddScalar(T(a.eps))).MulScalar(T(a.lr))

		applyInPlace(param.Tensor(), param.Tensor().Sub(update))
	}
}

// ZeroGrad clears all parameter gradients.
func (a *Adam[T, B]) ZeroGrad() {
	zeroGrads(a.params)
}

// LR returns the learning rate.
func (a *Adam[T, B]) LR() float64 {
	return a.lr
}
