// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package diffusion

import (
	"fmt"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// PredictStartFromNoise inverts the forward formula algebraically to
// recover the start point implied by a noised sample and a noise
// estimate:
//
//	x_0 = 1/sqrt(abar_t) * x_t - sqrt(1/abar_t - 1) * noise
//
// No clipping happens here; that is the reverse step's concern.
func (p *Process[T, B]) PredictStartFromNoise(xT *tensor.Tensor[T, B], timesteps []int, noise *tensor.Tensor[T, B]) (*tensor.Tensor[T, B], error) {
	batch := len(timesteps)
	if err := p.checkSample("xT", xT, batch); err != nil {
		return nil, err
	}
	if noise == nil {
		return nil, fmt.Errorf("%w: nil noise", ErrShapeMismatch)
	}
	if !noise.Shape().Equal(xT.Shape()) {
		return nil, fmt.Errorf("%w: noise has shape %v, want %v", ErrShapeMismatch, noise.Shape(), xT.Shape())
	}

	rank := len(xT.Shape())
	recip, err := p.extract(p.sqrtRecipAlphasCumprod, timesteps, rank)
	if err != nil {
		return nil, err
	}
	recipM1, err := p.extract(p.sqrtRecipAlphasCumprodM1, timesteps, rank)
	if err != nil {
		return nil, err
	}

	return recip.Mul(xT).Sub(recipM1.Mul(noise)), nil
}

// Denoise runs the injected model on x at the given timesteps and
// derives the start-point estimate from its noise prediction.
func (p *Process[T, B]) Denoise(x *tensor.Tensor[T, B], timesteps []int) (xStartHat, predictedNoise *tensor.Tensor[T, B], err error) {
	if err := p.checkSample("x", x, len(timesteps)); err != nil {
		return nil, nil, err
	}

	predictedNoise = p.denoiser.PredictNoise(x, timesteps)
	if predictedNoise == nil || !predictedNoise.Shape().Equal(x.Shape()) {
		return nil, nil, fmt.Errorf("%w: denoiser returned shape %v, want %v",
			ErrShapeMismatch, shapeOf(predictedNoise), x.Shape())
	}

	xStartHat, err = p.PredictStartFromNoise(x, timesteps, predictedNoise)
	if err != nil {
		return nil, nil, err
	}
	return xStartHat, predictedNoise, nil
}

func shapeOf[T tensor.DType, B tensor.Backend](t *tensor.Tensor[T, B]) tensor.Shape {
	if t == nil {
		return nil
	}
	return t.Shape()
}
