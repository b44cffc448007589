// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package diffusion

import (
	"fmt"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// Losses computes the simple DDPM training objective: noise a clean
// batch to the given timesteps, run the denoiser on the result, and
// take the mean squared error between its prediction and the injected
// noise. A nil noise is drawn standard-normal internally.
//
// It returns the scalar loss, the model prediction, and the noise
// target, so a training loop can backpropagate pred - noise through
// the model.
func (p *Process[T, B]) Losses(xStart *tensor.Tensor[T, B], timesteps []int, noise *tensor.Tensor[T, B]) (loss, pred, target *tensor.Tensor[T, B], err error) {
	if noise == nil {
		if err := p.checkSample("xStart", xStart, len(timesteps)); err != nil {
			return nil, nil, nil, err
		}
		noise = p.randn(xStart.Shape())
	}

	xT, err := p.QSample(xStart, timesteps, noise)
	if err != nil {
		return nil, nil, nil, err
	}

	pred = p.denoiser.PredictNoise(xT, timesteps)
	if pred == nil || !pred.Shape().Equal(xT.Shape()) {
		return nil, nil, nil, fmt.Errorf("%w: denoiser returned shape %v, want %v",
			ErrShapeMismatch, shapeOf(pred), xT.Shape())
	}

	diff := pred.Sub(noise)
	loss = diff.Mul(diff).Sum().DivScalar(T(diff.NumElements()))
	return loss, pred, noise, nil
}
