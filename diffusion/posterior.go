// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package diffusion

import (
	"fmt"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// QPosteriorMeanVariance computes the exact Bayesian posterior
// q(x_{t-1} | x_t, x_0) of the forward process:
//
//	mean     = coef1_t * x_0 + coef2_t * x_t
//	variance = beta_t * (1 - abar_{t-1}) / (1 - abar_t)
//
// The mean matches the samples' shape; the variance comes back as the
// broadcastable per-example tensor (1, ..., 1, B).
func (p *Process[T, B]) QPosteriorMeanVariance(xStart, xT *tensor.Tensor[T, B], timesteps []int) (mean, variance *tensor.Tensor[T, B], err error) {
	batch := len(timesteps)
	if err := p.checkSample("xStart", xStart, batch); err != nil {
		return nil, nil, err
	}
	if !xT.Shape().Equal(xStart.Shape()) {
		return nil, nil, fmt.Errorf("%w: xT has shape %v, want %v", ErrShapeMismatch, xT.Shape(), xStart.Shape())
	}

	rank := len(xStart.Shape())
	coef1, err := p.extract(p.posteriorMeanCoef1, timesteps, rank)
	if err != nil {
		return nil, nil, err
	}
	coef2, err := p.extract(p.posteriorMeanCoef2, timesteps, rank)
	if err != nil {
		return nil, nil, err
	}
	variance, err = p.extract(p.posteriorVariance, timesteps, rank)
	if err != nil {
		return nil, nil, err
	}

	mean = coef1.Mul(xStart).Add(coef2.Mul(xT))
	return mean, variance, nil
}
