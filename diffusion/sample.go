// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package diffusion

import (
	"fmt"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// PSample performs one reverse transition p(x_{t-1} | x_t):
//
//  1. predict noise with the injected model and derive x0_hat,
//  2. clamp x0_hat into the clip bounds when clipDenoised,
//  3. compute the posterior mean/variance against x0_hat,
//  4. return mean, plus sqrt(variance)*noise when addNoise.
//
// The caller decides addNoise: the sampling loop suppresses it at t=1,
// where there is no further corruption to emulate. A nil noise is drawn
// internally when addNoise is set.
func (p *Process[T, B]) PSample(
	x *tensor.Tensor[T, B],
	timesteps []int,
	noise *tensor.Tensor[T, B],
	clipDenoised, addNoise bool,
) (xPrev, xStartHat *tensor.Tensor[T, B], err error) {
	xStartHat, _, err = p.Denoise(x, timesteps)
	if err != nil {
		return nil, nil, err
	}
	if clipDenoised {
		xStartHat = xStartHat.Clip(p.clipLo, p.clipHi)
	}

	mean, variance, err := p.QPosteriorMeanVariance(xStartHat, x, timesteps)
	if err != nil {
		return nil, nil, err
	}

	xPrev = mean
	if addNoise {
		if noise == nil {
			noise = p.randn(x.Shape())
		} else if !noise.Shape().Equal(x.Shape()) {
			return nil, nil, fmt.Errorf("%w: noise has shape %v, want %v", ErrShapeMismatch, noise.Shape(), x.Shape())
		}
		xPrev = xPrev.Add(variance.Sqrt().Mul(noise))
	}
	return xPrev, xStartHat, nil
}

// PSampleLoop runs the full reverse process: start from pure noise of
// the given sample shape (dataShape..., B) and step t=T down to t=1,
// discarding intermediate states. Fresh noise is injected at every step
// except the last.
func (p *Process[T, B]) PSampleLoop(shape tensor.Shape, clipDenoised bool) (*tensor.Tensor[T, B], error) {
	batch, x, err := p.initLoop(shape)
	if err != nil {
		return nil, err
	}

	for t := p.numTimesteps; t >= 1; t-- {
		x, _, err = p.PSample(x, repeatTimestep(t, batch), nil, clipDenoised, t != 1)
		if err != nil {
			return nil, err
		}
	}
	return x, nil
}

// PSampleLoopBatch is PSampleLoop over the process data shape with the
// given batch size.
func (p *Process[T, B]) PSampleLoopBatch(batch int, clipDenoised bool) (*tensor.Tensor[T, B], error) {
	if batch <= 0 {
		return nil, fmt.Errorf("%w: batch size %d", ErrShapeMismatch, batch)
	}
	return p.PSampleLoop(p.sampleShape(batch), clipDenoised)
}

// PSampleLoopAll runs the same countdown as PSampleLoop but records the
// state and the start-point estimate after every step along a new
// trailing time axis: both results have shape (dataShape..., B, T),
// index 0 holding the first step processed (t=T) and index T-1 the
// final sample.
func (p *Process[T, B]) PSampleLoopAll(shape tensor.Shape, clipDenoised bool) (allX, allXStart *tensor.Tensor[T, B], err error) {
	batch, x, err := p.initLoop(shape)
	if err != nil {
		return nil, nil, err
	}

	steps := p.numTimesteps
	trajShape := append(shape.Clone(), steps)
	allX = tensor.Zeros[T, B](trajShape, p.backend)
	allXStart = tensor.Zeros[T, B](trajShape, p.backend)

	var xStartHat *tensor.Tensor[T, B]
	for t := steps; t >= 1; t-- {
		x, xStartHat, err = p.PSample(x, repeatTimestep(t, batch), nil, clipDenoised, t != 1)
		if err != nil {
			return nil, nil, err
		}
		writeStep(allX, x, steps, steps-t)
		writeStep(allXStart, xStartHat, steps, steps-t)
	}
	return allX, allXStart, nil
}

// initLoop validates the target shape and draws the initial state from
// a standard normal.
func (p *Process[T, B]) initLoop(shape tensor.Shape) (int, *tensor.Tensor[T, B], error) {
	if len(shape) != len(p.dataShape)+1 {
		return 0, nil, fmt.Errorf("%w: target shape %v, want (%v..., B)", ErrShapeMismatch, shape, p.dataShape)
	}
	for i, dim := range p.dataShape {
		if shape[i] != dim {
			return 0, nil, fmt.Errorf("%w: target shape %v, want (%v..., B)", ErrShapeMismatch, shape, p.dataShape)
		}
	}
	batch := shape[len(shape)-1]
	if batch <= 0 {
		return 0, nil, fmt.Errorf("%w: batch size %d", ErrShapeMismatch, batch)
	}
	return batch, p.randn(shape), nil
}

// writeStep scatters one captured state into a trajectory tensor whose
// trailing axis (length steps) is the time axis.
func writeStep[T tensor.DType, B tensor.Backend](traj, x *tensor.Tensor[T, B], steps, index int) {
	dst := traj.Data()
	src := x.Data()
	for i, v := range src {
		dst[i*steps+index] = v
	}
}
