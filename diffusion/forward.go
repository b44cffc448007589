// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package diffusion

import (
	"fmt"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// QSample draws x_t from q(x_t | x_0) in a single closed-form jump:
//
//	x_t = sqrt(abar_t) * x_0 + sqrt(1 - abar_t) * noise
//
// xStart has shape (dataShape..., B) with B = len(timesteps). A nil
// noise is drawn standard-normal internally; given the same noise the
// result is deterministic.
func (p *Process[T, B]) QSample(xStart *tensor.Tensor[T, B], timesteps []int, noise *tensor.Tensor[T, B]) (*tensor.Tensor[T, B], error) {
	batch := len(timesteps)
	if err := p.checkSample("xStart", xStart, batch); err != nil {
		return nil, err
	}
	if noise == nil {
		noise = p.randn(xStart.Shape())
	} else if !noise.Shape().Equal(xStart.Shape()) {
		return nil, fmt.Errorf("%w: noise has shape %v, want %v", ErrShapeMismatch, noise.Shape(), xStart.Shape())
	}

	rank := len(xStart.Shape())
	coef1, err := p.extract(p.sqrtAlphasCumprod, timesteps, rank)
	if err != nil {
		return nil, err
	}
	coef2, err := p.extract(p.sqrtOneMinusAlphasCumprod, timesteps, rank)
	if err != nil {
		return nil, err
	}

	return coef1.Mul(xStart).Add(coef2.Mul(noise)), nil
}

// QSampleAt is QSample with a single timestep broadcast to every batch
// element.
func (p *Process[T, B]) QSampleAt(xStart *tensor.Tensor[T, B], t int, noise *tensor.Tensor[T, B]) (*tensor.Tensor[T, B], error) {
	batch, err := p.batchOf(xStart)
	if err != nil {
		return nil, err
	}
	return p.QSample(xStart, repeatTimestep(t, batch), noise)
}

// batchOf reads the trailing batch-axis size of a sample tensor after
// checking its leading axes against the data shape.
func (p *Process[T, B]) batchOf(x *tensor.Tensor[T, B]) (int, error) {
	shape := x.Shape()
	if len(shape) != len(p.dataShape)+1 {
		return 0, fmt.Errorf("%w: sample has shape %v, want (%v..., B)", ErrShapeMismatch, shape, p.dataShape)
	}
	for i, dim := range p.dataShape {
		if shape[i] != dim {
			return 0, fmt.Errorf("%w: sample has shape %v, want (%v..., B)", ErrShapeMismatch, shape, p.dataShape)
		}
	}
	return shape[len(shape)-1], nil
}
