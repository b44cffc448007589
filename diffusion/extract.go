// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package diffusion

import (
	"fmt"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// extract gathers one coefficient per batch element at that element's
// own timestep and shapes the result as (1, ..., 1, B) with the given
// rank. Under broadcasting that multiplies a per-example scalar across
// every non-batch axis of a sample tensor.
func (p *Process[T, B]) extract(seq []T, timesteps []int, rank int) (*tensor.Tensor[T, B], error) {
	if len(timesteps) == 0 {
		return nil, fmt.Errorf("%w: empty timestep batch", ErrShapeMismatch)
	}
	if rank < 1 {
		return nil, fmt.Errorf("%w: target rank %d < 1", ErrShapeMismatch, rank)
	}

	shape := make(tensor.Shape, rank)
	for i := range shape {
		shape[i] = 1
	}
	shape[rank-1] = len(timesteps)

	out := tensor.Zeros[T, B](shape, p.backend)
	data := out.Data()
	for i, t := range timesteps {
		if t < 1 || t > p.numTimesteps {
			return nil, fmt.Errorf("%w: timestep %d at batch position %d, valid range [1, %d]",
				ErrTimestepOutOfRange, t, i, p.numTimesteps)
		}
		data[i] = seq[t-1]
	}
	return out, nil
}

// repeatTimestep broadcasts one scalar timestep to every batch element.
func repeatTimestep(t, batch int) []int {
	ts := make([]int, batch)
	for i := range ts {
		ts[i] = t
	}
	return ts
}
