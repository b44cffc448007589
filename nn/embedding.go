// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// TimeEmbedding maps integer timesteps to fixed sinusoidal features,
// the transformer-style positional encoding applied to diffusion time.
// It has no trainable parameters.
type TimeEmbedding[T tensor.DType, B tensor.Backend] struct {
	dim     int
	backend B
}

// NewTimeEmbedding creates an embedding of the given (even) feature
// dimension.
func NewTimeEmbedding[T tensor.DType, B tensor.Backend](dim int, backend B) *TimeEmbedding[T, B] {
	if dim <= 0 || dim%2 != 0 {
		panic("TimeEmbedding: dimension must be positive and even")
	}
	return &TimeEmbedding[T, B]{dim: dim, backend: backend}
}

// Dim returns the feature dimension.
func (e *TimeEmbedding[T, B]) Dim() int {
	return e.dim
}

// Forward returns the (dim, B) feature tensor for one timestep per
// batch element. Feature pairs (sin, cos) run over geometrically spaced
// frequencies from 1 down to 1/10000.
func (e *TimeEmbedding[T, B]) Forward(timesteps []int) *tensor.Tensor[T, B] {
	half := e.dim / 2
	batch := len(timesteps)

	out := tensor.Zeros[T, B](tensor.Shape{e.dim, batch}, e.backend)
	data := out.Data()
	for i := 0; i < half; i++ {
		freq := math.Exp(-math.Log(10000) * float64(i) / float64(half))
		for j, t := range timesteps {
			angle := float64(t) * freq
			data[i*batch+j] = T(math.Sin(angle))
			data[(half+i)*batch+j] = T(math.Cos(angle))
		}
	}
	return out
}
