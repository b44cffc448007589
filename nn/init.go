// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math"
	"math/rand"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// Xavier creates a tensor with Xavier/Glorot uniform initialization:
// values uniform in [-limit, limit] with limit = sqrt(6 / (fanIn + fanOut)).
func Xavier[T tensor.DType, B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, b B) *tensor.Tensor[T, B] {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	uniform := rand.Float64
	if rng != nil {
		uniform = rng.Float64
	}

	t := tensor.Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = T((uniform()*2 - 1) * limit) //nolint:gosec // math/rand is intentional for ML reproducibility
	}
	return t
}
