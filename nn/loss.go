// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"fmt"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// MSELoss computes the mean squared error between a prediction and a
// target of identical shape, returning a single-element tensor.
func MSELoss[T tensor.DType, B tensor.Backend](pred, target *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	if !pred.Shape().Equal(target.Shape()) {
		panic(fmt.Sprintf("MSELoss: shape mismatch %v vs %v", pred.Shape(), target.Shape()))
	}
	diff := pred.Sub(target)
	return diff.Mul(diff).Sum().DivScalar(T(diff.NumElements()))
}

// MSELossGrad returns the gradient of MSELoss with respect to the
// prediction: 2 * (pred - target) / N.
func MSELossGrad[T tensor.DType, B tensor.Backend](pred, target *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	if !pred.Shape().Equal(target.Shape()) {
		panic(fmt.Sprintf("MSELossGrad: shape mismatch %v vs %v", pred.Shape(), target.Shape()))
	}
	return pred.Sub(target).MulScalar(T(2)).DivScalar(T(pred.NumElements()))
}
