// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"fmt"
	"math/rand"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// Linear is a fully connected layer over batch-last activations:
//
//	y = W @ x + b
//
// with x of shape (in, B), W of shape (out, in), b of shape (out), and
// y of shape (out, B).
type Linear[T tensor.DType, B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[T, B]
	bias        *Parameter[T, B]
	backend     B
}

// NewLinear creates a Linear layer with Xavier-initialized weights and
// zero biases. Pass a seeded rng for reproducible initialization, or
// nil for the process-wide source.
func NewLinear[T tensor.DType, B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[T, B] {
	weight := Xavier[T, B](inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng, backend)
	bias := tensor.Zeros[T, B](tensor.Shape{outFeatures}, backend)

	return &Linear[T, B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", bias),
		backend:     backend,
	}
}

// Forward computes W @ x + b for x of shape (in, B).
func (l *Linear[T, B]) Forward(x *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	shape := x.Shape()
	if len(shape) != 2 || shape[0] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input (%d, B), got %v", l.inFeatures, shape))
	}

	out := l.weight.Tensor().MatMul(x)
	// Bias (out) broadcasts as (out, 1) across the batch axis.
	return out.Add(l.bias.Tensor().Reshape(l.outFeatures, 1))
}

// Backward accumulates parameter gradients and returns the gradient
// with respect to the input. x must be the input of the matching
// Forward call, gradOut the loss gradient at its output, both
// batch-last.
func (l *Linear[T, B]) Backward(x, gradOut *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	l.weight.AccumGrad(gradOut.MatMul(x.T()))
	l.bias.AccumGrad(gradOut.SumDim(1, false))
	return l.weight.Tensor().T().MatMul(gradOut)
}

// Parameters returns weight and bias.
func (l *Linear[T, B]) Parameters() []*Parameter[T, B] {
	return []*Parameter[T, B]{l.weight, l.bias}
}

// InFeatures returns the input feature count.
func (l *Linear[T, B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the output feature count.
func (l *Linear[T, B]) OutFeatures() int {
	return l.outFeatures
}

// StateDict exports the layer parameters.
func (l *Linear[T, B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.weight.Tensor().Raw(),
		"bias":   l.bias.Tensor().Raw(),
	}
}

// LoadStateDict imports the layer parameters.
func (l *Linear[T, B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, p := range []*Parameter[T, B]{l.weight, l.bias} {
		raw, ok := stateDict[p.Name()]
		if !ok {
			return fmt.Errorf("missing %q in state dict", p.Name())
		}
		dst := p.Tensor()
		if !raw.Shape().Equal(dst.Shape()) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v", p.Name(), dst.Shape(), raw.Shape())
		}
		if raw.DType() != dst.DType() {
			return fmt.Errorf("%s dtype mismatch: expected %v, got %v", p.Name(), dst.DType(), raw.DType())
		}
		copy(dst.Raw().Data(), raw.Data()[:raw.ByteSize()])
	}
	return nil
}
