// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor is the public tensor API of scps-diffusion.
//
// It re-exports the internal runtime: a generic Tensor[T, B] over a
// RawTensor and a pluggable compute Backend. Sample tensors follow the
// diffusion convention of a trailing batch axis: (dataShape..., B).
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Randn[float32](tensor.Shape{2, 16}, backend)
//	y := x.MulScalar(0.5).Add(x)
package tensor

import (
	"math/rand"

	"github.com/FeMa42/scps-diffusion/internal/tensor"
)

// DType is the constraint for tensor element types: float32 or float64.
type DType = tensor.DType

// DataType is the runtime type tag of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Device identifies where tensor data lives.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	WebGPU Device = tensor.WebGPU
)

// Shape holds the dimensions of a tensor.
type Shape = tensor.Shape

// Tensor is a generic type-safe tensor over element type T and
// backend B.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// RawTensor is the low-level untyped tensor representation.
type RawTensor = tensor.RawTensor

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T, B](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T, B](shape, b)
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full[T, B](shape, value, b)
}

// Randn creates a tensor of standard-normal samples from the
// process-wide random source.
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Randn[T, B](shape, b)
}

// RandnFrom creates a tensor of standard-normal samples drawn from an
// explicit source, for reproducible sampling.
func RandnFrom[T DType, B Backend](rng *rand.Rand, shape Shape, b B) *Tensor[T, B] {
	return tensor.RandnFrom[T, B](rng, shape, b)
}

// Rand creates a tensor of samples uniform in [0, 1).
func Rand[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Rand[T, B](shape, b)
}

// FromSlice creates a tensor by copying a Go slice.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice[T, B](data, shape, b)
}

// New wraps a RawTensor and backend into a typed tensor.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// NewRaw allocates a zero-initialized RawTensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// BroadcastShapes applies NumPy-style broadcasting rules to two shapes.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
