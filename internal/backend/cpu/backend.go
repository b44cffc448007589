// Package cpu implements the pure Go compute backend for the
// scps-diffusion tensor runtime.
package cpu

import (
	"fmt"

	"github.com/FeMa42/scps-diffusion/internal/tensor"
)

// CPUBackend implements tensor.Backend with pure Go kernels.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{device: tensor.CPU}
}

// Name returns the backend name.
func (c *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (c *CPUBackend) Device() tensor.Device {
	return c.device
}

// Add performs element-wise addition with broadcasting.
func (c *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (c *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (c *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (c *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y })
}

// binaryOp dispatches an element-wise binary kernel, taking the
// contiguous fast path when the shapes match exactly.
func (c *CPUBackend) binaryOp(
	name string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch: %s vs %s", name, a.DType(), b.DType()))
	}

	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	out, err := tensor.NewRaw(outShape, a.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	if a.Shape().Equal(b.Shape()) {
		switch a.DType() {
		case tensor.Float32:
			av, bv, ov := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()
			for i := range ov {
				ov[i] = f32(av[i], bv[i])
			}
		case tensor.Float64:
			av, bv, ov := a.AsFloat64(), b.AsFloat64(), out.AsFloat64()
			for i := range ov {
				ov[i] = f64(av[i], bv[i])
			}
		}
		return out
	}

	switch a.DType() {
	case tensor.Float32:
		broadcastBinaryF32(a, b, out, f32)
	case tensor.Float64:
		broadcastBinaryF64(a, b, out, f64)
	}
	return out
}
