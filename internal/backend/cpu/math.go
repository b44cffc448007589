package cpu

import (
	"fmt"
	"math"

	"github.com/FeMa42/scps-diffusion/internal/tensor"
)

// Exp applies the exponential element-wise.
func (c *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unaryOp("exp", x, math.Exp)
}

// Log applies the natural logarithm element-wise.
func (c *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unaryOp("log", x, math.Log)
}

// Sqrt applies the square root element-wise.
func (c *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unaryOp("sqrt", x, math.Sqrt)
}

// Neg negates every element.
func (c *CPUBackend) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unaryOp("neg", x, func(v float64) float64 { return -v })
}

// Tanh applies the hyperbolic tangent element-wise.
func (c *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unaryOp("tanh", x, math.Tanh)
}

// Clip clamps every element into [lo, hi].
func (c *CPUBackend) Clip(x *tensor.RawTensor, lo, hi float64) *tensor.RawTensor {
	if lo > hi {
		panic(fmt.Sprintf("clip: lo %v greater than hi %v", lo, hi))
	}
	return c.unaryOp("clip", x, func(v float64) float64 {
		return math.Min(math.Max(v, lo), hi)
	})
}

// unaryOp applies f to every element. f operates in float64 and is
// narrowed back for float32 tensors.
func (c *CPUBackend) unaryOp(name string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	out, err := tensor.NewRaw(x.Shape(), x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	switch x.DType() {
	case tensor.Float32:
		xv, ov := x.AsFloat32(), out.AsFloat32()
		for i := range ov {
			ov[i] = float32(f(float64(xv[i])))
		}
	case tensor.Float64:
		xv, ov := x.AsFloat64(), out.AsFloat64()
		for i := range ov {
			ov[i] = f(xv[i])
		}
	}
	return out
}
