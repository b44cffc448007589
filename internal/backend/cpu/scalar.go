package cpu

import (
	"fmt"

	"github.com/FeMa42/scps-diffusion/internal/tensor"
)

// AddScalar adds a scalar to every element.
func (c *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat64("addscalar", scalar)
	return c.unaryOp("addscalar", x, func(v float64) float64 { return v + s })
}

// SubScalar subtracts a scalar from every element.
func (c *CPUBackend) SubScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat64("subscalar", scalar)
	return c.unaryOp("subscalar", x, func(v float64) float64 { return v - s })
}

// MulScalar multiplies every element by a scalar.
func (c *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat64("mulscalar", scalar)
	return c.unaryOp("mulscalar", x, func(v float64) float64 { return v * s })
}

// DivScalar divides every element by a scalar.
func (c *CPUBackend) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat64("divscalar", scalar)
	if s == 0 {
		panic("divscalar: division by zero")
	}
	return c.unaryOp("divscalar", x, func(v float64) float64 { return v / s })
}

func toFloat64(name string, scalar any) float64 {
	switch s := scalar.(type) {
	case float32:
		return float64(s)
	case float64:
		return s
	case int:
		return float64(s)
	default:
		panic(fmt.Sprintf("%s: unsupported scalar type %T", name, scalar))
	}
}
