package cpu

import (
	"fmt"

	"github.com/FeMa42/scps-diffusion/internal/tensor"
)

// Sum reduces all elements to a single-element tensor of shape (1).
func (c *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	out, err := tensor.NewRaw(tensor.Shape{1}, x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("sum: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		var acc float32
		for _, v := range x.AsFloat32() {
			acc += v
		}
		out.AsFloat32()[0] = acc
	case tensor.Float64:
		var acc float64
		for _, v := range x.AsFloat64() {
			acc += v
		}
		out.AsFloat64()[0] = acc
	}
	return out
}

// SumDim sums along one dimension, optionally keeping it as size 1.
func (c *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return c.reduceDim("sumdim", x, dim, keepDim, false)
}

// MeanDim averages along one dimension, optionally keeping it as size 1.
func (c *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return c.reduceDim("meandim", x, dim, keepDim, true)
}

func (c *CPUBackend) reduceDim(name string, x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("%s: dimension %d out of range for shape %v", name, dim, shape))
	}

	keptShape := shape.Clone()
	keptShape[dim] = 1
	out, err := tensor.NewRaw(keptShape, x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	// Decompose the flat index as (outer, dim, inner) blocks.
	outer, inner := 1, 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	size := shape[dim]

	switch x.DType() {
	case tensor.Float32:
		xv, ov := x.AsFloat32(), out.AsFloat32()
		for o := 0; o < outer; o++ {
			for i := 0; i < inner; i++ {
				var acc float32
				base := o*size*inner + i
				for d := 0; d < size; d++ {
					acc += xv[base+d*inner]
				}
				if mean {
					acc /= float32(size)
				}
				ov[o*inner+i] = acc
			}
		}
	case tensor.Float64:
		xv, ov := x.AsFloat64(), out.AsFloat64()
		for o := 0; o < outer; o++ {
			for i := 0; i < inner; i++ {
				var acc float64
				base := o*size*inner + i
				for d := 0; d < size; d++ {
					acc += xv[base+d*inner]
				}
				if mean {
					acc /= float64(size)
				}
				ov[o*inner+i] = acc
			}
		}
	}

	if keepDim {
		return out
	}
	squeezed := append(tensor.Shape{}, keptShape[:dim]...)
	squeezed = append(squeezed, keptShape[dim+1:]...)
	if len(squeezed) == 0 {
		squeezed = tensor.Shape{1}
	}
	view, err := out.WithShape(squeezed)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}
	return view
}
