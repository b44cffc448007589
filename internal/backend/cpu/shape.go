package cpu

import (
	"fmt"

	"github.com/FeMa42/scps-diffusion/internal/tensor"
)

// Reshape returns a view of x under a new shape. The element count must
// match; the buffer is shared, not copied.
func (c *CPUBackend) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	out, err := x.WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return out
}

// Transpose permutes the dimensions of x. With no axes given, all
// dimensions are reversed.
func (c *CPUBackend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := x.Shape()
	rank := len(shape)

	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: got %d axes for rank-%d tensor", len(axes), rank))
	}
	seen := make([]bool, rank)
	for _, ax := range axes {
		if ax < 0 || ax >= rank || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes permutation %v", axes))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, rank)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	out, err := tensor.NewRaw(newShape, x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	inStrides := shape.ComputeStrides()
	idx := make([]int, rank)
	n := x.NumElements()

	switch x.DType() {
	case tensor.Float32:
		xv, ov := x.AsFloat32(), out.AsFloat32()
		for i := 0; i < n; i++ {
			src := 0
			for d, ax := range axes {
				src += idx[d] * inStrides[ax]
			}
			ov[i] = xv[src]
			nextIndex(idx, newShape)
		}
	case tensor.Float64:
		xv, ov := x.AsFloat64(), out.AsFloat64()
		for i := 0; i < n; i++ {
			src := 0
			for d, ax := range axes {
				src += idx[d] * inStrides[ax]
			}
			ov[i] = xv[src]
			nextIndex(idx, newShape)
		}
	}
	return out
}
