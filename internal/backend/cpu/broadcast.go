package cpu

import "github.com/FeMa42/scps-diffusion/internal/tensor"

// Broadcast kernels walk the output shape and map each output position
// back into the (possibly lower-rank, size-1-padded) operand shapes.

// broadcastOffset maps a multi-index in the output shape to the flat
// offset in an operand shape, right-aligning dimensions and pinning
// size-1 dimensions to index 0.
func broadcastOffset(idx []int, shape tensor.Shape, strides []int) int {
	offset := 0
	shift := len(idx) - len(shape)
	for d := 0; d < len(shape); d++ {
		i := idx[d+shift]
		if shape[d] == 1 {
			i = 0
		}
		offset += i * strides[d]
	}
	return offset
}

// nextIndex advances a multi-index through shape in row-major order.
func nextIndex(idx []int, shape tensor.Shape) {
	for d := len(idx) - 1; d >= 0; d-- {
		idx[d]++
		if idx[d] < shape[d] {
			return
		}
		idx[d] = 0
	}
}

func broadcastBinaryF32(a, b, out *tensor.RawTensor, f func(x, y float32) float32) {
	av, bv, ov := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()
	outShape := out.Shape()
	aStrides := a.Shape().ComputeStrides()
	bStrides := b.Shape().ComputeStrides()

	idx := make([]int, len(outShape))
	for i := range ov {
		ov[i] = f(av[broadcastOffset(idx, a.Shape(), aStrides)],
			bv[broadcastOffset(idx, b.Shape(), bStrides)])
		nextIndex(idx, outShape)
	}
}

func broadcastBinaryF64(a, b, out *tensor.RawTensor, f func(x, y float64) float64) {
	av, bv, ov := a.AsFloat64(), b.AsFloat64(), out.AsFloat64()
	outShape := out.Shape()
	aStrides := a.Shape().ComputeStrides()
	bStrides := b.Shape().ComputeStrides()

	idx := make([]int, len(outShape))
	for i := range ov {
		ov[i] = f(av[broadcastOffset(idx, a.Shape(), aStrides)],
			bv[broadcastOffset(idx, b.Shape(), bStrides)])
		nextIndex(idx, outShape)
	}
}
