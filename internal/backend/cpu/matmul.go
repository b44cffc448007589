package cpu

import (
	"fmt"

	"github.com/FeMa42/scps-diffusion/internal/parallel"
	"github.com/FeMa42/scps-diffusion/internal/tensor"
)

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) -> (M, N).
// Output rows are independent, so they are computed in parallel for
// large matrices.
func (c *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v @ %v", aShape, bShape))
	}
	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("matmul: inner dimensions do not match: %v @ %v", aShape, bShape))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("matmul: dtype mismatch: %s vs %s", a.DType(), b.DType()))
	}

	m, k, n := aShape[0], aShape[1], bShape[1]
	out, err := tensor.NewRaw(tensor.Shape{m, n}, a.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: %v", err))
	}

	cfg := parallel.DefaultConfig()

	// The inner loops keep b and out accesses contiguous.
	switch a.DType() {
	case tensor.Float32:
		av, bv, ov := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()
		parallel.For(m, cfg, func(i int) {
			oRow := ov[i*n : (i+1)*n]
			for p := 0; p < k; p++ {
				aik := av[i*k+p]
				if aik == 0 {
					continue
				}
				bRow := bv[p*n : (p+1)*n]
				for j := range bRow {
					oRow[j] += aik * bRow[j]
				}
			}
		})
	case tensor.Float64:
		av, bv, ov := a.AsFloat64(), b.AsFloat64(), out.AsFloat64()
		parallel.For(m, cfg, func(i int) {
			oRow := ov[i*n : (i+1)*n]
			for p := 0; p < k; p++ {
				aik := av[i*k+p]
				if aik == 0 {
					continue
				}
				bRow := bv[p*n : (p+1)*n]
				for j := range bRow {
					oRow[j] += aik * bRow[j]
				}
			}
		})
	}
	return out
}
