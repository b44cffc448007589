package tensor

// Backend is the compute interface behind tensor operations. The
// diffusion core treats it as the "tensor runtime": any data
// parallelism inside these operations is the backend's business, not a
// correctness requirement of the callers.
//
// Implementations:
//   - internal/backend/cpu: pure Go kernels
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix multiplication for 2D tensors: (M, K) @ (K, N) -> (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// Element-wise operations against a scalar.
	AddScalar(x *RawTensor, scalar any) *RawTensor
	SubScalar(x *RawTensor, scalar any) *RawTensor
	MulScalar(x *RawTensor, scalar any) *RawTensor
	DivScalar(x *RawTensor, scalar any) *RawTensor

	// Element-wise math.
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Neg(x *RawTensor) *RawTensor
	Tanh(x *RawTensor) *RawTensor
	Clip(x *RawTensor, lo, hi float64) *RawTensor

	// Shape operations.
	Reshape(x *RawTensor, newShape Shape) *RawTensor
	Transpose(x *RawTensor, axes ...int) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
