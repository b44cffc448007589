// Package tensor provides the core tensor types for the scps-diffusion runtime.
package tensor

// DType is a constraint for supported tensor element types.
//
// The diffusion core operates on a single floating-point element type
// shared across data, noise, and coefficients; timestep indices travel
// as plain []int and never become tensors, so no integer dtypes exist.
type DType interface {
	~float32 | ~float64
}

// DataType is the runtime type tag of a tensor.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Float64
)

// Size returns the byte size of one element.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// inferDataType maps a generic element type to its runtime tag.
func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		panic("unsupported element type")
	}
}
