package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err) // caller passed an invalid shape
	}
	// make() already zero-initialized the buffer.
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, T(1), b)
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with samples from the standard normal
// distribution, drawn from the process-wide math/rand source. For a
// reproducible stream use RandnFrom with a seeded *rand.Rand.
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	fillNormal(t.Data(), nil)
	return t
}

// RandnFrom is Randn drawing from an explicit random source. Sampling
// loops pass a seeded source here so full reverse trajectories are
// reproducible.
func RandnFrom[T DType, B Backend](rng *rand.Rand, shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	fillNormal(t.Data(), rng)
	return t
}

// Rand creates a tensor with samples uniform in [0, 1).
func Rand[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = T(rand.Float64()) //nolint:gosec // math/rand is intentional for ML reproducibility
	}
	return t
}

// fillNormal fills data with N(0, 1) samples via the Box-Muller
// transform. A nil rng falls back to the global source.
func fillNormal[T DType](data []T, rng *rand.Rand) {
	uniform := rand.Float64
	if rng != nil {
		uniform = rng.Float64
	}
	for i := 0; i < len(data); i += 2 {
		u1 := uniform() //nolint:gosec // math/rand is intentional for ML reproducibility
		u2 := uniform() //nolint:gosec // math/rand is intentional for ML reproducibility
		for u1 == 0 {
			u1 = uniform()
		}
		r := math.Sqrt(-2.0 * math.Log(u1))
		data[i] = T(r * math.Cos(2.0*math.Pi*u2))
		if i+1 < len(data) {
			data[i+1] = T(r * math.Sin(2.0*math.Pi*u2))
		}
	}
}
