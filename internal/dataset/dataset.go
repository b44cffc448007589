// Package dataset generates synthetic 2-D point distributions for
// training and demos. Batches are emitted batch-last, shape (2, n),
// normalized into the diffusion clip range [-1, 1].
package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// SwissRoll samples n points from a 2-D swiss roll with the given
// observation noise, scaled into [-1, 1].
func SwissRoll[T tensor.DType, B tensor.Backend](n int, noise float64, rng *rand.Rand, b B) (*tensor.Tensor[T, B], error) {
	if n <= 0 {
		return nil, fmt.Errorf("dataset: need a positive sample count, got %d", n)
	}

	out := tensor.Zeros[T, B](tensor.Shape{2, n}, b)
	data := out.Data()
	for i := 0; i < n; i++ {
		// Arc length parameter in [1.5pi, 4.5pi], as in the classic
		// scikit-learn roll, then flattened to 2-D.
		t := 1.5 * math.Pi * (1 + 2*rng.Float64())
		x := t * math.Cos(t)
		y := t * math.Sin(t)
		x += noise * rng.NormFloat64()
		y += noise * rng.NormFloat64()
		// The unrolled extent stays within ~14 units of the origin.
		data[i] = T(x / 14.0)
		data[n+i] = T(y / 14.0)
	}
	return out, nil
}

// GaussianRing samples n points from k Gaussian blobs spaced evenly on
// a circle, scaled into [-1, 1].
func GaussianRing[T tensor.DType, B tensor.Backend](n, k int, stddev float64, rng *rand.Rand, b B) (*tensor.Tensor[T, B], error) {
	if n <= 0 || k <= 0 {
		return nil, fmt.Errorf("dataset: need positive sample and mode counts, got n=%d k=%d", n, k)
	}

	const radius = 0.7
	out := tensor.Zeros[T, B](tensor.Shape{2, n}, b)
	data := out.Data()
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(rng.Intn(k)) / float64(k)
		data[i] = T(radius*math.Cos(angle) + stddev*rng.NormFloat64())
		data[n+i] = T(radius*math.Sin(angle) + stddev*rng.NormFloat64())
	}
	return out, nil
}

// Columns copies the selected batch columns of a (d, N) tensor into a
// new (d, len(idx)) tensor. Training loops use it to cut shuffled
// minibatches.
func Columns[T tensor.DType, B tensor.Backend](data *tensor.Tensor[T, B], idx []int) (*tensor.Tensor[T, B], error) {
	shape := data.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("dataset: Columns expects a 2D tensor, got %v", shape)
	}
	d, n := shape[0], shape[1]

	out := tensor.Zeros[T, B](tensor.Shape{d, len(idx)}, data.Backend())
	src := data.Data()
	dst := out.Data()
	for j, col := range idx {
		if col < 0 || col >= n {
			return nil, fmt.Errorf("dataset: column %d out of range [0, %d)", col, n)
		}
		for row := 0; row < d; row++ {
			dst[row*len(idx)+j] = src[row*n+col]
		}
	}
	return out, nil
}
