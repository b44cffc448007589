// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package diffusion implements the numerical core of a Denoising
// Diffusion Probabilistic Model: beta schedules, the precomputed
// coefficient cache, the closed-form forward noising operator, the
// posterior estimator, and the reverse sampling loop around an injected
// noise-prediction model.
//
// Conventions:
//   - Timesteps are 1-based, in [1, T].
//   - Sample tensors carry the batch axis last: (dataShape..., B).
//   - A Process is immutable after construction and safe for concurrent
//     use; the only mutable state lives inside the injected Denoiser.
package diffusion

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// Sentinel errors callers can branch on with errors.Is.
var (
	// ErrShapeMismatch reports sample, noise, or timestep-batch shapes
	// that disagree with the process configuration.
	ErrShapeMismatch = errors.New("diffusion: shape mismatch")

	// ErrTimestepOutOfRange reports a timestep index outside [1, T].
	ErrTimestepOutOfRange = errors.New("diffusion: timestep out of range")
)

// logVarianceFloor is applied to the posterior variance before taking
// its logarithm; the variance at t=1 is exactly zero.
const logVarianceFloor = 1e-20

// alphasCumprodFloor is applied to the cumulative alpha product before
// its reciprocal square roots; a beta of exactly 1 drives the product
// to zero.
const alphasCumprodFloor = 1e-20

// Denoiser is the noise-prediction capability injected into a Process.
//
// PredictNoise receives a noised sample (dataShape..., B) and one
// timestep per batch element, each in [1, T], and returns a noise
// estimate of identical shape and element type. The core never inspects
// the implementation; anything from a closure to a trained network
// satisfies the contract.
type Denoiser[T tensor.DType, B tensor.Backend] interface {
	PredictNoise(x *tensor.Tensor[T, B], timesteps []int) *tensor.Tensor[T, B]
}

// DenoiserFunc adapts a plain function to the Denoiser interface.
type DenoiserFunc[T tensor.DType, B tensor.Backend] func(x *tensor.Tensor[T, B], timesteps []int) *tensor.Tensor[T, B]

// PredictNoise calls the wrapped function.
func (f DenoiserFunc[T, B]) PredictNoise(x *tensor.Tensor[T, B], timesteps []int) *tensor.Tensor[T, B] {
	return f(x, timesteps)
}

// Process is an immutable DDPM: the beta schedule, twelve derived
// per-timestep coefficient sequences, the data shape of one sample, and
// the injected denoiser. Construction cost is O(T); every operation
// afterwards reads the cache.
type Process[T tensor.DType, B tensor.Backend] struct {
	numTimesteps int
	dataShape    tensor.Shape
	denoiser     Denoiser[T, B]
	backend      B
	rng          *rand.Rand
	clipLo       T
	clipHi       T

	betas             []T // beta_t
	alphas            []T // 1 - beta_t
	alphasCumprod     []T // prod_{s<=t} alpha_s
	alphasCumprodPrev []T // shifted: leading 1, last entry dropped

	sqrtAlphasCumprod         []T // sqrt(abar_t)
	sqrtOneMinusAlphasCumprod []T // sqrt(1 - abar_t)
	sqrtRecipAlphasCumprod    []T // 1/sqrt(abar_t)
	sqrtRecipAlphasCumprodM1  []T // sqrt(1/abar_t - 1)

	posteriorVariance           []T
	posteriorLogVarianceClipped []T
	posteriorMeanCoef1          []T
	posteriorMeanCoef2          []T
}

// Option configures a Process at construction.
type Option[T tensor.DType, B tensor.Backend] func(*Process[T, B])

// WithClipBounds overrides the [-1, 1] clamp applied to predicted start
// points when sampling with clipDenoised. Use this when training data
// is normalized to a different range.
func WithClipBounds[T tensor.DType, B tensor.Backend](lo, hi T) Option[T, B] {
	return func(p *Process[T, B]) {
		p.clipLo, p.clipHi = lo, hi
	}
}

// WithRand sets the random source used for internally drawn noise.
// Seeding it makes full sampling trajectories reproducible.
func WithRand[T tensor.DType, B tensor.Backend](rng *rand.Rand) Option[T, B] {
	return func(p *Process[T, B]) {
		p.rng = rng
	}
}

// New builds a Process from a beta schedule, the shape of one sample
// (batch axis excluded), a denoiser, and a backend. The twelve
// coefficient sequences are derived once, in float64, and stored in the
// element type T.
func New[T tensor.DType, B tensor.Backend](
	betas []T,
	dataShape tensor.Shape,
	denoiser Denoiser[T, B],
	backend B,
	opts ...Option[T, B],
) (*Process[T, B], error) {
	if len(betas) == 0 {
		return nil, errors.New("diffusion: empty beta schedule")
	}
	if err := dataShape.Validate(); err != nil {
		return nil, fmt.Errorf("diffusion: invalid data shape: %w", err)
	}
	if denoiser == nil {
		return nil, errors.New("diffusion: nil denoiser")
	}
	for i, b := range betas {
		if f := float64(b); f < 0 || f > 1 || math.IsNaN(f) {
			return nil, fmt.Errorf("diffusion: beta[%d] = %v outside [0, 1]", i, b)
		}
	}

	steps := len(betas)
	p := &Process[T, B]{
		numTimesteps: steps,
		dataShape:    dataShape.Clone(),
		denoiser:     denoiser,
		backend:      backend,
		clipLo:       -1,
		clipHi:       1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if float64(p.clipLo) >= float64(p.clipHi) {
		return nil, fmt.Errorf("diffusion: invalid clip bounds [%v, %v]", p.clipLo, p.clipHi)
	}

	p.deriveCoefficients(betas)
	return p, nil
}

// deriveCoefficients computes the eleven sequences derived from beta.
// All arithmetic happens in float64 before narrowing to T.
func (p *Process[T, B]) deriveCoefficients(betas []T) {
	steps := len(betas)
	alloc := func() []T { return make([]T, steps) }

	p.betas = append([]T(nil), betas...)
	p.alphas = alloc()
	p.alphasCumprod = alloc()
	p.alphasCumprodPrev = alloc()
	p.sqrtAlphasCumprod = alloc()
	p.sqrtOneMinusAlphasCumprod = alloc()
	p.sqrtRecipAlphasCumprod = alloc()
	p.sqrtRecipAlphasCumprodM1 = alloc()
	p.posteriorVariance = alloc()
	p.posteriorLogVarianceClipped = alloc()
	p.posteriorMeanCoef1 = alloc()
	p.posteriorMeanCoef2 = alloc()

	cumprod := 1.0
	prev := 1.0 // abar_0: no corruption before the first step
	for i := 0; i < steps; i++ {
		beta := float64(betas[i])
		alpha := 1 - beta
		cumprod *= alpha

		p.alphas[i] = T(alpha)
		p.alphasCumprod[i] = T(cumprod)
		p.alphasCumprodPrev[i] = T(prev)
		p.sqrtAlphasCumprod[i] = T(math.Sqrt(cumprod))
		p.sqrtOneMinusAlphasCumprod[i] = T(math.Sqrt(1 - cumprod))
		recip := math.Max(cumprod, alphasCumprodFloor)
		p.sqrtRecipAlphasCumprod[i] = T(1 / math.Sqrt(recip))
		p.sqrtRecipAlphasCumprodM1[i] = T(math.Sqrt(1/recip - 1))

		variance := beta * (1 - prev) / (1 - cumprod)
		if 1-cumprod == 0 {
			variance = 0
		}
		p.posteriorVariance[i] = T(variance)
		p.posteriorLogVarianceClipped[i] = T(math.Log(math.Max(variance, logVarianceFloor)))
		p.posteriorMeanCoef1[i] = T(beta * math.Sqrt(prev) / (1 - cumprod))
		p.posteriorMeanCoef2[i] = T((1 - prev) * math.Sqrt(alpha) / (1 - cumprod))

		prev = cumprod
	}
}

// NumTimesteps returns T, the number of diffusion steps.
func (p *Process[T, B]) NumTimesteps() int {
	return p.numTimesteps
}

// DataShape returns the shape of one sample, batch axis excluded.
func (p *Process[T, B]) DataShape() tensor.Shape {
	return p.dataShape.Clone()
}

// Backend returns the compute backend.
func (p *Process[T, B]) Backend() B {
	return p.backend
}

// Betas returns a copy of the beta schedule.
func (p *Process[T, B]) Betas() []T {
	return append([]T(nil), p.betas...)
}

// AlphasCumprod returns a copy of the cumulative alpha products.
func (p *Process[T, B]) AlphasCumprod() []T {
	return append([]T(nil), p.alphasCumprod...)
}

// AlphasCumprodPrev returns a copy of the shifted cumulative alpha
// products; its first entry is 1 by definition.
func (p *Process[T, B]) AlphasCumprodPrev() []T {
	return append([]T(nil), p.alphasCumprodPrev...)
}

// PosteriorVariance returns a copy of the posterior variance sequence.
func (p *Process[T, B]) PosteriorVariance() []T {
	return append([]T(nil), p.posteriorVariance...)
}

// PosteriorLogVarianceClipped returns a copy of the clipped log
// posterior variance sequence.
func (p *Process[T, B]) PosteriorLogVarianceClipped() []T {
	return append([]T(nil), p.posteriorLogVarianceClipped...)
}

// CoefficientBytes returns the total serialized size of the twelve
// cached sequences.
func (p *Process[T, B]) CoefficientBytes() int {
	var dummy T
	size := 4
	if _, ok := any(dummy).(float64); ok {
		size = 8
	}
	return 12 * p.numTimesteps * size
}

// String returns a diagnostic one-liner: step count, data shape, cache
// size, and the identity of the injected denoiser.
func (p *Process[T, B]) String() string {
	var dummy T
	return fmt.Sprintf("diffusion.Process[%T](T=%d, data %v, coefficients %d B, denoiser %s)",
		dummy, p.numTimesteps, p.dataShape, p.CoefficientBytes(), describeDenoiser(p.denoiser))
}

func describeDenoiser(d any) string {
	if s, ok := d.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", d)
}

// RandTimesteps draws one uniform timestep in [1, T] per batch element,
// from the process random source. Training loops use this to pick the
// corruption level per example.
func (p *Process[T, B]) RandTimesteps(batch int) []int {
	ts := make([]int, batch)
	for i := range ts {
		ts[i] = 1 + p.intn(p.numTimesteps)
	}
	return ts
}

func (p *Process[T, B]) intn(n int) int {
	if p.rng != nil {
		return p.rng.Intn(n)
	}
	return rand.Intn(n) //nolint:gosec // math/rand is intentional for ML reproducibility
}

// randn draws standard-normal noise of the given shape from the process
// random source.
func (p *Process[T, B]) randn(shape tensor.Shape) *tensor.Tensor[T, B] {
	if p.rng != nil {
		return tensor.RandnFrom[T, B](p.rng, shape, p.backend)
	}
	return tensor.Randn[T, B](shape, p.backend)
}

// sampleShape returns (dataShape..., batch).
func (p *Process[T, B]) sampleShape(batch int) tensor.Shape {
	shape := make(tensor.Shape, 0, len(p.dataShape)+1)
	shape = append(shape, p.dataShape...)
	return append(shape, batch)
}

// checkSample verifies that x has shape (dataShape..., batch).
func (p *Process[T, B]) checkSample(name string, x *tensor.Tensor[T, B], batch int) error {
	want := p.sampleShape(batch)
	if !x.Shape().Equal(want) {
		return fmt.Errorf("%w: %s has shape %v, want %v", ErrShapeMismatch, name, x.Shape(), want)
	}
	return nil
}
