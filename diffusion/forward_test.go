// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package diffusion

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FeMa42/scps-diffusion/tensor"
)

func TestQSampleZeroNoiseScalesBySqrtAlphaCumprod(t *testing.T) {
	p := newProcess(t, []float64{0.1, 0.2, 0.3}, tensor.Shape{2})

	// ones(2, 3) with a different timestep per batch column.
	xStart := fromSlice(t, []float64{1, 1, 1, 1, 1, 1}, tensor.Shape{2, 3})
	noise := tensor.Zeros[float64, cpuB](tensor.Shape{2, 3}, p.Backend())

	xT, err := p.QSample(xStart, []int{1, 2, 3}, noise)
	require.NoError(t, err)

	// With zero noise, column i is exactly sqrt(abar_{t_i}).
	want := []float64{
		math.Sqrt(0.9), math.Sqrt(0.72), math.Sqrt(0.504),
		math.Sqrt(0.9), math.Sqrt(0.72), math.Sqrt(0.504),
	}
	assert.InDeltaSlice(t, want, xT.Data(), 1e-12)
}

func TestQSamplePredictStartRoundTrip(t *testing.T) {
	p := newProcess(t, []float64{0.1, 0.2, 0.3}, tensor.Shape{4})
	rng := rand.New(rand.NewSource(11))

	xStart := tensor.RandnFrom[float64, cpuB](rng, tensor.Shape{4, 5}, p.Backend())
	noise := tensor.RandnFrom[float64, cpuB](rng, tensor.Shape{4, 5}, p.Backend())
	timesteps := []int{1, 3, 2, 3, 1}

	xT, err := p.QSample(xStart, timesteps, noise)
	require.NoError(t, err)

	// Inverting with the same noise recovers the start point exactly,
	// up to float64 rounding.
	recovered, err := p.PredictStartFromNoise(xT, timesteps, noise)
	require.NoError(t, err)
	assert.InDeltaSlice(t, xStart.Data(), recovered.Data(), 1e-9)
}

func TestQSampleDeterministicWithSeed(t *testing.T) {
	betas := []float64{0.1, 0.2, 0.3}
	xStart := fromSlice(t, []float64{0.5, -0.5}, tensor.Shape{1, 2})
	timesteps := []int{2, 3}

	a := newProcess(t, betas, tensor.Shape{1}, WithRand[float64, cpuB](rand.New(rand.NewSource(5))))
	b := newProcess(t, betas, tensor.Shape{1}, WithRand[float64, cpuB](rand.New(rand.NewSource(5))))

	xa, err := a.QSample(xStart, timesteps, nil)
	require.NoError(t, err)
	xb, err := b.QSample(xStart, timesteps, nil)
	require.NoError(t, err)

	assert.Equal(t, xa.Data(), xb.Data())
}

func TestQSampleShapeMismatch(t *testing.T) {
	p := newProcess(t, []float64{0.1, 0.2}, tensor.Shape{2})

	// Batch axis disagrees with the timestep count.
	xStart := tensor.Zeros[float64, cpuB](tensor.Shape{2, 3}, p.Backend())
	_, err := p.QSample(xStart, []int{1, 2}, nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	// Data axes disagree with the configured shape.
	bad := tensor.Zeros[float64, cpuB](tensor.Shape{3, 2}, p.Backend())
	_, err = p.QSample(bad, []int{1, 2}, nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	// Noise shape disagrees with the sample.
	good := tensor.Zeros[float64, cpuB](tensor.Shape{2, 2}, p.Backend())
	noise := tensor.Zeros[float64, cpuB](tensor.Shape{2, 3}, p.Backend())
	_, err = p.QSample(good, []int{1, 2}, noise)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestQSampleAtBroadcastsTimestep(t *testing.T) {
	p := newProcess(t, []float64{0.1, 0.2, 0.3}, tensor.Shape{1})

	xStart := fromSlice(t, []float64{1, 2, 3}, tensor.Shape{1, 3})
	noise := tensor.Zeros[float64, cpuB](tensor.Shape{1, 3}, p.Backend())

	got, err := p.QSampleAt(xStart, 2, noise)
	require.NoError(t, err)
	s := math.Sqrt(0.72)
	assert.InDeltaSlice(t, []float64{s, 2 * s, 3 * s}, got.Data(), 1e-12)

	_, err = p.QSampleAt(xStart, 9, noise)
	assert.ErrorIs(t, err, ErrTimestepOutOfRange)
}

func TestQPosteriorMeanVariance(t *testing.T) {
	p := newProcess(t, []float64{0.1, 0.2, 0.3}, tensor.Shape{1})

	xStart := fromSlice(t, []float64{0.5, 0.5}, tensor.Shape{1, 2})
	xT := fromSlice(t, []float64{1.0, 1.0}, tensor.Shape{1, 2})

	mean, variance, err := p.QPosteriorMeanVariance(xStart, xT, []int{2, 3})
	require.NoError(t, err)

	// mean_t = coef1_t * x0 + coef2_t * x_t, per batch column.
	want := []float64{
		p.posteriorMeanCoef1[1]*0.5 + p.posteriorMeanCoef2[1]*1.0,
		p.posteriorMeanCoef1[2]*0.5 + p.posteriorMeanCoef2[2]*1.0,
	}
	assert.InDeltaSlice(t, want, mean.Data(), 1e-12)

	// The variance comes back broadcastable, one entry per example.
	assert.True(t, variance.Shape().Equal(tensor.Shape{1, 2}), "got %v", variance.Shape())
	assert.InDeltaSlice(t, []float64{
		p.posteriorVariance[1], p.posteriorVariance[2],
	}, variance.Data(), 1e-12)
}

func TestQPosteriorShapeMismatch(t *testing.T) {
	p := newProcess(t, []float64{0.1, 0.2}, tensor.Shape{1})

	xStart := tensor.Zeros[float64, cpuB](tensor.Shape{1, 2}, p.Backend())
	xT := tensor.Zeros[float64, cpuB](tensor.Shape{1, 3}, p.Backend())
	_, _, err := p.QPosteriorMeanVariance(xStart, xT, []int{1, 2})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestPredictStartFromNoiseValidation(t *testing.T) {
	p := newProcess(t, []float64{0.1, 0.2}, tensor.Shape{1})
	xT := tensor.Zeros[float64, cpuB](tensor.Shape{1, 2}, p.Backend())

	_, err := p.PredictStartFromNoise(xT, []int{1, 2}, nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	bad := tensor.Zeros[float64, cpuB](tensor.Shape{1, 3}, p.Backend())
	_, err = p.PredictStartFromNoise(xT, []int{1, 2}, bad)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
