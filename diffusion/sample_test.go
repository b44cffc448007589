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

	"github.com/FeMa42/scps-diffusion/backend/cpu"
	"github.com/FeMa42/scps-diffusion/tensor"
)

// Closed-form reverse walk for beta = [0.5, 0.5] and a denoiser that
// always predicts zero noise. With abar = [0.5, 0.25]:
//
//	t=2: x0_hat = x/sqrt(0.25) = 2x,  coef1 = coef2 = sqrt(0.5)*0.5/0.75
//	t=1: x0_hat = x/sqrt(0.5),        coef1 = 1, coef2 = 0
func TestPSampleClosedFormWalk(t *testing.T) {
	p := newProcess(t, []float64{0.5, 0.5}, tensor.Shape{1})
	zero := tensor.Zeros[float64, cpuB](tensor.Shape{1, 1}, p.Backend())

	x := fromSlice(t, []float64{1}, tensor.Shape{1, 1})

	// Clipped: x0_hat = 2 clamps to 1, mean = coef1*1 + coef2*1.
	xPrev, xStartHat, err := p.PSample(x, []int{2}, zero, true, true)
	require.NoError(t, err)
	coef := 0.5 * math.Sqrt(0.5) / 0.75
	assert.InDelta(t, 1.0, xStartHat.Item(), 1e-12)
	assert.InDelta(t, 2*coef, xPrev.Item(), 1e-12) // 0.942809...
	assert.InDelta(t, 0.9428090415820634, xPrev.Item(), 1e-12)

	// Final step: x0_hat clamps to 1 again, mean collapses onto it.
	final, _, err := p.PSample(xPrev, []int{1}, nil, true, false)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, final.Item(), 1e-12)
}

func TestPSampleUnclippedWalk(t *testing.T) {
	p := newProcess(t, []float64{0.5, 0.5}, tensor.Shape{1})
	zero := tensor.Zeros[float64, cpuB](tensor.Shape{1, 1}, p.Backend())

	x := fromSlice(t, []float64{1}, tensor.Shape{1, 1})

	// Unclipped, t=2: x0_hat = 2, mean = coef*(2 + 1) = sqrt(2).
	xPrev, xStartHat, err := p.PSample(x, []int{2}, zero, false, true)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, xStartHat.Item(), 1e-12)
	assert.InDelta(t, math.Sqrt2, xPrev.Item(), 1e-12)

	// t=1: x0_hat = sqrt(2)/sqrt(0.5) = 2, mean = 1*2 + 0.
	final, finalStart, err := p.PSample(xPrev, []int{1}, nil, false, false)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, finalStart.Item(), 1e-12)
	assert.InDelta(t, 2.0, final.Item(), 1e-12)
}

func TestPSampleInjectedNoiseScalesWithVariance(t *testing.T) {
	p := newProcess(t, []float64{0.5, 0.5}, tensor.Shape{1})

	x := fromSlice(t, []float64{1}, tensor.Shape{1, 1})
	unit := fromSlice(t, []float64{1}, tensor.Shape{1, 1})

	quiet, _, err := p.PSample(x, []int{2}, nil, true, false)
	require.NoError(t, err)
	noisy, _, err := p.PSample(x, []int{2}, unit, true, true)
	require.NoError(t, err)

	variance := p.posteriorVariance[1]
	assert.InDelta(t, quiet.Item()+math.Sqrt(variance), noisy.Item(), 1e-12)
}

func TestPSampleLoopReproducible(t *testing.T) {
	betas, err := LinearScheduleRange[float64](20, 1e-4, 0.01)
	require.NoError(t, err)

	run := func(seed int64) *tensor.Tensor[float64, cpuB] {
		p := newProcess(t, betas, tensor.Shape{3},
			WithRand[float64, cpuB](rand.New(rand.NewSource(seed))))
		out, err := p.PSampleLoopBatch(4, true)
		require.NoError(t, err)
		return out
	}

	a, b := run(17), run(17)
	assert.Equal(t, a.Data(), b.Data(), "same seed must reproduce the trajectory")

	c := run(18)
	assert.NotEqual(t, a.Data(), c.Data(), "different seeds should diverge")
}

func TestPSampleLoopFiniteWithUnitBeta(t *testing.T) {
	// The 20-step reference rescale ends at beta = 1.0 exactly, which
	// zeroes the cumulative alpha product from that step onward. The
	// floored reciprocal coefficients keep the whole trajectory finite.
	betas, err := LinearSchedule[float64](20)
	require.NoError(t, err)
	require.Equal(t, 1.0, betas[19])

	p := newProcess(t, betas, tensor.Shape{2},
		WithRand[float64, cpuB](rand.New(rand.NewSource(5))))

	out, err := p.PSampleLoopBatch(4, true)
	require.NoError(t, err)
	for i, v := range out.Data() {
		require.False(t, math.IsNaN(v), "sample value %d is NaN", i)
		require.False(t, math.IsInf(v, 0), "sample value %d is infinite", i)
	}
}

func TestPSampleLoopOutputShapeAndBounds(t *testing.T) {
	betas, err := CosineSchedule[float64](10)
	require.NoError(t, err)
	p := newProcess(t, betas, tensor.Shape{2, 3},
		WithRand[float64, cpuB](rand.New(rand.NewSource(1))))

	out, err := p.PSampleLoop(tensor.Shape{2, 3, 5}, true)
	require.NoError(t, err)
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 3, 5}), "got %v", out.Shape())
}

func TestPSampleLoopShapeValidation(t *testing.T) {
	p := newProcess(t, []float64{0.1, 0.2}, tensor.Shape{2})

	_, err := p.PSampleLoop(tensor.Shape{2}, true)
	assert.ErrorIs(t, err, ErrShapeMismatch, "missing batch axis")

	_, err = p.PSampleLoop(tensor.Shape{3, 4}, true)
	assert.ErrorIs(t, err, ErrShapeMismatch, "wrong data axis")

	_, err = p.PSampleLoopBatch(0, true)
	assert.ErrorIs(t, err, ErrShapeMismatch, "empty batch")

	_, err = p.PSampleLoopBatch(-2, true)
	assert.ErrorIs(t, err, ErrShapeMismatch, "negative batch")
}

func TestPSampleLoopAllTrajectory(t *testing.T) {
	betas := []float64{0.3, 0.3, 0.3}
	shape := tensor.Shape{2, 4}

	pAll := newProcess(t, betas, tensor.Shape{2},
		WithRand[float64, cpuB](rand.New(rand.NewSource(9))))
	allX, allXStart, err := pAll.PSampleLoopAll(shape, true)
	require.NoError(t, err)

	// A trailing time axis of length T is appended.
	wantShape := tensor.Shape{2, 4, 3}
	assert.True(t, allX.Shape().Equal(wantShape), "got %v", allX.Shape())
	assert.True(t, allXStart.Shape().Equal(wantShape), "got %v", allXStart.Shape())

	// The last time index holds the final sample: it must match a
	// plain loop driven by an identically seeded process.
	pLoop := newProcess(t, betas, tensor.Shape{2},
		WithRand[float64, cpuB](rand.New(rand.NewSource(9))))
	final, err := pLoop.PSampleLoop(shape, true)
	require.NoError(t, err)

	steps := 3
	traj := allX.Data()
	for i, want := range final.Data() {
		assert.InDelta(t, want, traj[i*steps+steps-1], 1e-12, "element %d", i)
	}

	// Start-point estimates are clipped into the configured bounds.
	for i, v := range allXStart.Data() {
		assert.GreaterOrEqual(t, v, -1.0, "x0_hat[%d]", i)
		assert.LessOrEqual(t, v, 1.0, "x0_hat[%d]", i)
	}
}

func TestDenoiseRejectsBadDenoiserOutput(t *testing.T) {
	backend := cpu.New()
	bad := DenoiserFunc[float64, cpuB](func(x *tensor.Tensor[float64, cpuB], _ []int) *tensor.Tensor[float64, cpuB] {
		return tensor.Zeros[float64, cpuB](tensor.Shape{1, 1}, x.Backend())
	})
	p, err := New[float64]([]float64{0.1, 0.2}, tensor.Shape{2}, bad, backend)
	require.NoError(t, err)

	x := tensor.Zeros[float64, cpuB](tensor.Shape{2, 3}, backend)
	_, _, err = p.Denoise(x, []int{1, 2, 1})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	nilDen := DenoiserFunc[float64, cpuB](func(*tensor.Tensor[float64, cpuB], []int) *tensor.Tensor[float64, cpuB] {
		return nil
	})
	p2, err := New[float64]([]float64{0.1}, tensor.Shape{2}, nilDen, backend)
	require.NoError(t, err)
	_, _, err = p2.Denoise(tensor.Zeros[float64, cpuB](tensor.Shape{2, 1}, backend), []int{1})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
