// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FeMa42/scps-diffusion/backend/cpu"
	"github.com/FeMa42/scps-diffusion/tensor"
)

type cpuB = *cpu.Backend

func fromSlice(t *testing.T, data []float64, shape tensor.Shape) *tensor.Tensor[float64, cpuB] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, cpu.New())
	require.NoError(t, err)
	return x
}

// setParam overwrites a parameter's storage with fixed values.
func setParam[T tensor.DType, B tensor.Backend](t *testing.T, p *Parameter[T, B], values []T) {
	t.Helper()
	require.Len(t, values, p.Tensor().NumElements())
	copy(p.Tensor().Data(), values)
}

func TestLinearForward(t *testing.T) {
	backend := cpu.New()
	l := NewLinear[float64, cpuB](2, 2, nil, backend)
	setParam(t, l.Parameters()[0], []float64{1, 2, 3, 4}) // weight (2, 2)
	setParam(t, l.Parameters()[1], []float64{10, 20})     // bias (2)

	// One batch column x = (1, 2): y = W @ x + b = (15, 31).
	x := fromSlice(t, []float64{1, 2}, tensor.Shape{2, 1})
	y := l.Forward(x)
	assert.True(t, y.Shape().Equal(tensor.Shape{2, 1}))
	assert.InDeltaSlice(t, []float64{15, 31}, y.Data(), 1e-12)
}

func TestLinearForwardBatch(t *testing.T) {
	backend := cpu.New()
	l := NewLinear[float64, cpuB](2, 1, nil, backend)
	setParam(t, l.Parameters()[0], []float64{1, 1})
	setParam(t, l.Parameters()[1], []float64{0.5})

	// Batch-last: three examples as columns of a (2, 3) input.
	x := fromSlice(t, []float64{
		1, 2, 3,
		4, 5, 6,
	}, tensor.Shape{2, 3})
	y := l.Forward(x)
	assert.True(t, y.Shape().Equal(tensor.Shape{1, 3}))
	assert.InDeltaSlice(t, []float64{5.5, 7.5, 9.5}, y.Data(), 1e-12)
}

func TestLinearForwardShapePanics(t *testing.T) {
	l := NewLinear[float64, cpuB](3, 2, nil, cpu.New())
	assert.Panics(t, func() {
		l.Forward(fromSlice(t, []float64{1, 2}, tensor.Shape{2, 1}))
	})
}

func TestLinearBackward(t *testing.T) {
	backend := cpu.New()
	l := NewLinear[float64, cpuB](2, 2, nil, backend)
	setParam(t, l.Parameters()[0], []float64{1, 2, 3, 4})
	setParam(t, l.Parameters()[1], []float64{0, 0})

	x := fromSlice(t, []float64{1, 2}, tensor.Shape{2, 1})
	gradOut := fromSlice(t, []float64{1, 1}, tensor.Shape{2, 1})

	gradIn := l.Backward(x, gradOut)

	// dL/dW = gradOut @ x^T, dL/db = row sums, dL/dx = W^T @ gradOut.
	assert.InDeltaSlice(t, []float64{1, 2, 1, 2}, l.Parameters()[0].Grad().Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{1, 1}, l.Parameters()[1].Grad().Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{4, 6}, gradIn.Data(), 1e-12)
}

func TestLinearBackwardAccumulates(t *testing.T) {
	backend := cpu.New()
	l := NewLinear[float64, cpuB](1, 1, nil, backend)
	setParam(t, l.Parameters()[0], []float64{2})
	setParam(t, l.Parameters()[1], []float64{0})

	x := fromSlice(t, []float64{3}, tensor.Shape{1, 1})
	g := fromSlice(t, []float64{1}, tensor.Shape{1, 1})

	l.Backward(x, g)
	l.Backward(x, g)
	assert.InDeltaSlice(t, []float64{6}, l.Parameters()[0].Grad().Data(), 1e-12,
		"two backward passes must sum their gradients")

	l.Parameters()[0].ZeroGrad()
	assert.Nil(t, l.Parameters()[0].Grad())
}

func TestLinearStateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	src := NewLinear[float64, cpuB](4, 3, rng, backend)
	dst := NewLinear[float64, cpuB](4, 3, rng, backend)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	assert.Equal(t, src.Parameters()[0].Tensor().Data(), dst.Parameters()[0].Tensor().Data())
	assert.Equal(t, src.Parameters()[1].Tensor().Data(), dst.Parameters()[1].Tensor().Data())
}

func TestLinearLoadStateDictValidation(t *testing.T) {
	backend := cpu.New()
	l := NewLinear[float64, cpuB](2, 2, nil, backend)

	err := l.LoadStateDict(map[string]*tensor.RawTensor{})
	assert.ErrorContains(t, err, "missing")

	wrong := NewLinear[float64, cpuB](3, 2, nil, backend)
	err = l.LoadStateDict(wrong.StateDict())
	assert.ErrorContains(t, err, "shape mismatch")
}

func TestXavierBounds(t *testing.T) {
	backend := cpu.New()
	w := Xavier[float64, cpuB](100, 50, tensor.Shape{50, 100}, rand.New(rand.NewSource(1)), backend)

	// limit = sqrt(6 / (fanIn + fanOut))
	limit := 0.2 // sqrt(6/150) = 0.2
	var nonzero int
	for _, v := range w.Data() {
		assert.GreaterOrEqual(t, v, -limit)
		assert.LessOrEqual(t, v, limit)
		if v != 0 {
			nonzero++
		}
	}
	assert.Greater(t, nonzero, 4000, "initialization should not be degenerate")
}
