// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FeMa42/scps-diffusion/backend/cpu"
	"github.com/FeMa42/scps-diffusion/tensor"
)

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.scps")
	backend := cpu.New()

	src := NewDenoiserMLP[float32, cpuB](2, 8, 4, rand.New(rand.NewSource(1)), backend)
	header := CheckpointHeader{
		ModelType: "denoiser_mlp",
		RunID:     "run-42",
		Epoch:     7,
		Step:      123,
		Loss:      0.25,
	}
	require.NoError(t, SaveCheckpoint(path, src.StateDict(), header))

	state, got, err := LoadCheckpoint(path, tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, 1, got.FormatVersion)
	assert.Equal(t, "denoiser_mlp", got.ModelType)
	assert.Equal(t, "run-42", got.RunID)
	assert.Equal(t, 7, got.Epoch)
	assert.Equal(t, int64(123), got.Step)
	assert.Equal(t, 0.25, got.Loss)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Len(t, got.Tensors, 8)

	dst := NewDenoiserMLP[float32, cpuB](2, 8, 4, rand.New(rand.NewSource(2)), backend)
	require.NoError(t, dst.LoadStateDict(state))

	x := tensor.RandnFrom[float32, cpuB](rand.New(rand.NewSource(3)), tensor.Shape{2, 4}, backend)
	ts := []int{1, 2, 1, 2}
	assert.Equal(t, src.PredictNoise(x, ts).Data(), dst.PredictNoise(x, ts).Data())
}

func TestCheckpointTensorsAreAligned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aligned.scps")
	backend := cpu.New()

	// Odd sizes force padding between consecutive tensors.
	rng := rand.New(rand.NewSource(6))
	state := map[string]*tensor.RawTensor{
		"a": tensor.RandnFrom[float32, cpuB](rng, tensor.Shape{3}, backend).Raw(),
		"b": tensor.RandnFrom[float32, cpuB](rng, tensor.Shape{5}, backend).Raw(),
		"c": tensor.RandnFrom[float32, cpuB](rng, tensor.Shape{2, 7}, backend).Raw(),
	}
	require.NoError(t, SaveCheckpoint(path, state, CheckpointHeader{}))

	loaded, header, err := LoadCheckpoint(path, tensor.CPU)
	require.NoError(t, err)
	require.Len(t, header.Tensors, 3)
	for _, meta := range header.Tensors {
		assert.Zero(t, meta.Offset%64, "tensor %q starts at offset %d", meta.Name, meta.Offset)
	}
	for name, raw := range state {
		assert.Equal(t, raw.AsFloat32(), loaded[name].AsFloat32())
	}
}

func TestCheckpointFloat64Tensors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f64.scps")
	backend := cpu.New()

	w := tensor.RandnFrom[float64, cpuB](rand.New(rand.NewSource(4)), tensor.Shape{3, 2}, backend)
	require.NoError(t, SaveCheckpoint(path, map[string]*tensor.RawTensor{"w": w.Raw()}, CheckpointHeader{}))

	state, _, err := LoadCheckpoint(path, tensor.CPU)
	require.NoError(t, err)
	raw, ok := state["w"]
	require.True(t, ok)
	assert.Equal(t, tensor.Float64, raw.DType())
	assert.Equal(t, w.Data(), raw.AsFloat64())
}

func TestLoadCheckpointBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.scps")
	require.NoError(t, os.WriteFile(path, []byte("not a checkpoint at all"), 0o644))

	_, _, err := LoadCheckpoint(path, tensor.CPU)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestLoadCheckpointChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.scps")
	backend := cpu.New()

	w := tensor.RandnFrom[float32, cpuB](rand.New(rand.NewSource(5)), tensor.Shape{4}, backend)
	require.NoError(t, SaveCheckpoint(path, map[string]*tensor.RawTensor{"w": w.Raw()}, CheckpointHeader{}))

	// Flip one byte in the tensor payload at the end of the file.
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	buf[len(buf)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	_, _, err = LoadCheckpoint(path, tensor.CPU)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestLoadCheckpointTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.scps")
	backend := cpu.New()

	w := tensor.RandnFrom[float32, cpuB](rand.New(rand.NewSource(6)), tensor.Shape{4}, backend)
	require.NoError(t, SaveCheckpoint(path, map[string]*tensor.RawTensor{"w": w.Raw()}, CheckpointHeader{}))

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf[:20], 0o644))

	_, _, err = LoadCheckpoint(path, tensor.CPU)
	assert.Error(t, err)
}

func TestLoadCheckpointMissingFile(t *testing.T) {
	_, _, err := LoadCheckpoint(filepath.Join(t.TempDir(), "nope.scps"), tensor.CPU)
	assert.Error(t, err)
}
