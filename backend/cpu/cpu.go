// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu exposes the CPU compute backend.
package cpu

import (
	internalcpu "github.com/FeMa42/scps-diffusion/internal/backend/cpu"
	"github.com/FeMa42/scps-diffusion/tensor"
)

// Backend is the CPU backend implementation: pure Go kernels for every
// tensor operation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 8}, backend)
func New() *Backend {
	return internalcpu.New()
}
