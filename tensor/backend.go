// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/FeMa42/scps-diffusion/internal/tensor"

// Backend is the compute interface behind tensor operations.
//
// The diffusion core never parallelizes across reverse-process steps;
// any data parallelism within one step (element-wise algebra, matmul)
// belongs to the backend implementation.
//
// Implementations:
//   - backend/cpu: pure Go kernels
type Backend = tensor.Backend
