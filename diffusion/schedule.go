// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package diffusion

import (
	"fmt"
	"math"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// Default hyperparameters for the built-in schedules, matching the
// reference 1000-step DDPM configuration.
const (
	DefaultBetaStart = 1e-4
	DefaultBetaEnd   = 0.02
	cosineOffset     = 0.008
	cosineBetaMax    = 0.999
)

// LinearSchedule builds a linear beta schedule with the reference start
// and end values, rescaled by 1000/steps so that schedules of different
// lengths keep the total noise budget of the 1000-step reference.
func LinearSchedule[T tensor.DType](steps int) ([]T, error) {
	return LinearScheduleRange[T](steps, DefaultBetaStart, DefaultBetaEnd)
}

// LinearScheduleRange builds a linear beta schedule between start and
// end, both rescaled by 1000/steps.
func LinearScheduleRange[T tensor.DType](steps int, start, end float64) ([]T, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("diffusion: schedule needs a positive number of steps, got %d", steps)
	}

	scale := 1000.0 / float64(steps)
	lo, hi := scale*start, scale*end

	betas := make([]T, steps)
	if steps == 1 {
		betas[0] = T(lo)
		return betas, nil
	}
	step := (hi - lo) / float64(steps-1)
	for i := range betas {
		betas[i] = T(lo + float64(i)*step)
	}
	return betas, nil
}

// CosineSchedule builds the cosine beta schedule of Nichol & Dhariwal:
// shape the cumulative alpha product with a squared cosine (offset
// 0.008), normalize it to start at 1, recover per-step betas from
// consecutive ratios, and clamp them into [0, 0.999] to avoid numerical
// blow-up near the final step.
func CosineSchedule[T tensor.DType](steps int) ([]T, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("diffusion: schedule needs a positive number of steps, got %d", steps)
	}

	f := func(t float64) float64 {
		x := (t/float64(steps) + cosineOffset) / (1 + cosineOffset)
		c := math.Cos(x * math.Pi / 2)
		return c * c
	}
	f0 := f(0)

	betas := make([]T, steps)
	prev := 1.0
	for t := 1; t <= steps; t++ {
		cur := f(float64(t)) / f0
		beta := 1 - cur/prev
		betas[t-1] = T(math.Min(math.Max(beta, 0), cosineBetaMax))
		prev = cur
	}
	return betas, nil
}
