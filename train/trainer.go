// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train drives the denoising training loop: shuffled
// minibatches over a fixed dataset, a uniform random timestep per
// example, and gradient steps on the noise prediction error.
package train

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/FeMa42/scps-diffusion/diffusion"
	"github.com/FeMa42/scps-diffusion/internal/dataset"
	"github.com/FeMa42/scps-diffusion/nn"
	"github.com/FeMa42/scps-diffusion/optim"
	"github.com/FeMa42/scps-diffusion/tensor"
)

// Trainer owns one training run: a model, its diffusion process, an
// optimizer, and a run ID that ends up in every checkpoint it writes.
type Trainer[T tensor.DType, B tensor.Backend] struct {
	cfg     Config
	process *diffusion.Process[T, B]
	model   *nn.DenoiserMLP[T, B]
	opt     optim.Optimizer
	rng     *rand.Rand
	runID   string
	step    int64
}

// NewTrainer wires a model, process, and optimizer from the config.
func NewTrainer[T tensor.DType, B tensor.Backend](cfg Config, backend B) (*Trainer[T, B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	model := nn.NewDenoiserMLP[T, B](cfg.DataDim, cfg.HiddenDim, cfg.TimeDim, rng, backend)

	betas, err := scheduleFor[T](cfg)
	if err != nil {
		return nil, err
	}
	process, err := diffusion.New[T, B](
		betas,
		tensor.Shape{cfg.DataDim},
		model,
		backend,
		diffusion.WithRand[T, B](rng),
	)
	if err != nil {
		return nil, err
	}

	var opt optim.Optimizer
	switch cfg.Optimizer {
	case "sgd":
		opt = optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: cfg.LR, Momentum: 0.9})
	default:
		opt = optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: cfg.LR})
	}

	return &Trainer[T, B]{
		cfg:     cfg,
		process: process,
		model:   model,
		opt:     opt,
		rng:     rng,
		runID:   uuid.NewString(),
	}, nil
}

func scheduleFor[T tensor.DType](cfg Config) ([]T, error) {
	if cfg.Schedule == ScheduleCosine {
		return diffusion.CosineSchedule[T](cfg.Timesteps)
	}
	return diffusion.LinearSchedule[T](cfg.Timesteps)
}

// RunID identifies this training run in checkpoints and logs.
func (t *Trainer[T, B]) RunID() string { return t.runID }

// Model returns the denoiser being trained.
func (t *Trainer[T, B]) Model() *nn.DenoiserMLP[T, B] { return t.model }

// Process returns the diffusion process the trainer samples from.
func (t *Trainer[T, B]) Process() *diffusion.Process[T, B] { return t.process }

// Fit trains the model on data of shape (dataDim, N). It returns the
// mean loss over the final epoch.
func (t *Trainer[T, B]) Fit(data *tensor.Tensor[T, B]) (float64, error) {
	shape := data.Shape()
	if len(shape) != 2 || shape[0] != t.cfg.DataDim {
		return 0, fmt.Errorf("train: data shape %v, want (%d, N)", shape, t.cfg.DataDim)
	}
	n := shape[1]
	if n < 1 {
		return 0, fmt.Errorf("train: empty dataset")
	}

	log.Printf("train: run %s starting: %s, T=%d, %d samples, %d epochs",
		t.runID, t.model, t.process.NumTimesteps(), n, t.cfg.Epochs)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	start := time.Now()
	var epochLoss float64
	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		t.rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		var sum float64
		var batches int
		for lo := 0; lo < n; lo += t.cfg.BatchSize {
			hi := lo + t.cfg.BatchSize
			if hi > n {
				hi = n
			}
			batch, err := dataset.Columns(data, idx[lo:hi])
			if err != nil {
				return 0, err
			}
			loss, err := t.trainStep(batch)
			if err != nil {
				return 0, err
			}
			sum += loss
			batches++

			if t.cfg.LogEvery > 0 && t.step%int64(t.cfg.LogEvery) == 0 {
				log.Printf("train: epoch %d step %d loss %.6f", epoch, t.step, loss)
			}
		}
		epochLoss = sum / float64(batches)

		if t.cfg.CheckpointEvery > 0 && epoch%t.cfg.CheckpointEvery == 0 {
			if err := t.save(epoch, epochLoss); err != nil {
				return 0, err
			}
		}
	}

	if t.cfg.CheckpointPath != "" {
		if err := t.save(t.cfg.Epochs, epochLoss); err != nil {
			return 0, err
		}
	}

	log.Printf("train: run %s finished in %s, final epoch loss %.6f",
		t.runID, time.Since(start).Round(time.Millisecond), epochLoss)
	return epochLoss, nil
}

// trainStep runs one minibatch: noise it to random timesteps, measure
// the prediction error, and take an optimizer step.
func (t *Trainer[T, B]) trainStep(batch *tensor.Tensor[T, B]) (float64, error) {
	timesteps := t.process.RandTimesteps(batch.Shape()[1])

	t.opt.ZeroGrad()
	loss, pred, target, err := t.process.Losses(batch, timesteps, nil)
	if err != nil {
		return 0, err
	}
	t.model.Backward(nn.MSELossGrad(pred, target))
	t.opt.Step()
	t.step++

	return float64(loss.Item()), nil
}

func (t *Trainer[T, B]) save(epoch int, loss float64) error {
	if t.cfg.CheckpointPath == "" {
		return nil
	}
	header := nn.CheckpointHeader{
		ModelType: "denoiser_mlp",
		RunID:     t.runID,
		Epoch:     epoch,
		Step:      t.step,
		Loss:      loss,
	}
	if err := nn.SaveCheckpoint(t.cfg.CheckpointPath, t.model.StateDict(), header); err != nil {
		return fmt.Errorf("train: save checkpoint: %w", err)
	}
	log.Printf("train: saved checkpoint %s (epoch %d)", t.cfg.CheckpointPath, epoch)
	return nil
}
