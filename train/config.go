// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package train

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Schedule names accepted by Config.
const (
	ScheduleLinear = "linear"
	ScheduleCosine = "cosine"
)

// Config holds the knobs of a training run. Zero values are replaced
// with defaults by Validate, so a partial YAML file is fine.
type Config struct {
	// Diffusion process.
	Timesteps int    `yaml:"timesteps"`
	Schedule  string `yaml:"schedule"`

	// Model.
	DataDim   int `yaml:"data_dim"`
	HiddenDim int `yaml:"hidden_dim"`
	TimeDim   int `yaml:"time_dim"`

	// Optimization.
	Epochs    int     `yaml:"epochs"`
	BatchSize int     `yaml:"batch_size"`
	LR        float64 `yaml:"lr"`
	Optimizer string  `yaml:"optimizer"` // "adam" or "sgd"

	// Data.
	Dataset    string  `yaml:"dataset"` // "swissroll" or "ring"
	NumSamples int     `yaml:"num_samples"`
	DataNoise  float64 `yaml:"data_noise"`

	// Bookkeeping.
	Seed            int64  `yaml:"seed"`
	CheckpointPath  string `yaml:"checkpoint_path"`
	CheckpointEvery int    `yaml:"checkpoint_every"` // epochs between saves, 0 = final only
	LogEvery        int    `yaml:"log_every"`        // steps between progress lines
}

// DefaultConfig returns a configuration that trains a small model on
// the swiss roll in a few seconds on a laptop CPU.
func DefaultConfig() Config {
	return Config{
		Timesteps:  100,
		Schedule:   ScheduleLinear,
		DataDim:    2,
		HiddenDim:  128,
		TimeDim:    32,
		Epochs:     200,
		BatchSize:  128,
		LR:         1e-3,
		Optimizer:  "adam",
		Dataset:    "swissroll",
		NumSamples: 4096,
		DataNoise:  0.1,
		Seed:       42,
		LogEvery:   50,
	}
}

// LoadConfig reads a YAML config file and fills unset fields with
// defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("train: read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("train: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config and fills remaining zero values with
// defaults.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.Timesteps == 0 {
		c.Timesteps = def.Timesteps
	}
	if c.Schedule == "" {
		c.Schedule = def.Schedule
	}
	if c.DataDim == 0 {
		c.DataDim = def.DataDim
	}
	if c.HiddenDim == 0 {
		c.HiddenDim = def.HiddenDim
	}
	if c.TimeDim == 0 {
		c.TimeDim = def.TimeDim
	}
	if c.Epochs == 0 {
		c.Epochs = def.Epochs
	}
	if c.BatchSize == 0 {
		c.BatchSize = def.BatchSize
	}
	if c.LR == 0 {
		c.LR = def.LR
	}
	if c.Optimizer == "" {
		c.Optimizer = def.Optimizer
	}
	if c.Dataset == "" {
		c.Dataset = def.Dataset
	}
	if c.NumSamples == 0 {
		c.NumSamples = def.NumSamples
	}
	if c.LogEvery == 0 {
		c.LogEvery = def.LogEvery
	}

	if c.Timesteps < 1 {
		return fmt.Errorf("train: timesteps must be positive, got %d", c.Timesteps)
	}
	if c.Schedule != ScheduleLinear && c.Schedule != ScheduleCosine {
		return fmt.Errorf("train: unknown schedule %q", c.Schedule)
	}
	if c.Optimizer != "adam" && c.Optimizer != "sgd" {
		return fmt.Errorf("train: unknown optimizer %q", c.Optimizer)
	}
	if c.Dataset != "swissroll" && c.Dataset != "ring" {
		return fmt.Errorf("train: unknown dataset %q", c.Dataset)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("train: batch size must be positive, got %d", c.BatchSize)
	}
	if c.TimeDim%2 != 0 {
		return fmt.Errorf("train: time embedding dimension must be even, got %d", c.TimeDim)
	}
	return nil
}
