// Command scps trains denoising diffusion models on synthetic 2-D
// datasets and samples from trained checkpoints.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"

	"github.com/FeMa42/scps-diffusion/backend/cpu"
	"github.com/FeMa42/scps-diffusion/diffusion"
	"github.com/FeMa42/scps-diffusion/internal/dataset"
	"github.com/FeMa42/scps-diffusion/nn"
	"github.com/FeMa42/scps-diffusion/tensor"
	"github.com/FeMa42/scps-diffusion/train"
)

const version = "v0.1.0-dev"

func main() {
	log.SetFlags(log.LstdFlags)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "train":
		err = runTrain(os.Args[2:])
	case "sample":
		err = runSample(os.Args[2:])
	case "version":
		fmt.Printf("scps %s\n", version)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("scps: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: scps <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  train    Train a denoiser on a synthetic dataset")
	fmt.Fprintln(os.Stderr, "  sample   Draw samples from a trained checkpoint")
	fmt.Fprintln(os.Stderr, "  version  Show version")
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file (defaults used when empty)")
	checkpoint := fs.String("checkpoint", "model.scps", "checkpoint output path")
	fs.Parse(args)

	cfg := train.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = train.LoadConfig(*configPath)
		if err != nil {
			return err
		}
	}
	if cfg.CheckpointPath == "" {
		cfg.CheckpointPath = *checkpoint
	}

	backend := cpu.New()
	trainer, err := train.NewTrainer[float32](cfg, backend)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	data, err := loadDataset[float32](cfg, rng, backend)
	if err != nil {
		return err
	}

	_, err = trainer.Fit(data)
	return err
}

func runSample(args []string) error {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file used for training")
	checkpoint := fs.String("checkpoint", "model.scps", "checkpoint to load")
	count := fs.Int("n", 1000, "number of samples to draw")
	outPath := fs.String("out", "samples.csv", "CSV output path")
	seed := fs.Int64("seed", 0, "sampling seed (0 = nondeterministic)")
	fs.Parse(args)

	cfg := train.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = train.LoadConfig(*configPath)
		if err != nil {
			return err
		}
	}

	backend := cpu.New()
	model := nn.NewDenoiserMLP[float32](cfg.DataDim, cfg.HiddenDim, cfg.TimeDim, nil, backend)
	state, header, err := nn.LoadCheckpoint(*checkpoint, tensor.CPU)
	if err != nil {
		return err
	}
	if err := model.LoadStateDict(state); err != nil {
		return err
	}
	log.Printf("scps: loaded %s (run %s, epoch %d, loss %.6f)",
		*checkpoint, header.RunID, header.Epoch, header.Loss)

	betas, err := scheduleFor[float32](cfg)
	if err != nil {
		return err
	}
	opts := []diffusion.Option[float32, *cpu.Backend]{}
	if *seed != 0 {
		opts = append(opts, diffusion.WithRand[float32, *cpu.Backend](rand.New(rand.NewSource(*seed))))
	}
	process, err := diffusion.New[float32](betas, tensor.Shape{cfg.DataDim}, model, backend, opts...)
	if err != nil {
		return err
	}

	samples, err := process.PSampleLoopBatch(*count, true)
	if err != nil {
		return err
	}
	if err := writeCSV(*outPath, samples); err != nil {
		return err
	}
	log.Printf("scps: wrote %d samples to %s", *count, *outPath)
	return nil
}

func scheduleFor[T tensor.DType](cfg train.Config) ([]T, error) {
	if cfg.Schedule == train.ScheduleCosine {
		return diffusion.CosineSchedule[T](cfg.Timesteps)
	}
	return diffusion.LinearSchedule[T](cfg.Timesteps)
}

func loadDataset[T tensor.DType, B tensor.Backend](cfg train.Config, rng *rand.Rand, b B) (*tensor.Tensor[T, B], error) {
	switch cfg.Dataset {
	case "ring":
		return dataset.GaussianRing[T](cfg.NumSamples, 8, cfg.DataNoise, rng, b)
	default:
		return dataset.SwissRoll[T](cfg.NumSamples, cfg.DataNoise, rng, b)
	}
}

// writeCSV dumps a (d, n) tensor as n rows of d columns.
func writeCSV[T tensor.DType, B tensor.Backend](path string, samples *tensor.Tensor[T, B]) error {
	shape := samples.Shape()
	if len(shape) != 2 {
		return fmt.Errorf("expected a 2D sample tensor, got %v", shape)
	}
	d, n := shape[0], shape[1]

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	data := samples.Data()
	row := make([]string, d)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			row[j] = strconv.FormatFloat(float64(data[j*n+i]), 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
