package main

import (
	"errors"
	"flag"
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/unixpickle/drawnet/drawdata"
)

// Config captures the knobs for one run of the demo.
type Config struct {
	Addr      string
	ImageURL  string
	LabelsURL string

	NumExamples int
	NumTrain    int
	NumTest     int

	Epochs    int
	BatchSize int
	EvalLimit int
	Seed      int64
	Workers   int

	MNISTCheck bool
}

// DefaultConfig returns the settings used when no flags
// are given.
func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:8080",
		ImageURL:    drawdata.DefaultImageURL,
		LabelsURL:   drawdata.DefaultLabelsURL,
		NumExamples: drawdata.NumExamples,
		NumTrain:    drawdata.DefaultTrain,
		NumTest:     drawdata.DefaultTest,
		Epochs:      25,
		BatchSize:   2048,
		EvalLimit:   drawdata.NoLimit,
		Seed:        1,
		Workers:     defaultWorkers(),
	}
}

// RegisterFlags binds every field to a flag, using the
// current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "address for the web UI")
	fs.StringVar(&c.ImageURL, "images", c.ImageURL, "sprite image URL or path")
	fs.StringVar(&c.LabelsURL, "labels", c.LabelsURL, "one-hot label URL or path")
	fs.IntVar(&c.NumExamples, "examples", c.NumExamples, "number of examples in the sprite")
	fs.IntVar(&c.NumTrain, "train", c.NumTrain, "number of training examples")
	fs.IntVar(&c.NumTest, "test", c.NumTest, "number of test examples")
	fs.IntVar(&c.Epochs, "epochs", c.Epochs, "training epochs")
	fs.IntVar(&c.BatchSize, "batch", c.BatchSize, "mini-batch size")
	fs.IntVar(&c.EvalLimit, "eval", c.EvalLimit, "max test examples to evaluate (-1 for all)")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "random seed for initialization and shuffling")
	fs.IntVar(&c.Workers, "workers", c.Workers, "goroutines used to assemble batches")
	fs.BoolVar(&c.MNISTCheck, "mnist-check", c.MNISTCheck,
		"score the trained model on the canonical MNIST test set")
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.ImageURL == "" || c.LabelsURL == "" {
		return errors.New("images and labels are required")
	}
	if c.NumExamples <= 0 {
		return fmt.Errorf("examples must be > 0 (got %d)", c.NumExamples)
	}
	if c.NumTrain <= 0 {
		return fmt.Errorf("train must be > 0 (got %d)", c.NumTrain)
	}
	if c.NumTest < 0 {
		return fmt.Errorf("test must be >= 0 (got %d)", c.NumTest)
	}
	if c.NumTrain+c.NumTest > c.NumExamples {
		return fmt.Errorf("train + test (%d) exceeds examples (%d)",
			c.NumTrain+c.NumTest, c.NumExamples)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch must be > 0 (got %d)", c.BatchSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0 (got %d)", c.Workers)
	}
	return nil
}

func defaultWorkers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}
