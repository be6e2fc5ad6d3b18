package main

import (
	"flag"
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.NumTrain != 40000 || cfg.NumTest != 10000 || cfg.Epochs != 25 || cfg.BatchSize != 2048 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigFlags(t *testing.T) {
	cfg := DefaultConfig()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	err := fs.Parse([]string{"-train", "100", "-test", "20", "-epochs", "2",
		"-images", "sprite.png", "-mnist-check"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.NumTrain != 100 || cfg.NumTest != 20 || cfg.Epochs != 2 {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.ImageURL != "sprite.png" || !cfg.MNISTCheck {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Error(err)
	}
}

func TestConfigValidate(t *testing.T) {
	mutations := []func(c *Config){
		func(c *Config) { c.Addr = "" },
		func(c *Config) { c.LabelsURL = "" },
		func(c *Config) { c.NumTrain = 0 },
		func(c *Config) { c.NumTest = -1 },
		func(c *Config) { c.NumTrain = c.NumExamples },
		func(c *Config) { c.Epochs = 0 },
		func(c *Config) { c.BatchSize = -5 },
		func(c *Config) { c.Workers = 0 },
	}
	for i, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("mutation %d: expected an error", i)
		}
	}
}
