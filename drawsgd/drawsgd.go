// Package drawsgd provides epoch-based mini-batch
// stochastic gradient descent.
package drawsgd

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/unixpickle/essentials"
)

// SGD performs stochastic gradient descent for a fixed
// number of epochs.
type SGD struct {
	// Fetcher, if non-nil, turns each mini-batch of samples
	// into a Batch.
	// If it is nil, the SampleList itself is the Batch.
	Fetcher Fetcher

	// Gradienter is used to compute initial, untransformed
	// gradients for each mini-batch.
	Gradienter Gradienter

	// Transformer, if non-nil, is used to transform each
	// gradient before the step.
	Transformer Transformer

	// Samples is the list of training samples to use for
	// training.
	// It is re-shuffled before every epoch.
	//
	// The list may not be empty.
	Samples SampleList

	// Rater determines the learning rate for each step.
	Rater Rater

	// Rand is used for shuffling.
	// If nil, the global source is used.
	Rand *rand.Rand

	// BatchSize is the mini-batch size.
	// If it is 0, then the entire sample list is used at
	// every iteration.
	BatchSize int

	// Epochs is the number of full passes over Samples.
	Epochs int

	// BatchFunc, if non-nil, is called after every step
	// with the batch that was just used.
	BatchFunc func(b Batch)

	// EpochFunc, if non-nil, is called after every epoch
	// with the zero-based epoch index.
	// A non-nil error stops training.
	EpochFunc func(epoch int) error

	// NumProcessed keeps track of the number of samples that
	// have been passed to Gradienter so far.
	// It is used to compute the epoch for Rater.
	NumProcessed int
}

// BatchesPerEpoch returns the number of steps in one pass
// over the samples.
func (s *SGD) BatchesPerEpoch() int {
	n := s.Samples.Len()
	if s.BatchSize == 0 || s.BatchSize >= n {
		if n == 0 {
			return 0
		}
		return 1
	}
	return (n + s.BatchSize - 1) / s.BatchSize
}

// Run runs SGD for s.Epochs epochs.
func (s *SGD) Run() error {
	if s.Samples.Len() == 0 {
		return errors.New("run SGD: empty sample list")
	}
	if s.Epochs <= 0 {
		return fmt.Errorf("run SGD: epochs must be > 0 (got %d)", s.Epochs)
	}
	if s.BatchSize < 0 {
		return fmt.Errorf("run SGD: batch size must be >= 0 (got %d)", s.BatchSize)
	}
	for epoch := 0; epoch < s.Epochs; epoch++ {
		Shuffle(s.Samples, s.Rand)
		for idx := 0; idx < s.Samples.Len(); {
			batchSize := s.batchSize(s.Samples.Len() - idx)
			if err := s.step(s.Samples.Slice(idx, idx+batchSize)); err != nil {
				return err
			}
			idx += batchSize
		}
		if s.EpochFunc != nil {
			if err := s.EpochFunc(epoch); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SGD) step(samples SampleList) error {
	var batch Batch = samples
	if s.Fetcher != nil {
		var err error
		batch, err = s.Fetcher.Fetch(samples)
		if err != nil {
			return essentials.AddCtx("run SGD", err)
		}
	}

	grad := s.Gradienter.Gradient(batch)
	if s.Transformer != nil {
		grad = s.Transformer.Transform(grad)
	}

	epoch := float64(s.NumProcessed) / float64(s.Samples.Len())
	scaleGrad(grad, -s.Rater.Rate(epoch))
	grad.AddToVars()

	s.NumProcessed += samples.Len()
	if s.BatchFunc != nil {
		s.BatchFunc(batch)
	}
	return nil
}

func (s *SGD) batchSize(remaining int) int {
	if s.BatchSize == 0 || s.BatchSize > remaining {
		return remaining
	}
	return s.BatchSize
}
