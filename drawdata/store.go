package drawdata

import (
	"context"
	"sync"
)

// A Store holds the most recently loaded Dataset.
//
// It is safe for concurrent use.
// Until a load succeeds, data accessors return
// ErrNotLoaded.
type Store struct {
	lock sync.RWMutex
	data *Dataset
}

// Load runs the loader and, on success, replaces the
// stored dataset.
// On failure, the store is left as it was.
func (s *Store) Load(ctx context.Context, l *Loader, nTrain, nTest int) error {
	ds, err := l.Load(ctx, nTrain, nTest)
	if err != nil {
		return err
	}
	s.Set(ds)
	return nil
}

// Set replaces the stored dataset.
func (s *Store) Set(ds *Dataset) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.data = ds
}

// Ready checks if a dataset has been loaded.
func (s *Store) Ready() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.data != nil
}

// TrainData returns every training example.
// Images have shape [n, 28, 28, 1] and labels have shape
// [n, 10].
func (s *Store) TrainData() (images, labels Tensor, err error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.data == nil {
		return images, labels, ErrNotLoaded
	}
	images, labels = s.data.Train.Tensors(NoLimit)
	return
}

// TestData returns the first min(limit, n) test examples,
// or every test example if limit is negative.
func (s *Store) TestData(limit int) (images, labels Tensor, err error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.data == nil {
		return images, labels, ErrNotLoaded
	}
	images, labels = s.data.Test.Tensors(limit)
	return
}
