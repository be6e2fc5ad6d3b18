package drawsgd

import "github.com/unixpickle/anydiff"

// A Transformer transforms gradients.
// For example, Adam is implemented as a Transformer.
//
// After its first call, a Transformer expects to see
// gradients of the same form (i.e. containing the same
// variables).
//
// A Transformer may modify its input and return the same
// gradient as an output, but it must not retain a
// reference to the input.
type Transformer interface {
	Transform(g anydiff.Grad) anydiff.Grad
}

// A Batch is an immutable list of samples, ready to be
// passed to a Gradienter.
type Batch interface{}

// A Fetcher is responsible for fetching Batches for
// SampleLists.
type Fetcher interface {
	Fetch(s SampleList) (Batch, error)
}

// A Gradienter computes a gradient for a Batch.
//
// The same gradient instance may be re-used by successive
// calls to Gradient.
type Gradienter interface {
	Gradient(b Batch) anydiff.Grad
}

// A Rater determines the learning rate given the epoch
// number.
// An "epoch" is a full pass over the training set, so
// fractional epochs are possible.
type Rater interface {
	Rate(epoch float64) float64
}

// A SampleList represents a list of training samples.
type SampleList interface {
	// Len returns the number of samples.
	Len() int

	// Swap swaps two samples.
	Swap(i, j int)

	// Slice generates a shallow copy of a subset of the
	// list.
	Slice(i, j int) SampleList
}

// A Coster computes differentiable costs for a Batch.
// The resulting cost vectors should have one component.
type Coster interface {
	TotalCost(b Batch) anydiff.Res
}
