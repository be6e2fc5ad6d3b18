package drawdata

import (
	"context"
	"fmt"
	"net/http"

	"github.com/unixpickle/drawnet/drawstatus"
)

// A Loader fetches and decodes the dataset resources.
type Loader struct {
	// ImageURL and LabelsURL locate the sprite and the
	// one-hot label file.
	// See Fetch for the supported locations.
	ImageURL  string
	LabelsURL string

	// Client is used for HTTP requests.
	// If nil, http.DefaultClient is used.
	Client *http.Client

	// NumExamples is the number of examples stored in the
	// resources.
	// If 0, the package-level NumExamples is used.
	NumExamples int

	// ChunkSize is the number of sprite rows decoded per
	// band.
	// If 0, the package-level ChunkSize is used.
	ChunkSize int

	// Reporter, if non-nil, receives status updates.
	Reporter drawstatus.Reporter
}

// DefaultLoader creates a Loader for the default
// resources.
func DefaultLoader(r drawstatus.Reporter) *Loader {
	return &Loader{
		ImageURL:  DefaultImageURL,
		LabelsURL: DefaultLabelsURL,
		Reporter:  r,
	}
}

// Load fetches both resources and splits them into a
// train set of nTrain examples and a test set of nTest
// examples.
//
// The labels are fetched concurrently with the sprite.
// If either resource fails, or the split does not fit in
// the resources, a failure status is reported and a
// *DataLoadError is returned.
func (l *Loader) Load(ctx context.Context, nTrain, nTest int) (ds *Dataset, err error) {
	n := l.NumExamples
	if n == 0 {
		n = NumExamples
	}
	chunk := l.ChunkSize
	if chunk == 0 {
		chunk = ChunkSize
	}

	r := drawstatus.OrDiscard(l.Reporter)
	defer func() {
		if err != nil {
			r.Report("Failed to load MNIST data: "+err.Error(), drawstatus.NoProgress)
		}
	}()

	if nTrain < 0 || nTest < 0 || nTrain+nTest > n {
		return nil, &DataLoadError{
			Resource: "dataset",
			Err:      fmt.Errorf("cannot split %d examples into %d and %d", n, nTrain, nTest),
		}
	}

	r.Report("Loading MNIST data...", 0)

	type labelResult struct {
		data []byte
		err  error
	}
	labelChan := make(chan labelResult, 1)
	go func() {
		data, err := Fetch(ctx, l.Client, l.LabelsURL)
		labelChan <- labelResult{data: data, err: err}
	}()

	img, err := FetchImage(ctx, l.Client, l.ImageURL)
	if err != nil {
		return nil, &DataLoadError{Resource: "image", Err: err}
	}

	r.Report("Processing image data...", 20)
	images, err := DecodeSprite(img, n, chunk, r)
	if err != nil {
		return nil, &DataLoadError{Resource: "image", Err: err}
	}

	r.Report("Loading label data...", 50)
	var res labelResult
	select {
	case res = <-labelChan:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err != nil {
		return nil, &DataLoadError{Resource: "labels", Err: res.err}
	}

	r.Report("Processing labels...", 70)
	labels, err := DecodeLabels(res.data, n)
	if err != nil {
		return nil, &DataLoadError{Resource: "labels", Err: err}
	}

	r.Report("Preparing training and test sets...", 80)
	train, test, err := SplitData(images, labels, nTrain, nTest)
	if err != nil {
		return nil, &DataLoadError{Resource: "dataset", Err: err}
	}

	r.Report("Data loading complete!", 100)
	return &Dataset{Train: train, Test: test}, nil
}
