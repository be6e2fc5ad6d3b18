// Package drawdata loads the handwritten digit dataset
// from a sprite image and a one-hot label file, and holds
// the resulting train and test splits.
package drawdata

import (
	"errors"
	"fmt"
)

// Dimensions of the dataset.
const (
	ImageHeight = 28
	ImageWidth  = 28
	ImageSize   = ImageHeight * ImageWidth
	NumClasses  = 10

	// NumExamples is the number of examples in the
	// default sprite.
	NumExamples = 65000

	// ChunkSize is the number of sprite rows decoded
	// per band.
	ChunkSize = 5000
)

// Default split sizes.
const (
	DefaultTrain = 40000
	DefaultTest  = 10000
)

// Default dataset locations.
const (
	DefaultImageURL  = "https://storage.googleapis.com/learnjs-data/model-builder/mnist_images.png"
	DefaultLabelsURL = "https://storage.googleapis.com/learnjs-data/model-builder/mnist_labels_uint8"
)

// NoLimit may be passed to Store.TestData to get every
// test example.
const NoLimit = -1

// ErrNotLoaded is returned when data is requested from a
// Store which has not finished a load.
var ErrNotLoaded = errors.New("dataset not loaded")

// A DataLoadError indicates that one of the dataset
// resources could not be fetched or decoded, or that the
// requested split could not be made.
type DataLoadError struct {
	// Resource is "image", "labels", or "dataset".
	Resource string
	Err      error
}

func (d *DataLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", d.Resource, d.Err)
}

func (d *DataLoadError) Unwrap() error {
	return d.Err
}

// A Tensor is a packed, row-major array with a shape.
//
// Tensors handed out by a Store share memory with it and
// must not be modified.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Count returns the size of the leading dimension.
func (t Tensor) Count() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// NumElements returns the product of the shape.
func (t Tensor) NumElements() int {
	size := 1
	for _, x := range t.Shape {
		size *= x
	}
	return size
}

// A Split is a contiguous run of examples.
type Split struct {
	Images []float32
	Labels []uint8
	Count  int
}

// Tensors returns the first limit examples as an image
// tensor of shape [n, 28, 28, 1] and a label tensor of
// shape [n, 10].
// A negative limit, or one beyond s.Count, means every
// example.
func (s *Split) Tensors(limit int) (images, labels Tensor) {
	n := s.Count
	if limit >= 0 && limit < n {
		n = limit
	}
	images = Tensor{
		Shape: []int{n, ImageHeight, ImageWidth, 1},
		Data:  s.Images[:n*ImageSize],
	}
	labelData := make([]float32, n*NumClasses)
	for i, x := range s.Labels[:n*NumClasses] {
		labelData[i] = float32(x)
	}
	labels = Tensor{
		Shape: []int{n, NumClasses},
		Data:  labelData,
	}
	return
}

// A Dataset holds a train and a test split.
type Dataset struct {
	Train Split
	Test  Split
}
