package drawnet

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var f Flatten
	serializer.RegisterTypedDeserializer(f.SerializerType(), DeserializeFlatten)
}

// Flatten turns a batch of Height x Width x Depth images
// into a batch of vectors.
//
// Batches are already packed row-major, so Flatten only
// verifies the input size and passes it through.
type Flatten struct {
	Height int
	Width  int
	Depth  int
}

// DeserializeFlatten deserializes a Flatten.
func DeserializeFlatten(d []byte) (*Flatten, error) {
	var h, w, depth serializer.Int
	if err := serializer.DeserializeAny(d, &h, &w, &depth); err != nil {
		return nil, essentials.AddCtx("deserialize Flatten", err)
	}
	return &Flatten{Height: int(h), Width: int(w), Depth: int(depth)}, nil
}

// OutCount returns the length of each flattened vector.
func (f *Flatten) OutCount() int {
	return f.Height * f.Width * f.Depth
}

// Apply checks the input size and returns the input.
func (f *Flatten) Apply(in anydiff.Res, n int) anydiff.Res {
	if in.Output().Len() != n*f.OutCount() {
		panic(fmt.Sprintf("flatten: input length should be %d (%d x [%d %d %d]), but got %d",
			n*f.OutCount(), n, f.Height, f.Width, f.Depth, in.Output().Len()))
	}
	return in
}

// SerializerType returns the unique ID used to serialize
// a Flatten with the serializer package.
func (f *Flatten) SerializerType() string {
	return "github.com/unixpickle/drawnet.Flatten"
}

// Serialize serializes the Flatten.
func (f *Flatten) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(f.Height),
		serializer.Int(f.Width),
		serializer.Int(f.Depth),
	)
}
