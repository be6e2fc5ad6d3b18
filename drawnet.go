// Package drawnet provides the neural network pieces
// behind the digit drawing demo.
//
// Networks are built out of batched layers: every Layer
// takes a packed batch of equally-long vectors and
// produces another packed batch.
package drawnet

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var n Net
	serializer.RegisterTypedDeserializer(n.SerializerType(), DeserializeNet)
}

// A Parameterizer is anything with learnable variables.
//
// The parameters of a Parameterizer must be in the same
// order every time Parameters() is called.
type Parameterizer interface {
	Parameters() []*anydiff.Var
}

// A Layer is a composable computation unit for use in a
// neural network.
//
// A Layer's Apply method is inherently batched.
// The input's length must be divisible by the batch size.
type Layer interface {
	Apply(in anydiff.Res, batchSize int) anydiff.Res
}

// A Trainable is a Layer which behaves differently while
// the network is being trained, such as Dropout.
type Trainable interface {
	SetTraining(training bool)
}

// A Net evaluates a list of layers, one after another.
type Net []Layer

// DeserializeNet attempts to deserialize the network.
func DeserializeNet(d []byte) (Net, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Net", err)
	}
	res := make(Net, len(slice))
	for i, x := range slice {
		if layer, ok := x.(Layer); ok {
			res[i] = layer
		} else {
			return nil, fmt.Errorf("deserialize Net: not a Layer: %T", x)
		}
	}
	return res, nil
}

// Clone creates a deep copy of the network by running it
// through the serializer.
// Every layer must implement serializer.Serializer.
func Clone(n Net) (Net, error) {
	data, err := serializer.SerializeAny(n)
	if err != nil {
		return nil, essentials.AddCtx("clone Net", err)
	}
	var res Net
	if err := serializer.DeserializeAny(data, &res); err != nil {
		return nil, essentials.AddCtx("clone Net", err)
	}
	return res, nil
}

// Apply applies the network to a batch.
// If the network contains no layers, the input is
// returned as output.
func (n Net) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	for _, l := range n {
		in = l.Apply(in, batchSize)
	}
	return in
}

// Parameters returns the parameters of the network.
//
// Every layer which implements Parameterizer will have
// its parameters added to the slice.
// Parameters are ordered from the first layer onwards.
func (n Net) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, x := range n {
		if p, ok := x.(Parameterizer); ok {
			res = append(res, p.Parameters()...)
		}
	}
	return res
}

// SetTraining switches every Trainable layer between its
// training and inference behavior.
func (n Net) SetTraining(training bool) {
	for _, x := range n {
		if t, ok := x.(Trainable); ok {
			t.SetTraining(training)
		}
	}
}

// NumParams counts the scalar parameters in the network.
func (n Net) NumParams() int {
	var count int
	for _, p := range n.Parameters() {
		count += p.Vector.Len()
	}
	return count
}

// SerializerType returns the unique ID used to serialize
// a Net with the serializer package.
func (n Net) SerializerType() string {
	return "github.com/unixpickle/drawnet.Net"
}

// Serialize attempts to serialize the network.
// If any Layer is not a serializer.Serializer,
// this fails.
func (n Net) Serialize() ([]byte, error) {
	var slice []serializer.Serializer
	for _, x := range n {
		if s, ok := x.(serializer.Serializer); ok {
			slice = append(slice, s)
		} else {
			return nil, fmt.Errorf("not a Serializer: %T", x)
		}
	}
	return serializer.SerializeSlice(slice)
}
