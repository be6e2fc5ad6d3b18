package drawnet

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Activation
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeActivation)
}

// An Activation is an element-wise (or, for LogSoftmax,
// row-wise) activation function.
type Activation int

// These are the supported activation functions.
//
// LogSoftmax produces log-probabilities; exponentiating
// its output yields the softmax distribution.
const (
	ReLU Activation = iota
	LogSoftmax
)

// DeserializeActivation deserializes an Activation.
func DeserializeActivation(d []byte) (Activation, error) {
	if len(d) != 1 {
		return 0, fmt.Errorf("deserialize Activation: data length (%d) should be 1", len(d))
	}
	a := Activation(d[0])
	if a > LogSoftmax {
		return 0, fmt.Errorf("deserialize Activation: unknown activation ID: %d", a)
	}
	return a, nil
}

// Apply applies the activation function.
func (a Activation) Apply(in anydiff.Res, n int) anydiff.Res {
	switch a {
	case ReLU:
		return anydiff.ClipPos(in)
	case LogSoftmax:
		inLen := in.Output().Len()
		if inLen%n != 0 {
			panic("batch size must divide input length")
		}
		return anydiff.LogSoftmax(in, inLen/n)
	default:
		panic(fmt.Sprintf("unknown activation: %d", a))
	}
}

// String returns the activation's name.
func (a Activation) String() string {
	switch a {
	case ReLU:
		return "relu"
	case LogSoftmax:
		return "softmax"
	default:
		return fmt.Sprintf("Activation(%d)", int(a))
	}
}

// SerializerType returns the unique ID used to serialize
// an Activation.
func (a Activation) SerializerType() string {
	return "github.com/unixpickle/drawnet.Activation"
}

// Serialize serializes the activation.
func (a Activation) Serialize() ([]byte, error) {
	return []byte{byte(a)}, nil
}
