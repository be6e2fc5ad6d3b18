package drawnet

import (
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var d Dropout
	serializer.RegisterTypedDeserializer(d.SerializerType(), DeserializeDropout)
}

// A Dropout layer applies inverted dropout.
//
// While training, each input is zeroed with probability
// Rate and the survivors are scaled by 1/(1-Rate), so the
// expected output equals the input.
// Outside of training, the layer is the identity.
type Dropout struct {
	Rate     float64
	Training bool

	// Rand is the source for dropout masks.
	// If nil, the global source is used.
	// It is not serialized.
	Rand *rand.Rand
}

// NewDropout creates a Dropout layer in inference mode.
func NewDropout(rate float64, r *rand.Rand) *Dropout {
	return &Dropout{Rate: rate, Rand: r}
}

// DeserializeDropout deserializes a Dropout.
func DeserializeDropout(d []byte) (*Dropout, error) {
	var training serializer.Int
	var rate serializer.Float64
	if err := serializer.DeserializeAny(d, &training, &rate); err != nil {
		return nil, essentials.AddCtx("deserialize Dropout", err)
	}
	return &Dropout{
		Rate:     float64(rate),
		Training: training == 1,
	}, nil
}

// Apply applies the layer.
func (d *Dropout) Apply(in anydiff.Res, n int) anydiff.Res {
	if !d.Training || d.Rate == 0 {
		return in
	}
	c := in.Output().Creator()
	keep := 1 - d.Rate
	mask := c.MakeVector(in.Output().Len())
	anyvec.Rand(mask, anyvec.Uniform, d.Rand)
	anyvec.LessThan(mask, c.MakeNumeric(keep))
	mask.Scale(c.MakeNumeric(1 / keep))
	return anydiff.Mul(in, anydiff.NewConst(mask))
}

// SetTraining toggles between training and inference.
func (d *Dropout) SetTraining(training bool) {
	d.Training = training
}

// SerializerType returns the unique ID used to serialize
// a Dropout with the serializer package.
func (d *Dropout) SerializerType() string {
	return "github.com/unixpickle/drawnet.Dropout"
}

// Serialize serializes the Dropout.
func (d *Dropout) Serialize() ([]byte, error) {
	trainingFlag := serializer.Int(0)
	if d.Training {
		trainingFlag = 1
	}
	return serializer.SerializeAny(trainingFlag, serializer.Float64(d.Rate))
}
