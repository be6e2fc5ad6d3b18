package drawsgd

import (
	"math"
	"math/rand"
	"testing"

	"github.com/unixpickle/anyvec/anyvec32"
)

func TestAdam(t *testing.T) {
	g := newTestGradienter(anyvec32.DefaultCreator{})
	s := &SGD{
		Gradienter:  g,
		Transformer: &Adam{},
		Samples:     newTestSampleList(),
		Rater:       ConstRater(0.001),
		Rand:        rand.New(rand.NewSource(42)),
		BatchSize:   3,
		Epochs:      20000,
	}

	if err := s.Run(); err != nil {
		t.Fatal(err)
	}

	x, y := g.current()
	if math.Abs(x-4.0/3) > 1e-2 || math.Abs(y+2) > 1e-2 {
		t.Errorf("bad solution: %f, %f", x, y)
	}
}
