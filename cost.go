package drawnet

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A Cost provides a way to measure the amount of error
// from the output of a neural network.
//
// Just like regular Layers, a Cost function is batched.
// It takes a packed batch of desired outputs and actual
// outputs, and produces a batch of costs.
type Cost interface {
	Cost(desired, actual anydiff.Res, n int) anydiff.Res
}

// CrossEntropy is the categorical cross-entropy between a
// batch of target distributions and a batch of
// log-probabilities, such as the output of LogSoftmax.
//
// For one-hot targets this is the negative
// log-probability of the correct class.
type CrossEntropy struct{}

// Cost dots each desired distribution with each
// log-probability vector and negates the result.
func (c CrossEntropy) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	comb := anydiff.Mul(desired, actual)
	dots := anydiff.SumCols(&anydiff.Matrix{
		Data: comb,
		Rows: n,
		Cols: comb.Output().Len() / n,
	})
	return anydiff.Scale(dots, dots.Output().Creator().MakeNumeric(-1))
}

// NumCorrect counts the rows of a packed batch whose
// largest output matches the largest desired value.
func NumCorrect(desired, actual anyvec.Vector, n int) int {
	want := Floats(desired)
	got := Floats(actual)
	cols := len(got) / n
	var correct int
	for i := 0; i < n; i++ {
		row := i * cols
		if argmax(want[row:row+cols]) == argmax(got[row:row+cols]) {
			correct++
		}
	}
	return correct
}

// Floats extracts the components of a vector as float64s.
//
// The vector's numeric type must be float32 or float64.
func Floats(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	case []float64:
		return data
	default:
		panic("unsupported numeric type")
	}
}

func argmax(v []float64) int {
	var idx int
	for i, x := range v {
		if x > v[idx] {
			idx = i
		}
	}
	return idx
}
