package drawsgd

import (
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Shuffle shuffles a list of samples.
// If r is nil, the global source is used.
func Shuffle(s SampleList, r *rand.Rand) {
	intn := rand.Intn
	if r != nil {
		intn = r.Intn
	}
	for i := 0; i < s.Len(); i++ {
		j := i + intn(s.Len()-i)
		s.Swap(i, j)
	}
}

// TailSplit partitions s into a head and a tail, where
// the tail holds the trailing floor(s.Len()*tailFrac)
// samples.
// The order of s is preserved in both halves.
func TailSplit(s SampleList, tailFrac float64) (head, tail SampleList) {
	n := s.Len()
	tailCount := int(float64(n) * tailFrac)
	if tailCount < 0 {
		tailCount = 0
	} else if tailCount > n {
		tailCount = n
	}
	return s.Slice(0, n-tailCount), s.Slice(n-tailCount, n)
}

// CosterGrad computes the gradient of the Coster's total
// cost for the batch, along with the cost itself.
func CosterGrad(c Coster, b Batch, params []*anydiff.Var) (anydiff.Grad, anyvec.Numeric) {
	grad := anydiff.NewGrad(params...)
	cost := c.TotalCost(b)
	if len(grad) == 0 {
		return grad, anyvec.Sum(cost.Output())
	}
	cr := cost.Output().Creator()
	upstream := cr.MakeVectorData(cr.MakeNumericList([]float64{1}))
	cost.Propagate(upstream, grad)
	return grad, anyvec.Sum(cost.Output())
}

// A ConstRater is a Rater which always returns the same
// constant learning rate.
type ConstRater float64

// Rate returns float64(c).
func (c ConstRater) Rate(epoch float64) float64 {
	return float64(c)
}

func copyGrad(g anydiff.Grad) anydiff.Grad {
	res := anydiff.Grad{}
	for v, vec := range g {
		res[v] = vec.Copy()
	}
	return res
}

func scaleGrad(g anydiff.Grad, s float64) {
	for _, vec := range g {
		vec.Scale(vec.Creator().MakeNumeric(s))
	}
}

func valueOrDefault(value, def float64) float64 {
	if value == 0 {
		return def
	}
	return value
}
