package drawsgd

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

const (
	adamDefaultDecayRate1 = 0.9
	adamDefaultDecayRate2 = 0.999
	adamDefaultDamping    = 1e-8
)

// Adam implements the adaptive moments SGD technique
// described in https://arxiv.org/pdf/1412.6980.pdf.
//
// This is not thread-safe.
type Adam struct {
	// These are decay rates for the first and second
	// moments of the gradient.
	// If these are 0, defaults as suggested in the
	// original Adam paper are used.
	DecayRate1, DecayRate2 float64

	// Damping is used to prevent divisions by zero.
	// If it is 0, a default is used.
	Damping float64

	firstMoment  anydiff.Grad
	secondMoment anydiff.Grad
	iteration    float64
}

// Transform replaces the gradient with the bias-corrected
// ratio of the first moment to the root of the second.
func (a *Adam) Transform(realGrad anydiff.Grad) anydiff.Grad {
	a.updateMoments(realGrad)

	a.iteration++
	scalingFactor := math.Sqrt(1-math.Pow(a.decayRate(2), a.iteration)) /
		(1 - math.Pow(a.decayRate(1), a.iteration))
	damping := valueOrDefault(a.Damping, adamDefaultDamping)
	for variable, vec := range realGrad {
		vec.Set(a.firstMoment[variable])
		vec.Scale(vec.Creator().MakeNumeric(scalingFactor))

		divisor := a.secondMoment[variable].Copy()
		anyvec.Pow(divisor, divisor.Creator().MakeNumeric(0.5))
		divisor.AddScalar(divisor.Creator().MakeNumeric(damping))
		vec.Div(divisor)
	}

	return realGrad
}

func (a *Adam) updateMoments(grad anydiff.Grad) {
	rate1 := a.decayRate(1)
	if a.firstMoment == nil {
		a.firstMoment = copyGrad(grad)
		scaleGrad(a.firstMoment, 1-rate1)
	} else {
		scaleGrad(a.firstMoment, rate1)
		for variable, vec := range grad {
			v := vec.Copy()
			v.Scale(vec.Creator().MakeNumeric(1 - rate1))
			a.firstMoment[variable].Add(v)
		}
	}

	rate2 := a.decayRate(2)
	if a.secondMoment == nil {
		a.secondMoment = copyGrad(grad)
		for _, v := range a.secondMoment {
			anyvec.Pow(v, v.Creator().MakeNumeric(2))
		}
		scaleGrad(a.secondMoment, 1-rate2)
	} else {
		scaleGrad(a.secondMoment, rate2)
		for variable, vec := range grad {
			v := vec.Copy()
			anyvec.Pow(v, v.Creator().MakeNumeric(2))
			v.Scale(v.Creator().MakeNumeric(1 - rate2))
			a.secondMoment[variable].Add(v)
		}
	}
}

func (a *Adam) decayRate(moment int) float64 {
	switch moment {
	case 1:
		return valueOrDefault(a.DecayRate1, adamDefaultDecayRate1)
	case 2:
		return valueOrDefault(a.DecayRate2, adamDefaultDecayRate2)
	default:
		panic("invalid moment")
	}
}
