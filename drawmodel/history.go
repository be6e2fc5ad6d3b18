package drawmodel

import "fmt"

// EpochStats summarizes one training epoch.
//
// Loss and Accuracy are averaged over the epoch's batches,
// with dropout active.
// The validation values are measured in inference mode
// after the epoch, and are only set if HasValidation is
// true.
type EpochStats struct {
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64

	HasValidation bool
}

func (e EpochStats) format(epoch, epochs int) string {
	line := fmt.Sprintf("Epoch %d/%d: loss = %.4f, accuracy = %.4f", epoch, epochs,
		e.Loss, e.Accuracy)
	if e.HasValidation {
		line += fmt.Sprintf(", validation_loss = %.4f, validation_accuracy = %.4f",
			e.ValLoss, e.ValAccuracy)
	}
	return line
}

// History records the result of every epoch in a Train
// call.
type History struct {
	Epochs []EpochStats
}

// Last returns the stats from the final epoch.
func (h *History) Last() EpochStats {
	if len(h.Epochs) == 0 {
		return EpochStats{}
	}
	return h.Epochs[len(h.Epochs)-1]
}

// Metrics are the results of Evaluate.
type Metrics struct {
	Loss     float64
	Accuracy float64
	Count    int
}

// A Prediction is a probability for each digit class.
type Prediction struct {
	Probabilities []float64
}

// Digit returns the most likely class.
func (p *Prediction) Digit() int {
	var idx int
	for i, x := range p.Probabilities {
		if x > p.Probabilities[idx] {
			idx = i
		}
	}
	return idx
}
