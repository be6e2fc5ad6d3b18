package drawff

import (
	"errors"
	"runtime"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/drawnet"
	"github.com/unixpickle/drawnet/drawsgd"
	"github.com/unixpickle/essentials"
)

// A Batch stores an input and output batch in a packed
// format.
type Batch struct {
	Inputs  *anydiff.Const
	Outputs *anydiff.Const
	Num     int
}

// A Trainer can construct batches, compute gradients, and
// tally up costs for feed-forward neural networks.
type Trainer struct {
	Net    drawnet.Layer
	Cost   drawnet.Cost
	Params []*anydiff.Var

	// Average indicates whether or not the total cost should
	// be averaged before computing gradients.
	// This affects gradients, LastCost, and the output of
	// TotalCost().
	Average bool

	// After every gradient computation, LastCost is set to
	// the cost from the batch.
	LastCost float64

	// After every gradient computation, LastCorrect is set
	// to the number of samples in the batch whose largest
	// output matched the largest target value.
	LastCorrect int

	// MaxGos specifies the maximum goroutines to use
	// simultaneously for fetching samples.
	// If it is 0, GOMAXPROCS is used.
	MaxGos int

	lastOutput anyvec.Vector
}

// Fetch produces a *Batch for the subset of samples.
// The s argument must implement SampleList.
// The batch may not be empty.
func (t *Trainer) Fetch(s drawsgd.SampleList) (drawsgd.Batch, error) {
	if s.Len() == 0 {
		return nil, errors.New("fetch batch: empty batch")
	}

	l := s.(SampleList)
	ins := make([]anyvec.Vector, l.Len())
	outs := make([]anyvec.Vector, l.Len())

	idxChan := make(chan int, l.Len())
	for i := 0; i < l.Len(); i++ {
		idxChan <- i
	}
	close(idxChan)

	maxGos := t.MaxGos
	if maxGos == 0 {
		maxGos = runtime.GOMAXPROCS(0)
	}

	wg := sync.WaitGroup{}
	errChan := make(chan error, maxGos)
	for i := 0; i < maxGos; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxChan {
				sample, err := l.GetSample(i)
				if err != nil {
					errChan <- essentials.AddCtx("fetch batch", err)
					return
				}
				ins[i] = sample.Input
				outs[i] = sample.Output
			}
		}()
	}

	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return nil, err
	}

	joinedIns := ins[0].Creator().Concat(ins...)
	joinedOuts := outs[0].Creator().Concat(outs...)

	return &Batch{
		Inputs:  anydiff.NewConst(joinedIns),
		Outputs: anydiff.NewConst(joinedOuts),
		Num:     l.Len(),
	}, nil
}

// TotalCost computes the total cost for the *Batch.
func (t *Trainer) TotalCost(batch drawsgd.Batch) anydiff.Res {
	b := batch.(*Batch)
	outRes := t.Net.Apply(b.Inputs, b.Num)
	t.lastOutput = outRes.Output()
	cost := t.Cost.Cost(b.Outputs, outRes, b.Num)
	total := anydiff.Sum(cost)
	if t.Average {
		divisor := 1 / float64(cost.Output().Len())
		return anydiff.Scale(total, total.Output().Creator().MakeNumeric(divisor))
	}
	return total
}

// Gradient computes the gradient for the batch's cost.
// It also sets t.LastCost and t.LastCorrect.
//
// The b argument must be a *Batch.
func (t *Trainer) Gradient(b drawsgd.Batch) anydiff.Grad {
	grad, lc := drawsgd.CosterGrad(t, b, t.Params)
	t.LastCost = numericFloat(lc)
	batch := b.(*Batch)
	t.LastCorrect = drawnet.NumCorrect(batch.Outputs.Output(), t.lastOutput, batch.Num)
	return grad
}

// Evaluate computes the mean per-sample cost and the
// fraction of correctly classified samples over the list,
// processing at most batchSize samples at a time.
//
// It does not compute gradients.
func (t *Trainer) Evaluate(s SampleList, batchSize int) (cost, accuracy float64, err error) {
	if s.Len() == 0 {
		return 0, 0, errors.New("evaluate: empty sample list")
	}
	if batchSize <= 0 {
		batchSize = s.Len()
	}
	var totalCost float64
	var correct int
	for i := 0; i < s.Len(); i += batchSize {
		end := i + batchSize
		if end > s.Len() {
			end = s.Len()
		}
		batch, err := t.Fetch(s.Slice(i, end))
		if err != nil {
			return 0, 0, essentials.AddCtx("evaluate", err)
		}
		b := batch.(*Batch)
		outRes := t.Net.Apply(b.Inputs, b.Num)
		costs := t.Cost.Cost(b.Outputs, outRes, b.Num)
		totalCost += floatSum(costs.Output())
		correct += drawnet.NumCorrect(b.Outputs.Output(), outRes.Output(), b.Num)
	}
	n := float64(s.Len())
	return totalCost / n, float64(correct) / n, nil
}

func numericFloat(n anyvec.Numeric) float64 {
	switch n := n.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		panic("unsupported numeric type")
	}
}

func floatSum(v anyvec.Vector) float64 {
	var sum float64
	for _, x := range drawnet.Floats(v) {
		sum += x
	}
	return sum
}
