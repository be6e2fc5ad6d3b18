// Package drawmodel owns the digit classifier: it builds
// the network, trains it on packed tensors, and answers
// predictions from a snapshot that training never
// touches.
package drawmodel

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/drawnet"
	"github.com/unixpickle/drawnet/drawdata"
	"github.com/unixpickle/drawnet/drawff"
	"github.com/unixpickle/drawnet/drawsgd"
	"github.com/unixpickle/drawnet/drawstatus"
	"github.com/unixpickle/essentials"
)

// Training hyper-parameters.
const (
	LearningRate    = 0.001
	DropoutRate     = 0.3
	ValidationSplit = 0.1
)

const evalBatchSize = 1024

// A Controller owns a classifier network.
//
// Train calls are serialized.
// Predict and Evaluate may be called at any time, from
// any goroutine; while training is running they see the
// weights from the last completed epoch.
type Controller struct {
	// Logger receives per-epoch log lines.
	// If nil, the standard logger is used.
	Logger *log.Logger

	// MaxGos limits the goroutines used to assemble each
	// batch.
	// If it is 0, GOMAXPROCS is used.
	MaxGos int

	creator anyvec.Creator

	trainLock sync.Mutex
	net       drawnet.Net
	adam      *drawsgd.Adam
	rand      *rand.Rand

	snapshotLock    sync.RWMutex
	snapshot        drawnet.Net
	snapshotCreator anyvec.Creator
}

// New creates a Controller with a freshly initialized
// network.
//
// The creator's numeric type must be float32 or float64.
func New(c anyvec.Creator, seed int64) (*Controller, error) {
	if c == nil {
		return nil, &ModelBuildError{Err: errors.New("nil creator")}
	}
	switch num := c.MakeNumeric(0).(type) {
	case float32, float64:
	default:
		return nil, &ModelBuildError{Err: fmt.Errorf("unsupported numeric type: %T", num)}
	}
	r := rand.New(rand.NewSource(seed))
	net := drawnet.Net{
		&drawnet.Flatten{Height: drawdata.ImageHeight, Width: drawdata.ImageWidth, Depth: 1},
		drawnet.NewFC(c, drawdata.ImageSize, 128, r),
		drawnet.ReLU,
		drawnet.NewDropout(DropoutRate, r),
		drawnet.NewFC(c, 128, 64, r),
		drawnet.ReLU,
		drawnet.NewDropout(DropoutRate, r),
		drawnet.NewFC(c, 64, drawdata.NumClasses, r),
		drawnet.LogSoftmax,
	}
	res := &Controller{
		creator: c,
		net:     net,
		adam:    &drawsgd.Adam{},
		rand:    r,
	}
	if err := res.publish(); err != nil {
		return nil, &ModelBuildError{Err: err}
	}
	return res, nil
}

// Summary describes each layer with its output size and
// parameter count.
func (c *Controller) Summary() string {
	net, _ := c.inference()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%-16s%-12s%s\n", "Layer", "Output", "Params")
	var width int
	for _, layer := range net {
		name := fmt.Sprintf("%T", layer)
		var params int
		switch layer := layer.(type) {
		case *drawnet.Flatten:
			name = "flatten"
			width = layer.OutCount()
		case *drawnet.FC:
			name = "dense"
			width = layer.OutCount
			params = layer.Weights.Vector.Len() + layer.Biases.Vector.Len()
		case *drawnet.Dropout:
			name = fmt.Sprintf("dropout(%g)", layer.Rate)
		case drawnet.Activation:
			name = layer.String()
		}
		fmt.Fprintf(&buf, "%-16s%-12s%d\n", name, fmt.Sprintf("[%d]", width), params)
	}
	fmt.Fprintf(&buf, "Total params: %d", net.NumParams())
	return buf.String()
}

// Train fits the network to a labelled set.
//
// Images must have shape [n, 28, 28, 1] and labels must
// have shape [n, 10].
// The trailing floor(n*ValidationSplit) examples are held
// out for validation.
// The remaining examples are shuffled before each epoch
// and processed in batches of batchSize.
//
// On failure, an error status is reported and a
// *TrainingError is returned.
func (c *Controller) Train(images, labels drawdata.Tensor, epochs, batchSize int,
	r drawstatus.Reporter) (hist *History, err error) {
	r = drawstatus.OrDiscard(r)

	c.trainLock.Lock()
	defer c.trainLock.Unlock()
	defer c.net.SetTraining(false)

	defer func() {
		if p := recover(); p != nil {
			hist = nil
			err = &TrainingError{Err: fmt.Errorf("panic: %v", p)}
		}
		if err != nil {
			cause := err
			if te, ok := err.(*TrainingError); ok {
				cause = te.Err
			}
			r.Report("Error during training: "+cause.Error(), drawstatus.NoProgress)
		}
	}()

	if err := checkTrainArgs(images, labels, epochs, batchSize); err != nil {
		return nil, &TrainingError{Err: err}
	}

	r.Report("Starting model training...", 0)

	samples, err := drawff.NewPackedSampleList(c.creator, images.Data, labels.Data,
		drawdata.ImageSize, drawdata.NumClasses)
	if err != nil {
		return nil, &TrainingError{Err: err}
	}
	fit, val := drawsgd.TailSplit(samples, ValidationSplit)
	if fit.Len() == 0 {
		return nil, &TrainingError{Err: errors.New("no examples left after validation split")}
	}

	trainer := &drawff.Trainer{
		Net:     c.net,
		Cost:    drawnet.CrossEntropy{},
		Params:  c.net.Parameters(),
		Average: true,
		MaxGos:  c.MaxGos,
	}

	hist = &History{}
	var batchIdx, totalBatches int
	var costSum float64
	var numCorrect, numSeen int

	sgd := &drawsgd.SGD{
		Fetcher:     trainer,
		Gradienter:  trainer,
		Transformer: c.adam,
		Samples:     fit,
		Rater:       drawsgd.ConstRater(LearningRate),
		Rand:        c.rand,
		BatchSize:   batchSize,
		Epochs:      epochs,
		BatchFunc: func(b drawsgd.Batch) {
			n := b.(*drawff.Batch).Num
			costSum += trainer.LastCost * float64(n)
			numCorrect += trainer.LastCorrect
			numSeen += n
			batchIdx++
			r.Report(fmt.Sprintf("Training... Batch %d of %d", batchIdx, totalBatches),
				float64(batchIdx)/float64(totalBatches)*100)
		},
		EpochFunc: func(epoch int) error {
			stats := EpochStats{
				Loss:     costSum / float64(numSeen),
				Accuracy: float64(numCorrect) / float64(numSeen),
			}
			costSum, numCorrect, numSeen = 0, 0, 0
			if math.IsNaN(stats.Loss) || math.IsInf(stats.Loss, 0) {
				return fmt.Errorf("epoch %d: non-finite loss", epoch+1)
			}

			c.net.SetTraining(false)
			defer c.net.SetTraining(true)

			if val.Len() > 0 {
				evaluator := &drawff.Trainer{
					Net:    c.net,
					Cost:   drawnet.CrossEntropy{},
					MaxGos: c.MaxGos,
				}
				valLoss, valAcc, err := evaluator.Evaluate(val.(drawff.SampleList), evalBatchSize)
				if err != nil {
					return essentials.AddCtx("validate", err)
				}
				stats.ValLoss = valLoss
				stats.ValAccuracy = valAcc
				stats.HasValidation = true
			}
			hist.Epochs = append(hist.Epochs, stats)
			c.logf("%s", stats.format(epoch+1, epochs))
			return c.publish()
		},
	}
	totalBatches = epochs * sgd.BatchesPerEpoch()

	c.net.SetTraining(true)
	if err := sgd.Run(); err != nil {
		return nil, &TrainingError{Err: err}
	}

	r.Report("Training complete!", 100)
	return hist, nil
}

// Predict computes class probabilities for one image.
//
// The input must have shape [28, 28, 1] or [1, 28, 28, 1].
// On failure, an *InferenceError is returned.
func (c *Controller) Predict(input drawdata.Tensor) (pred *Prediction, err error) {
	defer func() {
		if p := recover(); p != nil {
			pred = nil
			err = &InferenceError{Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if err := checkPredictShape(input); err != nil {
		return nil, &InferenceError{Err: err}
	}
	net, creator := c.inference()
	in := anydiff.NewConst(makeVector(creator, input.Data))
	out := net.Apply(in, 1).Output()
	logProbs := drawnet.Floats(out)
	probs := make([]float64, len(logProbs))
	for i, x := range logProbs {
		probs[i] = math.Exp(x)
	}
	return &Prediction{Probabilities: probs}, nil
}

// Evaluate measures the mean loss and the accuracy of the
// current snapshot on a labelled set.
func (c *Controller) Evaluate(images, labels drawdata.Tensor) (*Metrics, error) {
	if err := checkLabelled(images, labels); err != nil {
		return nil, &InferenceError{Err: essentials.AddCtx("evaluate", err)}
	}
	net, creator := c.inference()
	samples, err := drawff.NewPackedSampleList(creator, images.Data, labels.Data,
		drawdata.ImageSize, drawdata.NumClasses)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	evaluator := &drawff.Trainer{
		Net:    net,
		Cost:   drawnet.CrossEntropy{},
		MaxGos: c.MaxGos,
	}
	loss, acc, err := evaluator.Evaluate(samples, evalBatchSize)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	return &Metrics{Loss: loss, Accuracy: acc, Count: samples.Len()}, nil
}

// publish replaces the inference snapshot with a copy of
// the network in inference mode.
// The caller must not be mutating the network.
func (c *Controller) publish() error {
	c.net.SetTraining(false)
	snapshot, err := drawnet.Clone(c.net)
	if err != nil {
		return err
	}
	creator := c.creator
	if params := snapshot.Parameters(); len(params) > 0 {
		creator = params[0].Vector.Creator()
	}
	c.snapshotLock.Lock()
	c.snapshot = snapshot
	c.snapshotCreator = creator
	c.snapshotLock.Unlock()
	return nil
}

// inference returns the current snapshot along with the
// creator its parameters were restored with.
func (c *Controller) inference() (drawnet.Net, anyvec.Creator) {
	c.snapshotLock.RLock()
	defer c.snapshotLock.RUnlock()
	return c.snapshot, c.snapshotCreator
}

func makeVector(c anyvec.Creator, data []float32) anyvec.Vector {
	list := make([]float64, len(data))
	for i, x := range data {
		list[i] = float64(x)
	}
	return c.MakeVectorData(c.MakeNumericList(list))
}

func (c *Controller) logf(format string, args ...interface{}) {
	if c.Logger == nil {
		log.Printf(format, args...)
	} else {
		c.Logger.Printf(format, args...)
	}
}

func checkTrainArgs(images, labels drawdata.Tensor, epochs, batchSize int) error {
	if epochs <= 0 {
		return fmt.Errorf("epochs must be positive (got %d)", epochs)
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive (got %d)", batchSize)
	}
	return checkLabelled(images, labels)
}

func checkLabelled(images, labels drawdata.Tensor) error {
	if !shapeIs(images.Shape, -1, drawdata.ImageHeight, drawdata.ImageWidth, 1) {
		return fmt.Errorf("bad image shape: %v", images.Shape)
	}
	if !shapeIs(labels.Shape, -1, drawdata.NumClasses) {
		return fmt.Errorf("bad label shape: %v", labels.Shape)
	}
	if images.Count() != labels.Count() {
		return fmt.Errorf("%d images but %d labels", images.Count(), labels.Count())
	}
	if images.Count() == 0 {
		return errors.New("no examples")
	}
	if len(images.Data) != images.NumElements() || len(labels.Data) != labels.NumElements() {
		return errors.New("data length does not match shape")
	}
	return nil
}

func checkPredictShape(input drawdata.Tensor) error {
	if !shapeIs(input.Shape, drawdata.ImageHeight, drawdata.ImageWidth, 1) &&
		!shapeIs(input.Shape, 1, drawdata.ImageHeight, drawdata.ImageWidth, 1) {
		return fmt.Errorf("bad input shape: %v", input.Shape)
	}
	if len(input.Data) != drawdata.ImageSize {
		return fmt.Errorf("input has %d values but shape needs %d", len(input.Data),
			drawdata.ImageSize)
	}
	return nil
}

// shapeIs checks a shape against a pattern, where -1
// matches any non-negative dimension.
func shapeIs(shape []int, pattern ...int) bool {
	if len(shape) != len(pattern) {
		return false
	}
	for i, x := range pattern {
		if shape[i] < 0 || (x != -1 && shape[i] != x) {
			return false
		}
	}
	return true
}
