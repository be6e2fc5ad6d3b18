package drawmodel

import (
	"bytes"
	"errors"
	"log"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/drawnet/drawdata"
	"github.com/unixpickle/drawnet/drawstatus"
)

func TestNewErrors(t *testing.T) {
	_, err := New(nil, 0)
	var buildErr *ModelBuildError
	if !errors.As(err, &buildErr) {
		t.Errorf("expected *ModelBuildError but got %v", err)
	}
}

func TestSummary(t *testing.T) {
	c, err := New(anyvec32.CurrentCreator(), 1)
	if err != nil {
		t.Fatal(err)
	}
	summary := c.Summary()
	for _, part := range []string{"flatten", "dense", "relu", "dropout(0.3)", "softmax",
		"100480", "8256", "650", "Total params: 109386"} {
		if !strings.Contains(summary, part) {
			t.Errorf("summary missing %q:\n%s", part, summary)
		}
	}
}

func TestPredictShapes(t *testing.T) {
	c, err := New(anyvec32.CurrentCreator(), 1)
	if err != nil {
		t.Fatal(err)
	}
	data := randomImages(rand.New(rand.NewSource(2)), 1)
	p1, err := c.Predict(drawdata.Tensor{Shape: []int{28, 28, 1}, Data: data})
	if err != nil {
		t.Fatal(err)
	}
	p2, err := c.Predict(drawdata.Tensor{Shape: []int{1, 28, 28, 1}, Data: data})
	if err != nil {
		t.Fatal(err)
	}
	if len(p1.Probabilities) != 10 {
		t.Fatalf("expected 10 probabilities but got %d", len(p1.Probabilities))
	}
	var sum float64
	for i, x := range p1.Probabilities {
		if x < 0 || x > 1 {
			t.Errorf("probability %d out of range: %f", i, x)
		}
		if math.Abs(x-p2.Probabilities[i]) > 1e-6 {
			t.Errorf("class %d: batched and unbatched results differ", i)
		}
		sum += x
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Errorf("probabilities sum to %f", sum)
	}
	if p1.Digit() != p2.Digit() {
		t.Error("digits differ")
	}

	// Inference is deterministic.
	p3, _ := c.Predict(drawdata.Tensor{Shape: []int{28, 28, 1}, Data: data})
	for i, x := range p3.Probabilities {
		if x != p1.Probabilities[i] {
			t.Fatal("repeated prediction changed")
		}
	}
}

func TestPredictErrors(t *testing.T) {
	c, err := New(anyvec32.CurrentCreator(), 1)
	if err != nil {
		t.Fatal(err)
	}
	inputs := []drawdata.Tensor{
		{Shape: []int{28, 28}, Data: make([]float32, 784)},
		{Shape: []int{2, 28, 28, 1}, Data: make([]float32, 784*2)},
		{Shape: []int{784}, Data: make([]float32, 784)},
		{Shape: []int{28, 28, 1}, Data: make([]float32, 100)},
	}
	for i, input := range inputs {
		_, err := c.Predict(input)
		var infErr *InferenceError
		if !errors.As(err, &infErr) {
			t.Errorf("input %d: expected *InferenceError but got %v", i, err)
		}
	}
}

func TestTrainReports(t *testing.T) {
	c, err := New(anyvec32.CurrentCreator(), 1)
	if err != nil {
		t.Fatal(err)
	}
	var logBuf bytes.Buffer
	c.Logger = log.New(&logBuf, "", 0)

	images, labels := blackExamples(2)
	var rec drawstatus.Recorder
	hist, err := c.Train(images, labels, 2, 1, &rec)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist.Epochs) != 2 {
		t.Fatalf("expected 2 epochs but got %d", len(hist.Epochs))
	}
	for _, stats := range hist.Epochs {
		if stats.HasValidation {
			t.Error("two examples should leave no validation set")
		}
	}

	updates := rec.Updates()
	var batchReports int
	for _, u := range updates {
		if strings.HasPrefix(u.Message, "Training... Batch ") {
			batchReports++
		}
	}
	if batchReports != 4 {
		t.Errorf("expected 4 batch reports but got %d", batchReports)
	}
	if updates[0].Message != "Starting model training..." || updates[0].Progress != 0 {
		t.Errorf("unexpected first update: %v", updates[0])
	}
	if updates[4].Message != "Training... Batch 4 of 4" || updates[4].Progress != 100 {
		t.Errorf("unexpected last batch update: %v", updates[4])
	}
	last := updates[len(updates)-1]
	if last.Message != "Training complete!" || last.Progress != 100 {
		t.Errorf("unexpected last update: %v", last)
	}

	logLines := strings.Split(strings.TrimSpace(logBuf.String()), "\n")
	if len(logLines) != 2 {
		t.Fatalf("expected 2 log lines but got %d", len(logLines))
	}
	if !strings.HasPrefix(logLines[1], "Epoch 2/2: loss = ") ||
		strings.Contains(logLines[1], "validation_loss") {
		t.Errorf("unexpected log line: %s", logLines[1])
	}
}

func TestTrainValidation(t *testing.T) {
	c, err := New(anyvec32.CurrentCreator(), 1)
	if err != nil {
		t.Fatal(err)
	}
	c.Logger = log.New(&bytes.Buffer{}, "", 0)
	images, labels := separableExamples(rand.New(rand.NewSource(3)), 40)

	var rec drawstatus.Recorder
	hist, err := c.Train(images, labels, 1, 16, &rec)
	if err != nil {
		t.Fatal(err)
	}
	if !hist.Last().HasValidation {
		t.Error("expected validation stats")
	}

	// 36 fitted examples in batches of 16.
	var batchReports int
	for _, u := range rec.Updates() {
		if strings.HasSuffix(u.Message, " of 3") {
			batchReports++
		}
	}
	if batchReports != 3 {
		t.Errorf("expected 3 batch reports but got %d", batchReports)
	}
}

func TestTrainLearns(t *testing.T) {
	c, err := New(anyvec64.DefaultCreator{}, 5)
	if err != nil {
		t.Fatal(err)
	}
	c.Logger = log.New(&bytes.Buffer{}, "", 0)
	rng := rand.New(rand.NewSource(6))
	images, labels := separableExamples(rng, 100)

	before, err := c.Evaluate(images, labels)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Train(images, labels, 15, 10, nil); err != nil {
		t.Fatal(err)
	}
	after, err := c.Evaluate(images, labels)
	if err != nil {
		t.Fatal(err)
	}
	if after.Count != 100 {
		t.Errorf("expected 100 evaluated examples but got %d", after.Count)
	}
	if after.Loss >= before.Loss {
		t.Errorf("loss did not decrease: %f -> %f", before.Loss, after.Loss)
	}
	if after.Accuracy < 0.9 {
		t.Errorf("accuracy too low: %f", after.Accuracy)
	}
}

func TestTrainErrors(t *testing.T) {
	c, err := New(anyvec32.CurrentCreator(), 1)
	if err != nil {
		t.Fatal(err)
	}
	images, labels := blackExamples(2)
	badLabels := drawdata.Tensor{Shape: []int{3, 10}, Data: make([]float32, 30)}
	cases := []struct {
		images, labels    drawdata.Tensor
		epochs, batchSize int
	}{
		{images, labels, 0, 1},
		{images, labels, 1, 0},
		{images, badLabels, 1, 1},
		{drawdata.Tensor{Shape: []int{2, 784}, Data: images.Data}, labels, 1, 1},
	}
	for i, tc := range cases {
		var rec drawstatus.Recorder
		_, err := c.Train(tc.images, tc.labels, tc.epochs, tc.batchSize, &rec)
		var trainErr *TrainingError
		if !errors.As(err, &trainErr) {
			t.Errorf("case %d: expected *TrainingError but got %v", i, err)
			continue
		}
		last, _ := rec.Last()
		if last.Message != "Error during training: "+trainErr.Err.Error() || last.HasProgress() {
			t.Errorf("case %d: unexpected status %v", i, last)
		}
	}
}

func TestPredictDuringTraining(t *testing.T) {
	c, err := New(anyvec32.CurrentCreator(), 1)
	if err != nil {
		t.Fatal(err)
	}
	c.Logger = log.New(&bytes.Buffer{}, "", 0)
	rng := rand.New(rand.NewSource(4))
	images, labels := separableExamples(rng, 20)
	input := drawdata.Tensor{Shape: []int{28, 28, 1}, Data: images.Data[:784]}

	initial, err := c.Predict(input)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			if _, err := c.Predict(input); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	if _, err := c.Train(images, labels, 3, 5, nil); err != nil {
		t.Fatal(err)
	}
	wg.Wait()

	final, err := c.Predict(input)
	if err != nil {
		t.Fatal(err)
	}
	var changed bool
	for i, x := range final.Probabilities {
		if x != initial.Probabilities[i] {
			changed = true
		}
	}
	if !changed {
		t.Error("training did not update the inference snapshot")
	}
}

func blackExamples(n int) (images, labels drawdata.Tensor) {
	images = drawdata.Tensor{Shape: []int{n, 28, 28, 1}, Data: make([]float32, n*784)}
	labels = drawdata.Tensor{Shape: []int{n, 10}, Data: make([]float32, n*10)}
	for i := 0; i < n; i++ {
		labels.Data[i*10+i%10] = 1
	}
	return
}

// separableExamples creates images whose class is
// determined by which quarter of the image is bright.
func separableExamples(rng *rand.Rand, n int) (images, labels drawdata.Tensor) {
	images = drawdata.Tensor{Shape: []int{n, 28, 28, 1}, Data: randomImages(rng, n)}
	labels = drawdata.Tensor{Shape: []int{n, 10}, Data: make([]float32, n*10)}
	for i := 0; i < n; i++ {
		class := i % 4
		img := images.Data[i*784 : (i+1)*784]
		for j := range img {
			img[j] *= 0.2
		}
		for j := class * 196; j < (class+1)*196; j++ {
			img[j] = 1
		}
		labels.Data[i*10+class] = 1
	}
	return
}

func randomImages(rng *rand.Rand, n int) []float32 {
	res := make([]float32, n*784)
	for i := range res {
		res[i] = float32(rng.Float64())
	}
	return res
}
