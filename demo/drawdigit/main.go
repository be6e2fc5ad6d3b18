// Command drawdigit trains a digit classifier and serves a
// page where digits can be drawn and classified.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/drawnet/drawdata"
	"github.com/unixpickle/drawnet/drawmodel"
	"github.com/unixpickle/drawnet/drawstatus"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/mnist"
)

func main() {
	cfg := DefaultConfig()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		essentials.Die(err)
	}

	log.Printf("CPU: %s (%d physical cores, %d threads, AVX2=%v)", cpuid.CPU.BrandName,
		cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, cpuid.CPU.Supports(cpuid.AVX2))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := NewHub()
	server := &Server{Hub: hub}
	httpServer := &http.Server{Addr: cfg.Addr, Handler: server.Handler()}
	go func() {
		log.Printf("Serving on http://%s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			essentials.Die(err)
		}
	}()

	go runPipeline(ctx, &cfg, server)

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Println("Shutdown:", err)
	}
}

// runPipeline loads the data, trains the model and then
// enables predictions.
// On failure the server keeps running, so status clients
// still see the failure message and predictions stay
// unavailable.
func runPipeline(ctx context.Context, cfg *Config, server *Server) {
	status := drawstatus.Multi{drawstatus.Log, server.Hub}
	model, err := trainModel(ctx, cfg, status)
	if err != nil {
		log.Println("Model unavailable:", err)
		return
	}
	server.SetModel(model)
	log.Println("Ready for predictions.")
}

func trainModel(ctx context.Context, cfg *Config,
	status drawstatus.Reporter) (*drawmodel.Controller, error) {
	loader := drawdata.DefaultLoader(status)
	loader.ImageURL = cfg.ImageURL
	loader.LabelsURL = cfg.LabelsURL
	loader.NumExamples = cfg.NumExamples
	var store drawdata.Store
	if err := store.Load(ctx, loader, cfg.NumTrain, cfg.NumTest); err != nil {
		return nil, err
	}
	images, labels, err := store.TrainData()
	if err != nil {
		return nil, err
	}
	testImages, testLabels, err := store.TestData(cfg.EvalLimit)
	if err != nil {
		return nil, err
	}
	log.Printf("Dataset prepared: trainImages=%d trainLabels=%d testImages=%d testLabels=%d",
		len(images.Data), len(labels.Data), len(testImages.Data), len(testLabels.Data))

	model, err := drawmodel.New(anyvec32.CurrentCreator(), cfg.Seed)
	if err != nil {
		return nil, err
	}
	model.MaxGos = cfg.Workers
	log.Printf("Model summary:\n%s", model.Summary())

	if _, err := model.Train(images, labels, cfg.Epochs, cfg.BatchSize, status); err != nil {
		return nil, err
	}

	if testImages.Count() > 0 {
		metrics, err := model.Evaluate(testImages, testLabels)
		if err != nil {
			return nil, err
		}
		log.Printf("Test set: loss = %.4f, accuracy = %.4f (%d examples)",
			metrics.Loss, metrics.Accuracy, metrics.Count)
	}

	if cfg.MNISTCheck {
		mnistCheck(model)
	}
	return model, nil
}

// mnistCheck scores the model on the canonical MNIST test
// set.
func mnistCheck(model *drawmodel.Controller) {
	log.Println("Scoring canonical MNIST test set...")
	ts := mnist.LoadTestingDataSet()
	classify := func(in []float64) int {
		data := make([]float32, len(in))
		for i, x := range in {
			data[i] = float32(x)
		}
		input := drawdata.Tensor{
			Shape: []int{drawdata.ImageHeight, drawdata.ImageWidth, 1},
			Data:  data,
		}
		pred, err := model.Predict(input)
		essentials.Must(err)
		return pred.Digit()
	}
	log.Println("MNIST correct:", ts.NumCorrect(classify))
	log.Println("MNIST histogram:", ts.CorrectnessHistogram(classify))
}
