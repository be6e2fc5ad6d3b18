package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/unixpickle/drawnet/drawdata"
	"github.com/unixpickle/drawnet/drawmodel"
	"golang.org/x/net/websocket"
)

type fixedPredictor struct {
	lastInput drawdata.Tensor
}

func (f *fixedPredictor) Predict(input drawdata.Tensor) (*drawmodel.Prediction, error) {
	f.lastInput = input
	probs := make([]float64, 10)
	probs[7] = 1
	return &drawmodel.Prediction{Probabilities: probs}, nil
}

type failingPredictor struct{}

func (f failingPredictor) Predict(input drawdata.Tensor) (*drawmodel.Prediction, error) {
	return nil, &drawmodel.InferenceError{Err: errors.New("backend failure")}
}

func TestPredictHandlerModelError(t *testing.T) {
	server := &Server{Hub: NewHub()}
	server.SetModel(failingPredictor{})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	body, _ := json.Marshal(map[string]interface{}{"pixels": make([]float64, 784)})
	resp, err := http.Post(ts.URL+"/api/predict", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500 but got %d", resp.StatusCode)
	}
	latest, ok := server.Hub.latestStatus()
	if !ok || latest.Message != "Error making prediction: inference: backend failure" ||
		latest.Progress != nil {
		t.Errorf("unexpected latest status: %+v", latest)
	}
}

func TestPredictHandler(t *testing.T) {
	server := &Server{Hub: NewHub()}
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	pixels := make([]float64, 784)
	pixels[100] = 0.5
	body, _ := json.Marshal(map[string]interface{}{"pixels": pixels})

	resp, err := http.Post(ts.URL+"/api/predict", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before training but got %d", resp.StatusCode)
	}

	predictor := &fixedPredictor{}
	server.SetModel(predictor)

	resp, err = http.Post(ts.URL+"/api/predict", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 but got %d", resp.StatusCode)
	}
	var result predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Digit != 7 || len(result.Probabilities) != 10 {
		t.Errorf("unexpected result: %+v", result)
	}
	if predictor.lastInput.Data[100] != 0.5 || len(predictor.lastInput.Shape) != 3 {
		t.Errorf("unexpected model input: %v", predictor.lastInput.Shape)
	}
}

func TestPredictHandlerBadInput(t *testing.T) {
	server := &Server{Hub: NewHub()}
	server.SetModel(&fixedPredictor{})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	bodies := []string{
		"not json",
		`{"pixels": [0.1, 0.2]}`,
		`{"pixels": [` + strings.Repeat("2,", 783) + `2]}`,
	}
	for i, body := range bodies {
		resp, err := http.Post(ts.URL+"/api/predict", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %d: expected 400 but got %d", i, resp.StatusCode)
		}
	}

	resp, err := http.Get(ts.URL + "/api/predict")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 but got %d", resp.StatusCode)
	}
}

func TestIndexPage(t *testing.T) {
	server := &Server{Hub: NewHub()}
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "<canvas") {
		t.Error("page has no canvas")
	}

	resp, err = http.Get(ts.URL + "/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 but got %d", resp.StatusCode)
	}
}

func TestHubLatestStatus(t *testing.T) {
	server := &Server{Hub: NewHub()}
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	server.Hub.Report("Loading MNIST data...", 0)
	server.Hub.Report("Processing image data...", 20)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/status"
	ws, err := websocket.Dial(wsURL, "", ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()
	ws.SetDeadline(time.Now().Add(10 * time.Second))

	var msg statusMessage
	if err := websocket.JSON.Receive(ws, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Message != "Processing image data..." || msg.Progress == nil || *msg.Progress != 20 {
		t.Errorf("unexpected first message: %+v", msg)
	}

	waitForClients(t, server.Hub, 1)
	server.Hub.Report("Failed to load MNIST data: boom", -1)
	msg = statusMessage{}
	if err := websocket.JSON.Receive(ws, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Message != "Failed to load MNIST data: boom" || msg.Progress != nil {
		t.Errorf("unexpected message: %+v", msg)
	}

	server.SetModel(&fixedPredictor{})
	msg = statusMessage{}
	if err := websocket.JSON.Receive(ws, &msg); err != nil {
		t.Fatal(err)
	}
	if !msg.Ready {
		t.Errorf("expected ready message but got %+v", msg)
	}
}

func waitForClients(t *testing.T, h *Hub, n int) {
	deadline := time.Now().Add(10 * time.Second)
	for h.NumClients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d clients", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
