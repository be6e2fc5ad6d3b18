package main

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/unixpickle/drawnet/drawdata"
	"github.com/unixpickle/drawnet/drawmodel"
	"github.com/unixpickle/drawnet/drawstatus"
	"golang.org/x/net/websocket"
)

//go:embed index.html
var indexPage []byte

const (
	maxPredictBody   = 1 << 16
	clientBufferSize = 64
)

type statusMessage struct {
	Message  string   `json:"message,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
	Ready    bool     `json:"ready,omitempty"`
}

// A Hub fans status updates out to websocket clients.
//
// A client is sent the latest status when it connects.
// Clients that fall behind miss updates rather than
// blocking the reporter.
type Hub struct {
	lock    sync.Mutex
	clients map[string]chan statusMessage
	latest  *statusMessage
	ready   bool
}

// NewHub creates a Hub with no clients.
func NewHub() *Hub {
	return &Hub{clients: map[string]chan statusMessage{}}
}

// Report sends a status update to every client.
func (h *Hub) Report(message string, progress float64) {
	msg := statusMessage{Message: message}
	if progress != drawstatus.NoProgress {
		msg.Progress = &progress
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	h.latest = &msg
	h.broadcast(msg)
}

// SetReady tells every client that predictions are
// available.
func (h *Hub) SetReady() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.ready = true
	h.broadcast(statusMessage{Ready: true})
}

// ServeWebsocket streams status updates to one client
// until it disconnects.
func (h *Hub) ServeWebsocket(ws *websocket.Conn) {
	defer ws.Close()

	id := uuid.NewString()
	ch := make(chan statusMessage, clientBufferSize)
	h.lock.Lock()
	if h.latest != nil {
		ch <- *h.latest
	}
	if h.ready {
		ch <- statusMessage{Ready: true}
	}
	h.clients[id] = ch
	h.lock.Unlock()

	log.Printf("Status client %s connected", id)
	defer func() {
		h.lock.Lock()
		delete(h.clients, id)
		h.lock.Unlock()
		log.Printf("Status client %s disconnected", id)
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var data string
			if err := websocket.Message.Receive(ws, &data); err != nil {
				if err != io.EOF {
					log.Printf("Status client %s: %v", id, err)
				}
				return
			}
		}
	}()

	for {
		select {
		case msg := <-ch:
			if err := websocket.JSON.Send(ws, msg); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (h *Hub) latestStatus() (statusMessage, bool) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.latest == nil {
		return statusMessage{}, false
	}
	return *h.latest, true
}

// NumClients returns the number of connected clients.
func (h *Hub) NumClients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg statusMessage) {
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// A Predictor classifies a single image.
type Predictor interface {
	Predict(input drawdata.Tensor) (*drawmodel.Prediction, error)
}

type predictRequest struct {
	Pixels []float64 `json:"pixels"`
}

type predictResponse struct {
	Probabilities []float64 `json:"probabilities"`
	Digit         int       `json:"digit"`
}

// A Server serves the drawing page and its API.
type Server struct {
	Hub *Hub

	lock  sync.RWMutex
	model Predictor
}

// SetModel enables predictions and tells status clients
// that the model is ready.
func (s *Server) SetModel(p Predictor) {
	s.lock.Lock()
	s.model = p
	s.lock.Unlock()
	s.Hub.SetReady()
}

// Handler returns the HTTP routes for the demo.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveIndex)
	mux.Handle("/api/status", websocket.Handler(s.Hub.ServeWebsocket))
	mux.HandleFunc("/api/predict", s.servePredict)
	return mux
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexPage)
}

func (s *Server) servePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.lock.RLock()
	model := s.model
	s.lock.RUnlock()
	if model == nil {
		http.Error(w, "model is still training", http.StatusServiceUnavailable)
		return
	}

	input, err := decodePixels(io.LimitReader(r.Body, maxPredictBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Printf("Predicting digit from %d non-zero pixels", countNonZero(input.Data))

	pred, err := model.Predict(input)
	if err != nil {
		log.Printf("Prediction failed: %v", err)
		s.Hub.Report("Error making prediction: "+err.Error(), drawstatus.NoProgress)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(predictResponse{
		Probabilities: pred.Probabilities,
		Digit:         pred.Digit(),
	})
}

func decodePixels(r io.Reader) (drawdata.Tensor, error) {
	var req predictRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return drawdata.Tensor{}, fmt.Errorf("decode request: %w", err)
	}
	if len(req.Pixels) != drawdata.ImageSize {
		return drawdata.Tensor{}, fmt.Errorf("expected %d pixels but got %d",
			drawdata.ImageSize, len(req.Pixels))
	}
	data := make([]float32, len(req.Pixels))
	for i, x := range req.Pixels {
		if math.IsNaN(x) || x < 0 || x > 1 {
			return drawdata.Tensor{}, errors.New("pixels must be in [0, 1]")
		}
		data[i] = float32(x)
	}
	return drawdata.Tensor{
		Shape: []int{drawdata.ImageHeight, drawdata.ImageWidth, 1},
		Data:  data,
	}, nil
}

func countNonZero(data []float32) int {
	var count int
	for _, x := range data {
		if x != 0 {
			count++
		}
	}
	return count
}
