// Package api publishes the latest signed commitment over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
	"github.com/evaafi/merkle-oracles-pub/pkg/metrics"
	"github.com/evaafi/merkle-oracles-pub/pkg/pipeline"
)

// Server serves the latest tick result.
type Server struct {
	addr    string
	timeout time.Duration
	server  *http.Server
	logger  *logging.Logger
	ws      *WebSocketHub // optional

	mu     sync.RWMutex
	latest *pipeline.Result
}

// Ensure Server implements pipeline.Publisher.
var _ pipeline.Publisher = (*Server)(nil)

// NewServer creates a new HTTP API server. ws may be nil.
func NewServer(addr string, timeout time.Duration, ws *WebSocketHub, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		addr:    addr,
		timeout: timeout,
		ws:      ws,
		logger:  logger.With("component", "api"),
	}
}

// Publish stores res as the latest result and pushes it to subscribers.
func (s *Server) Publish(res *pipeline.Result) {
	s.mu.Lock()
	s.latest = res
	s.mu.Unlock()

	if s.ws != nil {
		s.ws.SendUpdate(res)
	}
}

// Latest returns the last published result, or nil.
func (s *Server) Latest() *pipeline.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/commitment", s.handleCommitment)
	mux.HandleFunc("/v1/prices", s.handlePrices)
	if s.ws != nil {
		mux.HandleFunc("/ws", s.ws.handleWebSocket)
	}
	return mux
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.timeout,
		WriteTimeout:      s.timeout,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.ws != nil {
		s.ws.Stop()
	}
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCommitment returns the latest DataToPush.
func (s *Server) handleCommitment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest(r.URL.Path, status, time.Since(start))
	}()

	res := s.Latest()
	if res == nil {
		status = "503"
		http.Error(w, "No commitment available", http.StatusServiceUnavailable)
		return
	}
	s.sendJSON(w, res.Data)
}

// PriceData is one consensus price of the latest tick.
type PriceData struct {
	Symbol string `json:"symbol"`
	ID     string `json:"id"`
	Price  string `json:"price"`
}

// PricesResponse is the /v1/prices payload.
type PricesResponse struct {
	Tick      uint64      `json:"tick"`
	Timestamp uint32      `json:"timestamp"`
	Prices    []PriceData `json:"prices"`
	Omitted   []string    `json:"omitted,omitempty"`
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest(r.URL.Path, status, time.Since(start))
	}()

	res := s.Latest()
	if res == nil {
		status = "503"
		http.Error(w, "No prices available", http.StatusServiceUnavailable)
		return
	}
	s.sendJSON(w, pricesResponse(res))
}

func pricesResponse(res *pipeline.Result) PricesResponse {
	out := PricesResponse{Tick: res.Tick, Timestamp: res.Data.Timestamp}
	for _, a := range res.Prices.Sorted() {
		out.Prices = append(out.Prices, PriceData{
			Symbol: a.String(),
			ID:     a.ID().String(),
			Price:  res.Prices[a].String(),
		})
	}
	for _, a := range res.Omitted {
		out.Omitted = append(out.Omitted, a.String())
	}
	sort.Strings(out.Omitted)
	return out
}

func (s *Server) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}
