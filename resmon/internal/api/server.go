// Package api exposes a small diagnostics listener for long profiling
// sessions: a health probe and the latest in-memory results per target.
// It observes the engine; it never drives it.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Lissy93/framework-benchmarks/resmon/metrics"
)

const shutdownGrace = 5 * time.Second

// Server holds the latest averaged result per target and serves them over
// HTTP. Record is safe to call while requests are in flight.
type Server struct {
	logger *slog.Logger

	mu      sync.RWMutex
	results map[string]*metrics.AveragedProfileResult
	order   []string

	httpSrv *http.Server
}

// NewServer creates a diagnostics server bound to addr.
func NewServer(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:  logger,
		results: make(map[string]*metrics.AveragedProfileResult),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/results", s.handleResults)
	r.Get("/results/{target}", s.handleResult)

	s.httpSrv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Record stores (or replaces) the latest averaged result for a target.
func (s *Server) Record(res *metrics.AveragedProfileResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.results[res.TargetID]; !seen {
		s.order = append(s.order, res.TargetID)
	}
	s.results[res.TargetID] = res
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
	s.logger.Info("api: diagnostics listening", "addr", s.httpSrv.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := make([]*metrics.AveragedProfileResult, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.results[id])
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	s.mu.RLock()
	res, ok := s.results[target]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown target: " + target})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
