package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/npratt/fingerlock/internal/viewmodel"
)

const shutdownTimeout = 5 * time.Second

// SignalFunc returns the current UI signal.
type SignalFunc func() viewmodel.Signal

// Server serves /metrics, /healthz and /signal.
type Server struct {
	addr   string
	srv    *http.Server
	logger *slog.Logger
	ln     net.Listener
}

// NewRouter builds the HTTP routes. signal may be nil, in which case
// /signal responds 503.
func NewRouter(gatherer prometheus.Gatherer, signal SignalFunc) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)
	r.HandleFunc("/signal", func(w http.ResponseWriter, _ *http.Request) {
		if signal == nil {
			http.Error(w, "no workflow", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(signal())
	}).Methods(http.MethodGet)
	return r
}

// NewServer creates a server listening on addr.
func NewServer(addr string, gatherer prometheus.Gatherer, signal SignalFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:   addr,
		logger: logger,
		srv: &http.Server{
			Handler:           NewRouter(gatherer, signal),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds the listen address and serves in the background until ctx is
// canceled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.ln = ln

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("metrics server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}
