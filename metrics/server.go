package metrics

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

// Server exposes /metrics and /health on its own listener.
type Server struct {
	mu     sync.Mutex
	server *http.Server
	ln     net.Listener
	logger *logging.Logger
	done   chan struct{}
}

// NewServer builds a metrics server for collector. Nothing listens until Start.
func NewServer(addr string, collector *PrometheusCollector, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.WithComponent(logging.Component("metrics")),
	}
}

// Start begins listening. Calling Start on a running server is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errors.E(errors.Op("metrics.Start"), errors.Component("metrics"), errors.KindInvalid, err)
	}
	s.ln = ln
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := s.server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}(s.done)

	s.logger.Info("metrics server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	ln, done := s.ln, s.done
	s.ln = nil
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	err := s.server.Shutdown(ctx)
	<-done
	return err
}
