package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Server answers the hosting platform's liveness probe. It is independent of
// cycle state: as long as the process runs, GET / returns 200 OK.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds the probe server on the given port.
func NewServer(port int, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "OK")
	})

	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start blocks serving probes until Shutdown.
func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.Info("liveness endpoint up", "addr", s.srv.Addr)
	}
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("liveness server: %w", err)
	}
	return nil
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
