package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/bulkfetch/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// StatusFunc returns a JSON-encodable snapshot served on /status.
type StatusFunc func() any

// Server serves /metrics, /health and /status while a run is in progress.
type Server struct {
	addr   string
	http   *http.Server
	logger zerolog.Logger
}

// NewServer creates a server listening on addr. status may be nil.
func NewServer(addr string, status StatusFunc) *Server {
	s := &Server{
		addr:   addr,
		logger: logging.NewLogger(logging.ComponentMetrics),
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           Router(status),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the HTTP routes.
func Router(status StatusFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		var body any = struct{}{}
		if status != nil {
			body = status()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	return r
}

// Start binds the listener and serves in the background. Serve errors after
// a successful bind are logged.
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics server listening")
	return ln.Addr(), nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
