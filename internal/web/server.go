package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/intervo-ai/intervo/internal/health"
	"github.com/intervo-ai/intervo/internal/observe"
)

// shutdownTimeout bounds graceful server shutdown.
const shutdownTimeout = 5 * time.Second

// ServerConfig assembles the local HTTP surface.
type ServerConfig struct {
	// Addr is the TCP address to listen on (e.g., "127.0.0.1:8090").
	Addr string

	// Feed serves the websocket event stream at /ws.
	Feed *Feed

	// Control handles the session control endpoints. When nil, the routes
	// are not registered.
	Control Controller

	// Health serves the liveness and readiness probes. When nil, a handler
	// with no readiness checks is used.
	Health *health.Handler

	// Metrics instruments request handling. When nil, the default instance
	// is used.
	Metrics *observe.Metrics
}

// Server is the runtime's local HTTP server. It exposes:
//
//   - GET  /ws          — websocket event feed
//   - POST /session/*   — session control endpoints (see [controlAPI])
//   - GET  /metrics     — Prometheus scrape endpoint
//   - GET  /healthz     — liveness probe
//   - GET  /readyz      — readiness probe
type Server struct {
	srv *http.Server
}

// NewServer builds a Server from cfg. The metrics and health routes are
// wrapped in [observe.Middleware]; the websocket route is not, because a feed
// connection lives for the whole session and would distort the request
// duration histogram.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}

	instrumented := http.NewServeMux()
	instrumented.Handle("GET /metrics", promhttp.Handler())
	cfg.Health.Register(instrumented)
	if cfg.Control != nil {
		api := &controlAPI{ctrl: cfg.Control}
		api.register(instrumented)
	}

	mux := http.NewServeMux()
	mux.Handle("/", observe.Middleware(cfg.Metrics)(instrumented))
	if cfg.Feed != nil {
		mux.Handle("GET /ws", cfg.Feed)
	}

	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully. Returns nil
// on clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	slog.Info("web server listening", "addr", s.srv.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
