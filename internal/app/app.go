// Package app wires all Intervo subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in reverse order.
//
// For testing, inject doubles via functional options (WithDriver,
// WithBackend, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/intervo-ai/intervo/internal/backend"
	"github.com/intervo-ai/intervo/internal/bus"
	"github.com/intervo-ai/intervo/internal/config"
	"github.com/intervo-ai/intervo/internal/health"
	"github.com/intervo-ai/intervo/internal/media"
	"github.com/intervo-ai/intervo/internal/observe"
	"github.com/intervo-ai/intervo/internal/session"
	"github.com/intervo-ai/intervo/internal/web"
	"github.com/intervo-ai/intervo/pkg/capture"
	"github.com/intervo-ai/intervo/pkg/capture/ffmpeg"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	driver   capture.Driver
	gateway  *media.Gateway
	recorder *media.Recorder
	client   *backend.Client
	be       session.Backend
	events   *bus.Bus[session.Event]
	auth     *bus.Bus[backend.AuthEvent]
	extra    []session.EventSink

	manager *SessionManager
	feed    *web.Feed
	server  *web.Server

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDriver injects a capture driver instead of the ffmpeg default.
func WithDriver(d capture.Driver) Option {
	return func(a *App) { a.driver = d }
}

// WithBackend injects a session backend instead of the HTTP client built
// from config. Health checks for backend reachability are skipped.
func WithBackend(b session.Backend) Option {
	return func(a *App) { a.be = b }
}

// WithMetrics injects a metrics instance (tests pass an isolated one).
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithEventSink adds an extra sink receiving all session events, alongside
// the slog and feed sinks.
func WithEventSink(s session.EventSink) Option {
	return func(a *App) { a.extra = append(a.extra, s) }
}

// New creates an App by wiring all subsystems together.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		events: bus.New[session.Event](),
		auth:   bus.New[backend.AuthEvent](),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Capture ───────────────────────────────────────────────────────
	if a.driver == nil {
		a.driver = ffmpeg.New(ffmpeg.WithCommand(cfg.Capture.Command))
	}
	a.gateway = media.NewGateway(a.driver, deviceConfig(cfg.Capture))
	a.recorder = media.NewRecorder()

	// ── 2. Backend client ────────────────────────────────────────────────
	if a.be == nil {
		clientOpts := []backend.Option{
			backend.WithAuthBus(a.auth),
			backend.WithMetrics(a.metrics),
		}
		if cfg.Backend.TimeoutSeconds > 0 {
			clientOpts = append(clientOpts, backend.WithTimeout(time.Duration(cfg.Backend.TimeoutSeconds)*time.Second))
		}
		client, err := backend.New(cfg.Backend.BaseURL, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("app: init backend client: %w", err)
		}
		a.client = client
		a.be = client
	}

	// Surface credential rejections as a notice so the UI can prompt a
	// re-login instead of failing silently.
	a.auth.Subscribe(func(ev backend.AuthEvent) {
		slog.Warn("backend rejected credentials", "status", ev.Status)
		n := session.NewNotice(session.SeverityError,
			"Your session has expired. Please sign in again.")
		a.events.Publish(session.Event{Type: session.EventNotice, Notice: &n})
	})

	// ── 3. Web feed ──────────────────────────────────────────────────────
	a.feed = web.NewFeed(a.events,
		web.WithOriginPatterns(cfg.Server.AllowedOrigins),
		web.WithFeedMetrics(a.metrics),
	)

	// ── 4. Session manager ───────────────────────────────────────────────
	sinks := session.MultiSink{
		session.SlogSink{},
		session.BusSink{Bus: a.events},
	}
	sinks = append(sinks, a.extra...)
	a.manager = NewSessionManager(SessionManagerConfig{
		Backend:  a.be,
		Gateway:  a.gateway,
		Recorder: a.recorder,
		Events:   sinks,
		Metrics:  a.metrics,
		Mode:     cfg.Capture.Mode,
	})

	// ── 5. HTTP server ───────────────────────────────────────────────────
	a.server = web.NewServer(web.ServerConfig{
		Addr:    cfg.Server.ListenAddr,
		Feed:    a.feed,
		Control: a.manager,
		Health:  health.New(a.healthChecks()...),
		Metrics: a.metrics,
	})

	// Closers run in reverse append order: the session stops first so
	// capture hardware is released before the event plumbing goes away.
	a.closers = append(a.closers,
		func() error { a.auth.Close(); return nil },
		func() error { a.events.Close(); return nil },
		func() error { a.feed.Close(); return nil },
		a.manager.Stop,
	)

	return a, nil
}

// healthChecks builds the readiness probes: the capture binary must be on
// PATH and the backend must answer HTTP.
func (a *App) healthChecks() []health.Check {
	checks := []health.Check{
		{
			Name: "capture",
			Probe: func(context.Context) error {
				_, err := exec.LookPath(a.cfg.Capture.Command)
				return err
			},
		},
	}
	if a.client != nil {
		checks = append(checks, health.Check{
			Name:  "backend",
			Probe: a.client.Ping,
		})
	}
	return checks
}

// Manager exposes the session control surface, mainly for tests.
func (a *App) Manager() *SessionManager {
	return a.manager
}

// Run serves the local HTTP surface until ctx is cancelled, then shuts the
// application down. Returns nil on clean shutdown.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(gctx)
	})

	slog.Info("intervo running",
		"listen_addr", a.cfg.Server.ListenAddr,
		"backend", a.cfg.Backend.BaseURL,
		"capture_mode", string(a.cfg.Capture.Mode),
	)

	err := g.Wait()
	return errors.Join(err, a.Shutdown())
}

// Shutdown tears all subsystems down in reverse construction order.
// Idempotent; only the first call does work.
func (a *App) Shutdown() error {
	var err error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")
		var errs []error
		for i := len(a.closers) - 1; i >= 0; i-- {
			if e := a.closers[i](); e != nil {
				errs = append(errs, e)
			}
		}
		err = errors.Join(errs...)
	})
	return err
}

// deviceConfig maps the capture config onto the driver's device settings.
func deviceConfig(c config.CaptureConfig) capture.DeviceConfig {
	return capture.DeviceConfig{
		VideoDevice: c.VideoDevice,
		AudioDevice: c.AudioDevice,
		VideoFormat: c.VideoFormat,
		AudioFormat: c.AudioFormat,
		FrameSize:   c.FrameSize,
		MimeType:    c.MimeType,
	}
}
