package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/intervo-ai/intervo/internal/media"
	"github.com/intervo-ai/intervo/internal/observe"
	"github.com/intervo-ai/intervo/internal/session"
	"github.com/intervo-ai/intervo/internal/web"
)

// SessionManager owns the lifecycle of interview runners and implements
// [web.Controller]. Only one interview can run at a time; starting a second
// one while the first is still live is an error. All exported methods are
// safe for concurrent use.
type SessionManager struct {
	mu     sync.Mutex
	runner *session.Runner
	status web.SessionStatus

	backend  session.Backend
	gateway  *media.Gateway
	recorder *media.Recorder
	events   session.EventSink
	metrics  *observe.Metrics
	mode     session.CaptureMode
}

// Compile-time check: the manager is the control surface.
var _ web.Controller = (*SessionManager)(nil)

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Backend  session.Backend
	Gateway  *media.Gateway
	Recorder *media.Recorder
	Events   session.EventSink
	Metrics  *observe.Metrics
	Mode     session.CaptureMode
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	return &SessionManager{
		backend:  cfg.Backend,
		gateway:  cfg.Gateway,
		recorder: cfg.Recorder,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		mode:     cfg.Mode,
	}
}

// Start loads the interview session and moves it into the device check.
// Returns [web.ErrSessionBusy] when another session is still live; a
// finished session is replaced.
func (sm *SessionManager) Start(ctx context.Context, sessionID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.runner != nil && sm.runner.State() != session.StateDone {
		return fmt.Errorf("%w (id=%s)", web.ErrSessionBusy, sm.status.SessionID)
	}
	if sm.runner != nil {
		// Finished runner; release whatever it still holds.
		_ = sm.runner.Close()
	}

	r, err := session.NewRunner(session.RunnerConfig{
		SessionID:   sessionID,
		CaptureMode: sm.mode,
		Backend:     sm.backend,
		Gateway:     sm.gateway,
		Recorder:    sm.recorder,
		Events:      sm.events,
		Metrics:     sm.metrics,
	})
	if err != nil {
		return err
	}
	if err := r.Start(ctx); err != nil {
		_ = r.Close()
		return err
	}

	sm.runner = r
	sm.status = web.SessionStatus{
		SessionID: sessionID,
		StartedAt: time.Now().UTC(),
		Mode:      sm.mode,
	}
	return nil
}

// GrantDevice acquires the camera and microphone and starts the interview.
func (sm *SessionManager) GrantDevice(ctx context.Context) error {
	r, err := sm.current()
	if err != nil {
		return err
	}
	return r.GrantDevice(ctx)
}

// EnterText replaces the draft answer for the current question.
func (sm *SessionManager) EnterText(text string) error {
	r, err := sm.current()
	if err != nil {
		return err
	}
	return r.EnterText(text)
}

// Advance captures the current answer and moves on; on the last question it
// submits the whole session.
func (sm *SessionManager) Advance(ctx context.Context) error {
	r, err := sm.current()
	if err != nil {
		return err
	}
	return r.Advance(ctx)
}

// Stop tears down the current session, releasing capture resources. It is a
// no-op when nothing is running.
func (sm *SessionManager) Stop() error {
	sm.mu.Lock()
	r := sm.runner
	sm.runner = nil
	sm.mu.Unlock()

	if r == nil {
		return nil
	}
	return r.Close()
}

// Status reports the current session metadata and runner state. ok is false
// when no session has been started.
func (sm *SessionManager) Status() (status web.SessionStatus, ok bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.runner == nil {
		return web.SessionStatus{}, false
	}
	st := sm.status
	st.State = sm.runner.State()
	return st, true
}

func (sm *SessionManager) current() (*session.Runner, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.runner == nil {
		return nil, web.ErrNoSession
	}
	return sm.runner, nil
}
