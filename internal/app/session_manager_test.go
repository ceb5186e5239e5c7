package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/intervo-ai/intervo/internal/interview"
	"github.com/intervo-ai/intervo/internal/media"
	"github.com/intervo-ai/intervo/internal/observe"
	"github.com/intervo-ai/intervo/internal/session"
	"github.com/intervo-ai/intervo/internal/web"
	"github.com/intervo-ai/intervo/pkg/capture"
	capmock "github.com/intervo-ai/intervo/pkg/capture/mock"
)

// backendStub serves a fixed session and accepts everything else.
type backendStub struct {
	mu                sync.Mutex
	FetchSessionError error
	Sessions          map[string]*interview.Session
}

func (b *backendStub) FetchSession(_ context.Context, sessionID string) (*interview.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FetchSessionError != nil {
		return nil, b.FetchSessionError
	}
	sess, ok := b.Sessions[sessionID]
	if !ok {
		return nil, errors.New("unknown session")
	}
	return sess, nil
}

func (b *backendStub) SaveAnswer(context.Context, string, string, string) error { return nil }

func (b *backendStub) Submit(context.Context, string, []interview.Answer) error { return nil }

func textOnlySession(id string) *interview.Session {
	return &interview.Session{
		ID: id,
		Questions: []interview.Question{
			{ID: "q1", Text: "Why us?", Type: interview.QuestionText, TimeLimit: 5, Order: 1},
		},
	}
}

func newManagerFixture(t *testing.T, be session.Backend) *SessionManager {
	t.Helper()

	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	sm := NewSessionManager(SessionManagerConfig{
		Backend:  be,
		Gateway:  media.NewGateway(&capmock.Driver{}, capture.DeviceConfig{}),
		Recorder: media.NewRecorder(),
		Events:   session.SlogSink{},
		Metrics:  metrics,
		Mode:     session.CapturePersistent,
	})
	t.Cleanup(func() { _ = sm.Stop() })
	return sm
}

func TestSessionManager_StartAndStatus(t *testing.T) {
	t.Parallel()

	sm := newManagerFixture(t, &backendStub{
		Sessions: map[string]*interview.Session{"sess-1": textOnlySession("sess-1")},
	})

	if _, ok := sm.Status(); ok {
		t.Error("Status ok before any Start")
	}

	if err := sm.Start(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	status, ok := sm.Status()
	if !ok {
		t.Fatal("Status not ok after Start")
	}
	if status.SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want sess-1", status.SessionID)
	}
	if status.State != session.StateDeviceCheck {
		t.Errorf("State = %q, want %q", status.State, session.StateDeviceCheck)
	}
	if status.Mode != session.CapturePersistent {
		t.Errorf("Mode = %q, want persistent", status.Mode)
	}
	if status.StartedAt.IsZero() {
		t.Error("StartedAt is zero")
	}
}

func TestSessionManager_RejectsSecondSession(t *testing.T) {
	t.Parallel()

	sm := newManagerFixture(t, &backendStub{
		Sessions: map[string]*interview.Session{
			"sess-1": textOnlySession("sess-1"),
			"sess-2": textOnlySession("sess-2"),
		},
	})

	if err := sm.Start(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sm.Start(context.Background(), "sess-2"); !errors.Is(err, web.ErrSessionBusy) {
		t.Errorf("second Start err = %v, want ErrSessionBusy", err)
	}
}

func TestSessionManager_OpsWithoutSession(t *testing.T) {
	t.Parallel()

	sm := newManagerFixture(t, &backendStub{})
	ctx := context.Background()

	if err := sm.GrantDevice(ctx); !errors.Is(err, web.ErrNoSession) {
		t.Errorf("GrantDevice err = %v, want ErrNoSession", err)
	}
	if err := sm.EnterText("hello"); !errors.Is(err, web.ErrNoSession) {
		t.Errorf("EnterText err = %v, want ErrNoSession", err)
	}
	if err := sm.Advance(ctx); !errors.Is(err, web.ErrNoSession) {
		t.Errorf("Advance err = %v, want ErrNoSession", err)
	}
	if err := sm.Stop(); err != nil {
		t.Errorf("Stop with no session = %v, want nil", err)
	}
}

func TestSessionManager_StopAllowsRestart(t *testing.T) {
	t.Parallel()

	sm := newManagerFixture(t, &backendStub{
		Sessions: map[string]*interview.Session{"sess-1": textOnlySession("sess-1")},
	})
	ctx := context.Background()

	if err := sm.Start(ctx, "sess-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sm.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, ok := sm.Status(); ok {
		t.Error("Status ok after Stop")
	}
	if err := sm.Start(ctx, "sess-1"); err != nil {
		t.Fatalf("restart after Stop: %v", err)
	}
}

func TestSessionManager_ReplacesFinishedSession(t *testing.T) {
	t.Parallel()

	sm := newManagerFixture(t, &backendStub{
		Sessions: map[string]*interview.Session{
			"sess-1": textOnlySession("sess-1"),
			"sess-2": textOnlySession("sess-2"),
		},
	})
	ctx := context.Background()

	if err := sm.Start(ctx, "sess-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sm.GrantDevice(ctx); err != nil {
		t.Fatalf("GrantDevice: %v", err)
	}
	if err := sm.EnterText("done"); err != nil {
		t.Fatalf("EnterText: %v", err)
	}
	// Single question: advancing submits and finishes the session.
	if err := sm.Advance(ctx); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if status, _ := sm.Status(); status.State != session.StateDone {
		t.Fatalf("State = %q, want done", status.State)
	}

	if err := sm.Start(ctx, "sess-2"); err != nil {
		t.Fatalf("Start after done: %v", err)
	}
	status, ok := sm.Status()
	if !ok || status.SessionID != "sess-2" {
		t.Errorf("Status = %+v (ok=%t), want sess-2", status, ok)
	}
}

func TestSessionManager_StartFailureLeavesNoSession(t *testing.T) {
	t.Parallel()

	sm := newManagerFixture(t, &backendStub{FetchSessionError: errors.New("backend down")})

	if err := sm.Start(context.Background(), "sess-1"); err == nil {
		t.Fatal("Start succeeded despite fetch failure")
	}
	if _, ok := sm.Status(); ok {
		t.Error("Status ok after failed Start")
	}
}
