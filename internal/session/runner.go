package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/intervo-ai/intervo/internal/interview"
	"github.com/intervo-ai/intervo/internal/media"
	"github.com/intervo-ai/intervo/internal/observe"
)

// CaptureMode selects how the capture device is held across questions.
type CaptureMode string

const (
	// CapturePerQuestion releases the device after every video question and
	// reacquires it for the next one.
	CapturePerQuestion CaptureMode = "per_question"

	// CapturePersistent holds one continuous device stream for the whole
	// session, with the recorder tapping it per video question.
	CapturePersistent CaptureMode = "persistent"
)

// IsValid reports whether m is a recognised capture mode.
func (m CaptureMode) IsValid() bool {
	return m == CapturePerQuestion || m == CapturePersistent
}

// saveTimeout bounds a background per-question save. The save is detached
// from the caller's context so navigation never cancels it.
const saveTimeout = 15 * time.Second

// Backend is the slice of the assessment backend the runner needs.
// Implemented by backend.Client.
type Backend interface {
	// FetchSession loads the session and its ordered question list.
	FetchSession(ctx context.Context, sessionID string) (*interview.Session, error)

	// SaveAnswer persists one text answer, best-effort.
	SaveAnswer(ctx context.Context, sessionID, questionID, text string) error

	// Submit finalizes the session server-side. Video answers are carried
	// in the request; text answers were already streamed via SaveAnswer.
	Submit(ctx context.Context, sessionID string, answers []interview.Answer) error
}

var (
	// ErrSessionEmpty is returned when the backend delivers a session with
	// no questions; there is nothing to run.
	ErrSessionEmpty = errors.New("session: loaded session has no questions")

	// ErrBadState is returned when an operation is invoked outside the
	// state it belongs to.
	ErrBadState = errors.New("session: operation not valid in current state")

	// ErrClosed is returned by operations on a closed runner.
	ErrClosed = errors.New("session: runner is closed")
)

// RunnerConfig holds all dependencies and knobs for a [Runner].
type RunnerConfig struct {
	SessionID   string
	CaptureMode CaptureMode

	Backend  Backend
	Gateway  *media.Gateway
	Recorder *media.Recorder

	// Events receives runtime events. Defaults to [SlogSink].
	Events EventSink

	// OnComplete is invoked exactly once when the session reaches Done,
	// regardless of submission outcome, so the user is never stranded.
	OnComplete func()

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// TimerOptions is passed through to the session timer (tests use it to
	// speed up the clock).
	TimerOptions []TimerOption
}

// Runner drives one interview session end to end:
//
//	Initializing → DeviceCheck → InProgress → Submitting → Done
//
// It owns the answer store, the timer, and the live capture resources, and
// it is the only component that mutates them. All exported methods are safe
// for concurrent use; state-changing calls are serialized by a mutex, so a
// timer expiry and a manual advance can never both submit.
type Runner struct {
	cfg     RunnerConfig
	events  EventSink
	metrics *observe.Metrics

	mu          sync.Mutex
	state       State
	session     *interview.Session
	seq         *Sequencer
	timer       *Timer
	store       *Store
	handle      *media.Handle
	recording   *media.Recording
	pendingText string
	closed      bool

	completeOnce sync.Once
	saves        sync.WaitGroup
}

// NewRunner validates cfg and returns a Runner in the Initializing state.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.SessionID == "" {
		return nil, errors.New("session: SessionID must not be empty")
	}
	if cfg.Backend == nil {
		return nil, errors.New("session: Backend must not be nil")
	}
	if cfg.Gateway == nil {
		return nil, errors.New("session: Gateway must not be nil")
	}
	if cfg.Recorder == nil {
		return nil, errors.New("session: Recorder must not be nil")
	}
	if cfg.CaptureMode == "" {
		cfg.CaptureMode = CapturePersistent
	}
	if !cfg.CaptureMode.IsValid() {
		return nil, fmt.Errorf("session: capture mode %q is invalid", cfg.CaptureMode)
	}
	if cfg.Events == nil {
		cfg.Events = SlogSink{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	return &Runner{
		cfg:     cfg,
		events:  cfg.Events,
		metrics: cfg.Metrics,
		state:   StateInitializing,
		store:   NewStore(),
		timer:   NewTimer(cfg.TimerOptions...),
	}, nil
}

// State returns the current runner state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Remaining returns the seconds left on the session clock.
func (r *Runner) Remaining() int {
	return r.timer.Remaining()
}

// CurrentQuestion returns the active question. ok is false before the
// session is loaded or after it completed.
func (r *Runner) CurrentQuestion() (q interview.Question, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq == nil || r.state == StateDone {
		return interview.Question{}, false
	}
	return r.seq.Current(), true
}

// Start fetches the session and prepares the sequencer and timer. On
// success the runner transitions to DeviceCheck. A load failure keeps the
// runner in Initializing with a retryable error — calling Start again
// retries the fetch.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.state != StateInitializing {
		return fmt.Errorf("%w: Start in %s", ErrBadState, r.state)
	}

	begin := time.Now()
	sess, err := r.cfg.Backend.FetchSession(ctx, r.cfg.SessionID)
	r.metrics.SessionLoadDuration.Record(ctx, time.Since(begin).Seconds())
	if err != nil {
		r.events.Notify(NewNotice(SeverityError, "Session does not exist or access denied."))
		return fmt.Errorf("session: load %s: %w", r.cfg.SessionID, err)
	}
	if len(sess.Questions) == 0 {
		r.events.Notify(NewNotice(SeverityError, "This interview session has no questions."))
		return ErrSessionEmpty
	}

	r.session = sess
	r.seq = NewSequencer(sess.Questions)
	r.state = StateDeviceCheck

	r.metrics.SessionsStarted.Add(ctx, 1)
	r.metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("session loaded",
		"session_id", sess.ID,
		"questions", r.seq.Len(),
		"total_seconds", r.seq.TotalSeconds(),
		"capture_mode", string(r.cfg.CaptureMode),
	)
	r.events.StateChanged(StateDeviceCheck, ReasonSessionLoaded)
	return nil
}

// GrantDevice performs the explicit device-permission handshake. On success
// the session clock starts and the runner enters InProgress. Denial keeps
// the runner in DeviceCheck so the user may retry.
func (r *Runner) GrantDevice(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.state != StateDeviceCheck {
		return fmt.Errorf("%w: GrantDevice in %s", ErrBadState, r.state)
	}

	handle, err := r.cfg.Gateway.Acquire(ctx)
	if err != nil {
		r.events.Notify(NewNotice(SeverityError, media.UserMessage(err)))
		return err
	}
	r.handle = handle
	r.metrics.ActiveCaptures.Add(ctx, 1)

	// In per-question mode the check only verifies access; the device is
	// reacquired when a video question actually needs it.
	if r.cfg.CaptureMode == CapturePerQuestion {
		if err := r.cfg.Gateway.Release(r.handle); err != nil {
			slog.Warn("session: release after device check failed", "err", err)
		}
		r.handle = nil
		r.metrics.ActiveCaptures.Add(ctx, -1)
	}

	r.timer.Start(r.seq.TotalSeconds(), r.events.TimerTick, r.onExpire)
	r.state = StateInProgress
	r.events.StateChanged(StateInProgress, ReasonDeviceGranted)
	r.enterQuestion(ctx)
	return nil
}

// EnterText binds text as the pending answer for the current question. The
// binding is transient; it becomes an Answer when the runner advances.
func (r *Runner) EnterText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.state != StateInProgress {
		return fmt.Errorf("%w: EnterText in %s", ErrBadState, r.state)
	}
	r.pendingText = text
	return nil
}

// Advance persists the current question's answer and moves on: to the next
// question while one remains, otherwise into Submitting and Done. The
// answer data is fixed in the store before the index changes, so an early
// index switch can never drop it.
func (r *Runner) Advance(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.state != StateInProgress {
		return fmt.Errorf("%w: Advance in %s", ErrBadState, r.state)
	}

	r.captureCurrent(ctx)

	if r.seq.HasNext() {
		r.seq.Advance()
		r.events.StateChanged(StateInProgress, ReasonAdvanced)
		r.enterQuestion(ctx)
		return nil
	}

	r.finish(ctx, ReasonLastQuestion, "manual")
	return nil
}

// Close tears the runner down unconditionally: the recorder is stopped,
// the device handle released, and the timer registration cleared. Safe on
// every exit path and idempotent. In-flight background saves are awaited.
func (r *Runner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.timer.Stop()

	var errs []error
	if _, err := r.cfg.Recorder.Stop(r.recording); err != nil {
		errs = append(errs, err)
	}
	r.recording = nil
	if r.handle != nil {
		if err := r.cfg.Gateway.Release(r.handle); err != nil {
			errs = append(errs, err)
		}
		r.handle = nil
		r.metrics.ActiveCaptures.Add(context.Background(), -1)
	}
	if r.state != StateDone && r.session != nil {
		r.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	r.mu.Unlock()

	r.saves.Wait()
	return errors.Join(errs...)
}

// ─── internals (r.mu held) ───────────────────────────────────────────────────

// enterQuestion resets per-question transient state and, for a video
// question, makes sure a recording is running (auto-record: no user action
// involved). In per-question capture mode the device is reacquired here and
// released again on advance.
func (r *Runner) enterQuestion(ctx context.Context) {
	q := r.seq.Current()
	r.pendingText = ""
	r.events.QuestionChanged(r.seq.Index(), r.seq.Len(), q)

	if q.Type != interview.QuestionVideo {
		return
	}

	if r.handle == nil {
		handle, err := r.cfg.Gateway.Acquire(ctx)
		if err != nil {
			r.events.Notify(NewNotice(SeverityError, media.UserMessage(err)))
			return
		}
		r.handle = handle
		r.metrics.ActiveCaptures.Add(ctx, 1)
	}

	rec, err := r.cfg.Recorder.Start(r.handle)
	if err != nil {
		// The active recording stays authoritative on a conflict.
		r.events.Notify(NewNotice(SeverityWarn, "Recording could not be started for this question."))
		slog.Warn("session: recorder start failed", "question_id", q.ID, "err", err)
		return
	}
	r.recording = rec
}

// captureCurrent fixes the current question's answer in the store before
// the sequencer index changes. Text answers additionally fire a background
// save; its failure is surfaced as a notice, never blocking navigation.
func (r *Runner) captureCurrent(ctx context.Context) {
	q := r.seq.Current()

	switch q.Type {
	case interview.QuestionText:
		text := r.pendingText
		if strings.TrimSpace(text) == "" {
			return
		}
		r.store.Put(interview.Answer{
			Kind:       interview.AnswerText,
			QuestionID: q.ID,
			Text:       text,
		})
		r.saveTextAnswer(ctx, q.ID, text)

	case interview.QuestionVideo:
		clip, err := r.cfg.Recorder.Stop(r.recording)
		r.recording = nil
		if err != nil {
			r.events.Notify(NewNotice(SeverityWarn, "Recording could not be finalized."))
			slog.Warn("session: recorder stop failed", "question_id", q.ID, "err", err)
		}
		if clip != nil && len(clip.Data) > 0 {
			r.store.Put(interview.Answer{
				Kind:       interview.AnswerVideo,
				QuestionID: q.ID,
				Video:      clip.Data,
				MimeType:   clip.MimeType,
			})
		}
		if r.cfg.CaptureMode == CapturePerQuestion && r.handle != nil {
			if err := r.cfg.Gateway.Release(r.handle); err != nil {
				slog.Warn("session: per-question release failed", "err", err)
			}
			r.handle = nil
			r.metrics.ActiveCaptures.Add(ctx, -1)
		}
	}
}

// saveTextAnswer streams one text answer to the backend in the background.
// The call is detached from the caller's context so advancing (or leaving)
// never cancels it; its result is ignored for flow control.
func (r *Runner) saveTextAnswer(ctx context.Context, questionID, text string) {
	sessionID := r.session.ID
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)

	r.saves.Add(1)
	go func() {
		defer r.saves.Done()
		defer cancel()

		begin := time.Now()
		err := r.cfg.Backend.SaveAnswer(saveCtx, sessionID, questionID, text)
		r.metrics.SaveDuration.Record(saveCtx, time.Since(begin).Seconds())

		status := "ok"
		if err != nil {
			status = "error"
			r.events.Notify(NewNotice(SeverityError, "Failed to save answer. Please try again."))
			slog.Warn("session: save answer failed", "question_id", questionID, "err", err)
		}
		r.metrics.AnswerSaves.Add(saveCtx, 1, metric.WithAttributes(
			attribute.String("kind", "text"),
			attribute.String("status", status),
		))
	}()
}

// onExpire is the timer's expiry callback. It forces the Submitting
// transition from wherever the session currently is; any in-flight save
// keeps running but its result no longer steers the flow.
func (r *Runner) onExpire() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.state != StateInProgress {
		return
	}

	ctx := context.Background()
	r.metrics.TimerExpiries.Add(ctx, 1)
	slog.Info("session timer expired, forcing submission", "session_id", r.session.ID)

	r.captureCurrent(ctx)
	r.finish(ctx, ReasonTimerExpired, "expiry")
}

// finish runs the Submitting → Done leg exactly once. Manual submission and
// forced expiry both land here, serialized by r.mu and guarded by the state
// check in the callers, so the completion callback fires exactly once.
func (r *Runner) finish(ctx context.Context, reason Reason, trigger string) {
	r.state = StateSubmitting
	r.events.StateChanged(StateSubmitting, reason)
	r.timer.Stop()

	// A still-active recording (expiry mid-question) was already stopped by
	// captureCurrent; this is the belt for abnormal paths.
	if r.recording != nil {
		if _, err := r.cfg.Recorder.Stop(r.recording); err != nil {
			slog.Warn("session: recorder stop during submit failed", "err", err)
		}
		r.recording = nil
	}

	answers := r.store.Drain()

	begin := time.Now()
	err := r.cfg.Backend.Submit(ctx, r.session.ID, answers)
	r.metrics.SubmitDuration.Record(ctx, time.Since(begin).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
		// Surfaced, not retried: the backend reconciles missing answers,
		// and the user must not be stranded on this screen.
		r.events.Notify(NewNotice(SeverityError, "Error submitting answers: "+err.Error()))
		slog.Error("session: submit failed", "session_id", r.session.ID, "err", err)
	} else {
		r.store.Clear()
	}
	r.metrics.Submissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("trigger", trigger),
	))

	if r.handle != nil {
		if relErr := r.cfg.Gateway.Release(r.handle); relErr != nil {
			slog.Warn("session: release on completion failed", "err", relErr)
		}
		r.handle = nil
		r.metrics.ActiveCaptures.Add(ctx, -1)
	}

	r.state = StateDone
	r.metrics.ActiveSessions.Add(ctx, -1)
	if err != nil {
		r.events.StateChanged(StateDone, ReasonSubmitFailed)
	} else {
		r.events.StateChanged(StateDone, ReasonSubmitted)
	}

	if r.cfg.OnComplete != nil {
		r.completeOnce.Do(r.cfg.OnComplete)
	}
	slog.Info("session finished", "session_id", r.session.ID, "trigger", trigger, "submit_status", status)
}
