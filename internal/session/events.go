// Package session implements the interview session runtime: the question
// sequencer, the countdown timer, the answer store, and the runner state
// machine that composes them with the media gateway and the backend client.
package session

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/intervo-ai/intervo/internal/bus"
	"github.com/intervo-ai/intervo/internal/interview"
)

// State models the runner lifecycle.
type State string

const (
	StateInitializing State = "initializing"
	StateDeviceCheck  State = "device_check"
	StateInProgress   State = "in_progress"
	StateSubmitting   State = "submitting"
	StateDone         State = "done"
)

// Reason provides a structured reason for state transitions.
type Reason string

const (
	ReasonSessionLoaded Reason = "session_loaded"
	ReasonDeviceGranted Reason = "device_granted"
	ReasonAdvanced      Reason = "advanced"
	ReasonLastQuestion  Reason = "last_question"
	ReasonTimerExpired  Reason = "timer_expired"
	ReasonSubmitted     Reason = "submitted"
	ReasonSubmitFailed  Reason = "submit_failed"
	ReasonRunnerClosed  Reason = "runner_closed"
)

// Severity grades a [Notice].
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Notice is a non-blocking user-facing notification. It is the runtime's
// replacement for a toast: surfaced, never fatal, never blocking the flow.
type Notice struct {
	ID       string   `json:"id"`
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

// NewNotice creates a Notice with a fresh ID.
func NewNotice(severity Severity, text string) Notice {
	return Notice{ID: uuid.NewString(), Severity: severity, Text: text}
}

// EventSink receives runtime events for display. Implementations must not
// block: events are delivered synchronously from the runner and the timer
// loop.
type EventSink interface {
	// StateChanged reports a runner state transition.
	StateChanged(state State, reason Reason)

	// QuestionChanged reports that a new question became current.
	// index is zero-based; total is the question count.
	QuestionChanged(index, total int, q interview.Question)

	// TimerTick reports the remaining session seconds, once per second.
	TimerTick(remainingSeconds int)

	// Notify surfaces a non-blocking notification.
	Notify(n Notice)
}

// EventType tags the members of the [Event] union.
type EventType string

const (
	EventState    EventType = "state"
	EventQuestion EventType = "question"
	EventTick     EventType = "tick"
	EventNotice   EventType = "notice"
)

// Event is the wire form of a runtime event, published on the session bus
// and forwarded verbatim to feed subscribers. The numeric fields are always
// serialized: zero is a legitimate value for the first question's index and
// for the final tick, and strict clients must be able to read it.
type Event struct {
	Type      EventType           `json:"type"`
	State     State               `json:"state,omitempty"`
	Reason    Reason              `json:"reason,omitempty"`
	Index     int                 `json:"index"`
	Total     int                 `json:"total"`
	Question  *interview.Question `json:"question,omitempty"`
	Remaining int                 `json:"remainingSeconds"`
	Notice    *Notice             `json:"notice,omitempty"`
}

// ─── Sinks ───────────────────────────────────────────────────────────────────

// SlogSink logs every event through slog. Useful as a default sink and in
// headless runs.
type SlogSink struct{}

func (SlogSink) StateChanged(state State, reason Reason) {
	slog.Info("session state changed", "state", string(state), "reason", string(reason))
}

func (SlogSink) QuestionChanged(index, total int, q interview.Question) {
	slog.Info("question changed", "index", index, "total", total, "question_id", q.ID, "type", string(q.Type))
}

func (SlogSink) TimerTick(remainingSeconds int) {
	slog.Debug("timer tick", "remaining_seconds", remainingSeconds)
}

func (SlogSink) Notify(n Notice) {
	switch n.Severity {
	case SeverityError:
		slog.Error("session notice", "notice_id", n.ID, "text", n.Text)
	case SeverityWarn:
		slog.Warn("session notice", "notice_id", n.ID, "text", n.Text)
	default:
		slog.Info("session notice", "notice_id", n.ID, "text", n.Text)
	}
}

// BusSink publishes events onto a [bus.Bus] so that decoupled consumers
// (e.g. the web feed) can observe the session without the runner knowing
// about them.
type BusSink struct {
	Bus *bus.Bus[Event]
}

func (s BusSink) StateChanged(state State, reason Reason) {
	s.Bus.Publish(Event{Type: EventState, State: state, Reason: reason})
}

func (s BusSink) QuestionChanged(index, total int, q interview.Question) {
	q2 := q
	s.Bus.Publish(Event{Type: EventQuestion, Index: index, Total: total, Question: &q2})
}

func (s BusSink) TimerTick(remainingSeconds int) {
	s.Bus.Publish(Event{Type: EventTick, Remaining: remainingSeconds})
}

func (s BusSink) Notify(n Notice) {
	n2 := n
	s.Bus.Publish(Event{Type: EventNotice, Notice: &n2})
}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) StateChanged(state State, reason Reason) {
	for _, s := range m {
		s.StateChanged(state, reason)
	}
}

func (m MultiSink) QuestionChanged(index, total int, q interview.Question) {
	for _, s := range m {
		s.QuestionChanged(index, total, q)
	}
}

func (m MultiSink) TimerTick(remainingSeconds int) {
	for _, s := range m {
		s.TimerTick(remainingSeconds)
	}
}

func (m MultiSink) Notify(n Notice) {
	for _, s := range m {
		s.Notify(n)
	}
}
