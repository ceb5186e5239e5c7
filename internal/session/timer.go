package session

import (
	"sync"
	"time"
)

// TimerState models the countdown lifecycle.
type TimerState string

const (
	TimerIdle    TimerState = "idle"
	TimerRunning TimerState = "running"
	TimerExpired TimerState = "expired"
)

// Timer is the single countdown clock for a session. It starts once the
// total is known, decrements once per second, and on reaching zero fires
// the expiry callback exactly once. Expired is terminal.
//
// Exactly one tick source exists per Timer: Start is one-shot, and Stop
// clears the registration so no late callback fires after the session
// logically ended. All exported methods are safe for concurrent use.
type Timer struct {
	interval time.Duration

	mu        sync.Mutex
	state     TimerState
	remaining int
	stop      chan struct{}
	stopped   bool
}

// TimerOption configures a [Timer] during construction.
type TimerOption func(*Timer)

// WithTickInterval overrides the 1-second tick interval. Intended for tests
// that need a fast clock.
func WithTickInterval(d time.Duration) TimerOption {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// NewTimer creates an idle Timer.
func NewTimer(opts ...TimerOption) *Timer {
	t := &Timer{
		interval: time.Second,
		state:    TimerIdle,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start transitions the timer to running with totalSeconds on the clock.
// onTick (optional) is invoked after every decrement with the remaining
// seconds; onExpire is invoked exactly once when the clock reaches zero.
// Starting twice is a no-op, as is starting a stopped or expired timer.
// A non-positive total expires immediately; the callback still runs on its
// own goroutine, like tick-path expiry, so callers may hold locks across
// Start.
func (t *Timer) Start(totalSeconds int, onTick func(int), onExpire func()) {
	t.mu.Lock()
	if t.state != TimerIdle || t.stopped {
		t.mu.Unlock()
		return
	}
	if totalSeconds <= 0 {
		t.state = TimerExpired
		t.remaining = 0
		t.mu.Unlock()
		if onExpire != nil {
			go onExpire()
		}
		return
	}
	t.state = TimerRunning
	t.remaining = totalSeconds
	t.mu.Unlock()

	go t.run(onTick, onExpire)
}

// run is the single tick source. It exits when the clock hits zero or the
// timer is stopped.
func (t *Timer) run(onTick func(int), onExpire func()) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.mu.Lock()
			if t.stopped || t.state != TimerRunning {
				t.mu.Unlock()
				return
			}
			t.remaining--
			remaining := t.remaining
			expired := remaining <= 0
			if expired {
				t.remaining = 0
				t.state = TimerExpired
			}
			t.mu.Unlock()

			if onTick != nil {
				onTick(remaining)
			}
			if expired {
				if onExpire != nil {
					onExpire()
				}
				return
			}

		case <-t.stop:
			return
		}
	}
}

// Stop clears the tick registration. The expiry callback will not fire
// after Stop returns unless it was already in flight. Idempotent.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.stop)
}

// Remaining returns the seconds left on the clock.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// State returns the current timer state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
