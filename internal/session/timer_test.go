package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fastTick keeps timer tests well under a second.
const fastTick = 2 * time.Millisecond

func TestTimer_CountsDownAndExpiresOnce(t *testing.T) {
	t.Parallel()

	timer := NewTimer(WithTickInterval(fastTick))

	var mu sync.Mutex
	var ticks []int
	var expiries atomic.Int32
	done := make(chan struct{})

	timer.Start(3,
		func(remaining int) {
			mu.Lock()
			ticks = append(ticks, remaining)
			mu.Unlock()
		},
		func() {
			expiries.Add(1)
			close(done)
		},
	)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not expire")
	}

	if got := expiries.Load(); got != 1 {
		t.Errorf("expiry callbacks = %d, want 1", got)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []int{2, 1, 0}
	if len(ticks) != len(want) {
		t.Fatalf("ticks = %v, want %v", ticks, want)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Errorf("tick %d = %d, want %d", i, ticks[i], want[i])
		}
	}
	if timer.State() != TimerExpired {
		t.Errorf("State() = %q, want %q", timer.State(), TimerExpired)
	}
	if timer.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", timer.Remaining())
	}
}

func TestTimer_StopPreventsExpiry(t *testing.T) {
	t.Parallel()

	timer := NewTimer(WithTickInterval(fastTick))
	var expiries atomic.Int32

	timer.Start(5, nil, func() { expiries.Add(1) })
	timer.Stop()

	// Enough time for five ticks to have fired if Stop had not worked.
	time.Sleep(20 * fastTick)

	if got := expiries.Load(); got != 0 {
		t.Errorf("expiry callbacks after Stop = %d, want 0", got)
	}
}

func TestTimer_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	timer := NewTimer(WithTickInterval(fastTick))
	timer.Start(5, nil, nil)
	timer.Stop()
	timer.Stop()
	timer.Stop()
}

func TestTimer_NonPositiveTotalExpiresImmediately(t *testing.T) {
	t.Parallel()

	timer := NewTimer(WithTickInterval(fastTick))
	var expiries atomic.Int32
	done := make(chan struct{})

	timer.Start(0, nil, func() {
		expiries.Add(1)
		close(done)
	})

	// The timer is expired as soon as Start returns; the callback arrives
	// asynchronously.
	if timer.State() != TimerExpired {
		t.Errorf("State() = %q, want %q", timer.State(), TimerExpired)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry callback did not fire")
	}
	if got := expiries.Load(); got != 1 {
		t.Errorf("expiry callbacks = %d, want 1", got)
	}
}

func TestTimer_ImmediateExpiryDoesNotReenterCaller(t *testing.T) {
	t.Parallel()

	// A caller may hold its own lock across Start and take it again inside
	// the expiry callback; the asynchronous delivery must not deadlock.
	timer := NewTimer(WithTickInterval(fastTick))

	var mu sync.Mutex
	done := make(chan struct{})

	mu.Lock()
	timer.Start(0, nil, func() {
		mu.Lock()
		defer mu.Unlock()
		close(done)
	})
	mu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry callback deadlocked against the caller's lock")
	}
}

func TestTimer_StartIsOneShot(t *testing.T) {
	t.Parallel()

	timer := NewTimer(WithTickInterval(fastTick))
	var expiries atomic.Int32
	done := make(chan struct{})

	timer.Start(2, nil, func() {
		expiries.Add(1)
		close(done)
	})
	// Second start must not create a second tick source.
	timer.Start(100, nil, func() { expiries.Add(1) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not expire")
	}
	time.Sleep(10 * fastTick)

	if got := expiries.Load(); got != 1 {
		t.Errorf("expiry callbacks = %d, want 1", got)
	}
}
