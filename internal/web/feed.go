// Package web serves the runtime's local HTTP surface: the websocket event
// feed that UI clients subscribe to, the Prometheus /metrics endpoint, and
// health probes.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/intervo-ai/intervo/internal/bus"
	"github.com/intervo-ai/intervo/internal/observe"
	"github.com/intervo-ai/intervo/internal/session"
)

// clientBuffer is the per-subscriber event queue depth. Ticks arrive once per
// second, so a healthy client never comes close to filling it; a client that
// does is disconnected rather than allowed to stall the publisher.
const clientBuffer = 64

// FeedOption configures a [Feed].
type FeedOption func(*Feed)

// WithOriginPatterns sets the origins allowed to open feed connections.
// Defaults to same-origin only, per the websocket library.
func WithOriginPatterns(patterns []string) FeedOption {
	return func(f *Feed) {
		f.origins = patterns
	}
}

// WithFeedMetrics overrides the metrics instance (tests pass an isolated one).
func WithFeedMetrics(m *observe.Metrics) FeedOption {
	return func(f *Feed) {
		f.metrics = m
	}
}

// Feed streams session events to websocket clients. Each connection gets its
// own subscription on the event bus; the feed additionally remembers the
// latest state and question events so that late joiners render the current
// screen immediately instead of waiting for the next transition.
type Feed struct {
	events  *bus.Bus[session.Event]
	metrics *observe.Metrics
	origins []string

	mu           sync.Mutex
	lastState    *session.Event
	lastQuestion *session.Event
	lastTick     *session.Event

	unsubscribe func()
}

// NewFeed creates a Feed on the given event bus.
func NewFeed(events *bus.Bus[session.Event], opts ...FeedOption) *Feed {
	f := &Feed{events: events}
	for _, opt := range opts {
		opt(f)
	}
	if f.metrics == nil {
		f.metrics = observe.DefaultMetrics()
	}
	f.unsubscribe = events.Subscribe(f.remember)
	return f
}

// Close drops the snapshot subscription. Connected clients are closed by the
// surrounding HTTP server shutdown.
func (f *Feed) Close() {
	if f.unsubscribe != nil {
		f.unsubscribe()
	}
}

// remember keeps the newest event of each replayable kind.
func (f *Feed) remember(ev session.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch ev.Type {
	case session.EventState:
		f.lastState = &ev
	case session.EventQuestion:
		f.lastQuestion = &ev
	case session.EventTick:
		f.lastTick = &ev
	}
}

// snapshot returns the replay events for a new subscriber, in display order:
// state first, then the current question, then the clock.
func (f *Feed) snapshot() []session.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	var evs []session.Event
	for _, ev := range []*session.Event{f.lastState, f.lastQuestion, f.lastTick} {
		if ev != nil {
			evs = append(evs, *ev)
		}
	}
	return evs
}

// ServeHTTP upgrades the request to a websocket and streams events until the
// client disconnects or falls too far behind.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: f.origins,
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("feed: websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "feed closed")

	f.metrics.FeedClients.Add(r.Context(), 1)
	defer f.metrics.FeedClients.Add(context.WithoutCancel(r.Context()), -1)

	// The feed is one-way. CloseRead discards client frames and cancels the
	// returned context when the connection drops.
	ctx := conn.CloseRead(r.Context())

	queue := make(chan session.Event, clientBuffer)
	lagged := make(chan struct{})
	var lagOnce sync.Once
	cancel := f.events.Subscribe(func(ev session.Event) {
		select {
		case queue <- ev:
		default:
			lagOnce.Do(func() { close(lagged) })
		}
	})
	defer cancel()

	for _, ev := range f.snapshot() {
		if err := writeEvent(ctx, conn, ev); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-lagged:
			observe.Logger(ctx).Warn("feed: dropping slow subscriber")
			conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
			return
		case ev := <-queue:
			if err := writeEvent(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}

// writeEvent sends one event as a JSON text frame.
func writeEvent(ctx context.Context, conn *websocket.Conn, ev session.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
