// Package bus provides a small in-process publish/subscribe bus.
//
// It replaces ambient window-level event listeners with an explicit,
// injectable broadcast capability: producers publish values, subscribers
// register callbacks and receive every value published after they joined.
// Callbacks run synchronously on the publisher's goroutine, so a single
// producer's events are always observed in order.
package bus

import "sync"

// Bus broadcasts values of type T to all current subscribers.
// All methods are safe for concurrent use. Callbacks are invoked
// synchronously from Publish and must not block.
type Bus[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(T)
	closed bool
}

// New creates an empty Bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[int]func(T))}
}

// Subscribe registers fn to receive future events and returns a cancel
// function that removes the subscription. Cancel is idempotent.
func (b *Bus[T]) Subscribe(fn func(T)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers v to every current subscriber. Publishing on a closed
// bus is a no-op.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	fns := make([]func(T), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Close drops all subscriptions and rejects further publishes. Idempotent.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
}
