// Package mock provides in-memory mock implementations of the
// [capture.Driver] and [capture.Stream] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	stream := mock.NewStream([]byte("frame-data"))
//	driver := &mock.Driver{OpenResult: stream}
//	got, err := driver.Open(ctx, capture.DeviceConfig{})
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/intervo-ai/intervo/pkg/capture"
)

// ─── Driver ──────────────────────────────────────────────────────────────────

// Driver is a mock implementation of [capture.Driver].
// Set the exported Result fields before use; inspect the Call* fields after.
type Driver struct {
	mu sync.Mutex

	// OpenResult is returned by [Driver.Open] when OpenError is nil.
	// If both are nil, Open returns a fresh empty [Stream].
	OpenResult capture.Stream

	// OpenError is returned by [Driver.Open] when non-nil.
	OpenError error

	// CallCountOpen records how many times Open was called.
	CallCountOpen int

	// RecordedConfigs holds the configs passed to Open, in call order.
	RecordedConfigs []capture.DeviceConfig
}

// Open implements [capture.Driver].
func (d *Driver) Open(_ context.Context, cfg capture.DeviceConfig) (capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountOpen++
	d.RecordedConfigs = append(d.RecordedConfigs, cfg)
	if d.OpenError != nil {
		return nil, d.OpenError
	}
	if d.OpenResult != nil {
		return d.OpenResult, nil
	}
	return NewStream(nil), nil
}

// ─── Stream ──────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [capture.Stream]. Reads deliver the
// scripted payload in ChunkSize pieces; once it is exhausted, Read blocks
// until more data arrives via [Stream.Append] or Stop is called, mimicking a
// live device stream. After Stop, any remaining data is still served before
// Read reports io.EOF.
type Stream struct {
	mu   sync.Mutex
	cond *sync.Cond

	// ChunkSize bounds how many bytes a single Read returns. Zero means
	// "as much as fits in the caller's buffer".
	ChunkSize int

	// StopError is returned by [Stream.Stop].
	StopError error

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	data    []byte
	offset  int
	stopped bool
}

// NewStream creates a Stream that serves data and then blocks until more is
// appended or the stream is stopped.
func NewStream(data []byte) *Stream {
	s := &Stream{data: data}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Append adds more scripted payload, waking any blocked Read.
func (s *Stream) Append(data []byte) {
	s.mu.Lock()
	s.data = append(s.data, data...)
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Read implements [io.Reader].
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if remaining := len(s.data) - s.offset; remaining > 0 {
			n := len(p)
			if s.ChunkSize > 0 && n > s.ChunkSize {
				n = s.ChunkSize
			}
			if n > remaining {
				n = remaining
			}
			copy(p, s.data[s.offset:s.offset+n])
			s.offset += n
			return n, nil
		}
		if s.stopped {
			return 0, io.EOF
		}
		s.cond.Wait()
	}
}

// Close implements [io.Closer] by delegating to Stop.
func (s *Stream) Close() error {
	return s.Stop()
}

// Stop implements [capture.Stream]. Safe to call multiple times.
func (s *Stream) Stop() error {
	s.mu.Lock()
	s.CallCountStop++
	s.stopped = true
	err := s.StopError
	s.mu.Unlock()

	s.cond.Broadcast()
	return err
}

// Stopped reports whether Stop has been called at least once.
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountStop > 0
}
