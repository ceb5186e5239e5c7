// Package media owns the live capture resources of an interview session:
// the device gateway guarding exclusive camera+microphone ownership, and the
// recorder that turns a live handle into finalized clips.
//
// The gateway enforces the single-handle invariant: at most one live
// [Handle] exists at a time. Acquire is idempotent (a live handle is reused,
// never doubled) and Release is idempotent (releasing twice is a no-op).
// Every acquired handle must be released on every exit path; the session
// runner funnels all teardown through [Gateway.Release].
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/intervo-ai/intervo/pkg/capture"
)

var (
	// ErrPermissionDenied indicates the platform refused access to the
	// camera or microphone. Recoverable: the user may retry Acquire.
	ErrPermissionDenied = errors.New("media: camera/microphone access denied")

	// ErrDeviceUnavailable indicates the device is absent or busy.
	// Recoverable: the user may retry Acquire.
	ErrDeviceUnavailable = errors.New("media: capture device unavailable")
)

// genericDeviceMessage is shown when the platform error cannot be mapped to
// something more specific.
const genericDeviceMessage = "Cannot access camera/microphone. Please allow access permissions."

// UserMessage converts a gateway error into a user-facing message, falling
// back to a generic prompt for unclassified failures.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Camera/microphone access was denied. Please allow access and try again."
	case errors.Is(err, ErrDeviceUnavailable):
		return "No usable camera/microphone was found. Please check your devices and try again."
	default:
		return genericDeviceMessage
	}
}

// chunkBuffer is the capacity of the per-recording chunk channel. The pump
// never drops chunks; the buffer only decouples device reads from the
// collector goroutine.
const chunkBuffer = 64

// Handle represents exclusive ownership of the capture device. It is handed
// out by [Gateway.Acquire] and stays valid until [Gateway.Release].
type Handle struct {
	id       string
	mimeType string
	stream   capture.Stream

	mu       sync.Mutex
	preview  io.Writer
	consumer chan<- []byte
	gone     chan struct{}
	released bool

	pumpDone chan struct{}
	pumpErr  error
}

// ID returns the unique identifier of this handle.
func (h *Handle) ID() string { return h.id }

// MimeType returns the container format the handle's stream delivers.
func (h *Handle) MimeType() string { return h.mimeType }

// AttachPreview tees captured bytes into w for operator feedback. A nil w
// detaches the current sink. The sink can be re-attached at any time (e.g.
// after the display surface is recreated) without reacquiring the device.
func (h *Handle) AttachPreview(w io.Writer) {
	h.mu.Lock()
	h.preview = w
	h.mu.Unlock()
}

// attachConsumer registers ch as the exclusive chunk consumer. Fails when
// the handle is released or a consumer is already attached.
func (h *Handle) attachConsumer(ch chan<- []byte) (gone chan struct{}, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, fmt.Errorf("media: handle %s is released", h.id)
	}
	if h.consumer != nil {
		return nil, errors.New("media: handle already has a chunk consumer")
	}
	h.consumer = ch
	h.gone = make(chan struct{})
	return h.gone, nil
}

// detachConsumer removes the current consumer and unblocks any in-flight
// chunk delivery. Safe to call when no consumer is attached.
func (h *Handle) detachConsumer() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.consumer == nil {
		return
	}
	h.consumer = nil
	close(h.gone)
	h.gone = nil
}

// pump reads the device stream until it ends, teeing bytes to the preview
// sink and forwarding them to the attached consumer (if any).
func (h *Handle) pump() {
	defer close(h.pumpDone)

	buf := make([]byte, 32*1024)
	for {
		n, err := h.stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			h.deliver(chunk)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.mu.Lock()
				h.pumpErr = err
				h.mu.Unlock()
				slog.Warn("media: capture stream ended with error", "handle_id", h.id, "err", err)
			}
			return
		}
	}
}

// deliver forwards one chunk to the preview sink and the consumer.
func (h *Handle) deliver(chunk []byte) {
	h.mu.Lock()
	preview := h.preview
	consumer := h.consumer
	gone := h.gone
	h.mu.Unlock()

	if preview != nil {
		if _, err := preview.Write(chunk); err != nil {
			// A broken sink must not stall capture; drop it.
			h.mu.Lock()
			if h.preview == preview {
				h.preview = nil
			}
			h.mu.Unlock()
			slog.Debug("media: preview sink detached after write error", "handle_id", h.id, "err", err)
		}
	}

	if consumer != nil {
		select {
		case consumer <- chunk:
		case <-gone:
		}
	}
}

// release stops the underlying stream and waits for the pump to drain.
// Idempotent: later calls return the first result.
func (h *Handle) release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	h.mu.Unlock()

	h.detachConsumer()
	err := h.stream.Stop()
	<-h.pumpDone
	return err
}

// isReleased reports whether release has been called.
func (h *Handle) isReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Gateway guards exclusive access to the capture device. At most one live
// [Handle] exists at a time. All exported methods are safe for concurrent use.
type Gateway struct {
	driver capture.Driver
	cfg    capture.DeviceConfig

	mu      sync.Mutex
	current *Handle
}

// NewGateway creates a Gateway that opens devices through driver using cfg.
func NewGateway(driver capture.Driver, cfg capture.DeviceConfig) *Gateway {
	if cfg.MimeType == "" {
		cfg.MimeType = "video/webm"
	}
	return &Gateway{driver: driver, cfg: cfg}
}

// Acquire returns the live handle, opening the device on first use.
// If a handle from a prior call is still live it is reused — a second
// hardware stream is never opened. Errors are classified into
// [ErrPermissionDenied] / [ErrDeviceUnavailable] where possible and are
// always recoverable: the caller may simply retry.
func (g *Gateway) Acquire(ctx context.Context) (*Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current != nil && !g.current.isReleased() {
		return g.current, nil
	}

	stream, err := g.driver.Open(ctx, g.cfg)
	if err != nil {
		return nil, classify(err)
	}

	h := &Handle{
		id:       uuid.NewString(),
		mimeType: g.cfg.MimeType,
		stream:   stream,
		pumpDone: make(chan struct{}),
	}
	go h.pump()

	g.current = h
	slog.Info("media: capture device acquired", "handle_id", h.id, "mime_type", h.mimeType)
	return h, nil
}

// Release stops all underlying hardware tracks of h. Safe to call multiple
// times and with a nil handle; both are no-ops.
func (g *Gateway) Release(h *Handle) error {
	if h == nil {
		return nil
	}

	err := h.release()

	g.mu.Lock()
	if g.current == h {
		g.current = nil
	}
	g.mu.Unlock()

	if err != nil {
		slog.Warn("media: capture stream stop error", "handle_id", h.id, "err", err)
	} else {
		slog.Info("media: capture device released", "handle_id", h.id)
	}
	return err
}

// Active reports whether a live handle is currently held.
func (g *Gateway) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil && !g.current.isReleased()
}

// classify maps a driver error onto the gateway's error taxonomy, keeping
// the original error in the chain.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "operation not permitted"),
		strings.Contains(msg, "not authorized"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case strings.Contains(msg, "no such"),
		strings.Contains(msg, "not found"),
		strings.Contains(msg, "busy"),
		strings.Contains(msg, "in use"):
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	default:
		return fmt.Errorf("media: acquire capture device: %w", err)
	}
}
