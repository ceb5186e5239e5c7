// Package capture defines the interfaces and types for camera+microphone
// device acquisition within Intervo.
//
// The two primary abstractions are:
//
//   - [Driver] — opens the capture device and returns a [Stream].
//   - [Stream] — a live containerized media byte stream from the device,
//     valid until [Stream.Stop] is called.
//
// Implementations of these interfaces are provided by platform-specific
// adapter packages (e.g., capture/ffmpeg). The interfaces are intentionally
// narrow to keep the session runtime decoupled from how the host actually
// reaches the hardware.
//
// This package lives under pkg/ because external code (alternative capture
// adapters) is expected to implement [Driver] and [Stream].
package capture

import (
	"context"
	"io"
)

// DeviceConfig describes how the camera+microphone should be captured.
type DeviceConfig struct {
	// VideoDevice is the platform device identifier (e.g. "/dev/video0").
	VideoDevice string

	// AudioDevice is the platform audio source (e.g. "default").
	AudioDevice string

	// VideoFormat is the platform input format (e.g. "v4l2", "avfoundation").
	VideoFormat string

	// AudioFormat is the platform audio input format (e.g. "pulse", "alsa").
	AudioFormat string

	// FrameSize is the requested capture resolution (e.g. "1280x720").
	FrameSize string

	// MimeType is the container format the stream must deliver. The same
	// value is stamped on finalized clips so producer and backend decoder
	// agree on one format.
	MimeType string
}

// Stream is a live capture stream from the device.
//
// Reads deliver containerized media bytes in arrival order. Stop ends the
// capture and releases the underlying hardware; it must be idempotent —
// calling Stop on an already-stopped stream is a no-op. Close is an alias
// for Stop so a Stream can be used wherever an [io.ReadCloser] is expected.
type Stream interface {
	io.ReadCloser
	Stop() error
}

// Driver opens capture device streams.
//
// Open must fail rather than block indefinitely when the device is absent
// or access is denied; the returned error is classified by the gateway into
// its user-facing taxonomy. Implementations must be safe for concurrent use,
// but callers are expected to hold at most one open Stream at a time.
type Driver interface {
	Open(ctx context.Context, cfg DeviceConfig) (Stream, error)
}
