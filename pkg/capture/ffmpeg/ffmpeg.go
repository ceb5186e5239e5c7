// Package ffmpeg provides an ffmpeg-backed capture driver. It spawns an
// ffmpeg process that reads the camera and microphone devices and emits a
// single containerized stream (WebM by default) on stdout. It implements
// the capture.Driver interface.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/intervo-ai/intervo/pkg/capture"
)

const (
	defaultVideoFormat = "v4l2"
	defaultVideoDevice = "/dev/video0"
	defaultAudioFormat = "pulse"
	defaultAudioDevice = "default"
	defaultFrameSize   = "1280x720"
	defaultMimeType    = "video/webm"

	// startupGrace is how long ffmpeg gets to fail fast (missing device,
	// permission error) before the stream is handed to the caller.
	startupGrace = 250 * time.Millisecond

	// stopTimeout bounds the wait for a graceful ffmpeg exit before SIGKILL.
	stopTimeout = 1200 * time.Millisecond
)

// Option is a functional option for configuring the Driver.
type Option func(*Driver)

// WithCommand overrides the ffmpeg executable name or path.
func WithCommand(command string) Option {
	return func(d *Driver) {
		d.command = command
	}
}

// Driver implements capture.Driver by running ffmpeg as a child process.
type Driver struct {
	command string
}

// New creates an ffmpeg Driver. With no options it expects "ffmpeg" on PATH.
func New(opts ...Option) *Driver {
	d := &Driver{command: "ffmpeg"}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open implements [capture.Driver]. It starts ffmpeg reading the configured
// camera and microphone and returns a stream of containerized media bytes.
func (d *Driver) Open(ctx context.Context, cfg capture.DeviceConfig) (capture.Stream, error) {
	applyDefaults(&cfg)

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.VideoFormat,
		"-video_size", cfg.FrameSize,
		"-i", cfg.VideoDevice,
		"-f", cfg.AudioFormat,
		"-i", cfg.AudioDevice,
	}
	args = append(args, containerArgs(cfg.MimeType)...)
	args = append(args, "-")

	cmd := exec.CommandContext(ctx, d.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: start %q: %w", d.command, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Give ffmpeg a moment to fail fast on a missing or busy device so the
	// caller sees a classifiable error instead of a dead stream.
	select {
	case err := <-waitErr:
		msg := strings.TrimSpace(stderr.String())
		if err != nil {
			return nil, fmt.Errorf("ffmpeg: exited before capture started: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("ffmpeg: exited before capture started: %s", msg)
	case <-time.After(startupGrace):
	}

	return &stream{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

// applyDefaults fills zero-valued fields of cfg in place.
func applyDefaults(cfg *capture.DeviceConfig) {
	if cfg.VideoFormat == "" {
		cfg.VideoFormat = defaultVideoFormat
	}
	if cfg.VideoDevice == "" {
		cfg.VideoDevice = defaultVideoDevice
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = defaultAudioFormat
	}
	if cfg.AudioDevice == "" {
		cfg.AudioDevice = defaultAudioDevice
	}
	if cfg.FrameSize == "" {
		cfg.FrameSize = defaultFrameSize
	}
	if cfg.MimeType == "" {
		cfg.MimeType = defaultMimeType
	}
}

// containerArgs maps a mime type to ffmpeg encoder/muxer arguments.
// Unknown types fall back to the WebM defaults.
func containerArgs(mimeType string) []string {
	switch mimeType {
	case "video/mp4":
		return []string{
			"-c:v", "libx264", "-preset", "veryfast",
			"-c:a", "aac",
			"-f", "mp4", "-movflags", "frag_keyframe+empty_moov",
		}
	default:
		return []string{
			"-c:v", "libvpx", "-deadline", "realtime", "-cpu-used", "8",
			"-c:a", "libopus",
			"-f", "webm",
		}
	}
}

// stream wraps the running ffmpeg process as a capture.Stream.
type stream struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *stream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *stream) Close() error {
	return s.Stop()
}

// Stop interrupts ffmpeg, waits for it to exit, and closes the pipe.
// Safe to call multiple times; later calls return the first result.
func (s *stream) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeExit(err)
			}
		case <-time.After(stopTimeout):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeExit(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})

	return s.stopErr
}

// normalizeExit treats a non-zero exit after an interrupt as a clean stop.
func normalizeExit(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
