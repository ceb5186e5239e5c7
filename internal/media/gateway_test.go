package media

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/intervo-ai/intervo/pkg/capture"
	capmock "github.com/intervo-ai/intervo/pkg/capture/mock"
)

func TestGateway_AcquireIsIdempotent(t *testing.T) {
	t.Parallel()

	driver := &capmock.Driver{}
	g := NewGateway(driver, capture.DeviceConfig{MimeType: "video/webm"})

	h1, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	h2, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}

	if h1 != h2 {
		t.Error("second Acquire returned a different handle")
	}
	if driver.CallCountOpen != 1 {
		t.Errorf("driver opens = %d, want 1", driver.CallCountOpen)
	}
	if !g.Active() {
		t.Error("Active() = false while a handle is live")
	}
	if err := g.Release(h1); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestGateway_ReleaseIsIdempotentAndNilSafe(t *testing.T) {
	t.Parallel()

	driver := &capmock.Driver{}
	g := NewGateway(driver, capture.DeviceConfig{})

	if err := g.Release(nil); err != nil {
		t.Errorf("Release(nil) = %v, want nil", err)
	}

	h, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := g.Release(h); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if g.Active() {
		t.Error("Active() = true after Release")
	}
	if err := g.Release(h); err != nil {
		t.Errorf("second Release = %v, want nil", err)
	}
}

func TestGateway_ReacquireAfterReleaseOpensAgain(t *testing.T) {
	t.Parallel()

	driver := &capmock.Driver{}
	g := NewGateway(driver, capture.DeviceConfig{})

	h1, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := g.Release(h1); err != nil {
		t.Fatalf("Release: %v", err)
	}

	h2, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if h1 == h2 {
		t.Error("reacquire returned the released handle")
	}
	if driver.CallCountOpen != 2 {
		t.Errorf("driver opens = %d, want 2", driver.CallCountOpen)
	}
	_ = g.Release(h2)
}

func TestGateway_ErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		openErr string
		want    error
	}{
		{"permission denied", "v4l2: permission denied", ErrPermissionDenied},
		{"not authorized", "capture not authorized by user", ErrPermissionDenied},
		{"no such device", "no such device: /dev/video0", ErrDeviceUnavailable},
		{"device busy", "device or resource busy", ErrDeviceUnavailable},
		{"device in use", "camera already in use", ErrDeviceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			driver := &capmock.Driver{OpenError: errors.New(tc.openErr)}
			g := NewGateway(driver, capture.DeviceConfig{})

			_, err := g.Acquire(context.Background())
			if !errors.Is(err, tc.want) {
				t.Errorf("Acquire err = %v, want %v", err, tc.want)
			}
			if g.Active() {
				t.Error("Active() = true after failed Acquire")
			}
		})
	}

	t.Run("unclassified", func(t *testing.T) {
		t.Parallel()

		driver := &capmock.Driver{OpenError: errors.New("something odd")}
		g := NewGateway(driver, capture.DeviceConfig{})

		_, err := g.Acquire(context.Background())
		if err == nil {
			t.Fatal("Acquire succeeded despite open error")
		}
		if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("unclassified error mapped to a sentinel: %v", err)
		}
	})
}

func TestGateway_PreviewTee(t *testing.T) {
	t.Parallel()

	stream := capmock.NewStream(nil)
	driver := &capmock.Driver{OpenResult: stream}
	g := NewGateway(driver, capture.DeviceConfig{})

	h, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	var preview bytes.Buffer
	h.AttachPreview(&preview)

	stream.Append([]byte("frame-1"))
	stream.Append([]byte("frame-2"))

	// Release stops the stream and waits for the pump to drain, so every
	// appended byte has passed through the tee by the time it returns.
	if err := g.Release(h); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if got := preview.String(); got != "frame-1frame-2" {
		t.Errorf("preview bytes = %q, want %q", got, "frame-1frame-2")
	}
}

func TestGateway_DefaultsMimeType(t *testing.T) {
	t.Parallel()

	g := NewGateway(&capmock.Driver{}, capture.DeviceConfig{})
	h, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer g.Release(h)

	if got := h.MimeType(); got != "video/webm" {
		t.Errorf("MimeType() = %q, want video/webm", got)
	}
	if h.ID() == "" {
		t.Error("handle ID is empty")
	}
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	if got := UserMessage(nil); got != "" {
		t.Errorf("UserMessage(nil) = %q, want empty", got)
	}
	if got := UserMessage(ErrPermissionDenied); got == genericDeviceMessage || got == "" {
		t.Errorf("UserMessage(ErrPermissionDenied) = %q, want a specific message", got)
	}
	if got := UserMessage(ErrDeviceUnavailable); got == genericDeviceMessage || got == "" {
		t.Errorf("UserMessage(ErrDeviceUnavailable) = %q, want a specific message", got)
	}
	if got := UserMessage(errors.New("mystery")); got != genericDeviceMessage {
		t.Errorf("UserMessage(unclassified) = %q, want the generic prompt", got)
	}
}
