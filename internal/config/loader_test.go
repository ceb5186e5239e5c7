package config

import (
	"strings"
	"testing"

	"github.com/intervo-ai/intervo/internal/session"
)

const validYAML = `
server:
  listen_addr: "127.0.0.1:9000"
  log_level: debug
  allowed_origins:
    - "localhost:*"
backend:
  base_url: "https://api.example.com"
  timeout_seconds: 30
capture:
  command: ffmpeg
  video_device: /dev/video0
  audio_device: default
  frame_size: 1280x720
  mime_type: video/webm
  mode: per_question
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1:9000", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Backend.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", cfg.Backend.TimeoutSeconds)
	}
	if cfg.Capture.Mode != session.CapturePerQuestion {
		t.Errorf("Mode = %q, want per_question", cfg.Capture.Mode)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(`
backend:
  base_url: "https://api.example.com"
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, DefaultListenAddr)
	}
	if cfg.Capture.Command != DefaultCaptureCmd {
		t.Errorf("Command = %q, want %q", cfg.Capture.Command, DefaultCaptureCmd)
	}
	if cfg.Capture.VideoFormat != DefaultVideoFormat {
		t.Errorf("VideoFormat = %q, want %q", cfg.Capture.VideoFormat, DefaultVideoFormat)
	}
	if cfg.Capture.AudioFormat != DefaultAudioFormat {
		t.Errorf("AudioFormat = %q, want %q", cfg.Capture.AudioFormat, DefaultAudioFormat)
	}
	if cfg.Capture.MimeType != DefaultMimeType {
		t.Errorf("MimeType = %q, want %q", cfg.Capture.MimeType, DefaultMimeType)
	}
	if cfg.Capture.Mode != session.CapturePersistent {
		t.Errorf("Mode = %q, want persistent", cfg.Capture.Mode)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(`
backend:
  base_url: "https://api.example.com"
  basse_url_typo: "oops"
`))
	if err == nil {
		t.Error("unknown field was accepted")
	}
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing base url",
			yaml: `server: {listen_addr: "127.0.0.1:9000"}`,
			want: "backend.base_url is required",
		},
		{
			name: "relative base url",
			yaml: `backend: {base_url: "api.example.com/v1"}`,
			want: "not an absolute URL",
		},
		{
			name: "bad log level",
			yaml: "server: {log_level: loud}\nbackend: {base_url: \"https://api.example.com\"}",
			want: "server.log_level",
		},
		{
			name: "bad mime type",
			yaml: "backend: {base_url: \"https://api.example.com\"}\ncapture: {mime_type: \"video/avi\"}",
			want: "capture.mime_type",
		},
		{
			name: "bad frame size",
			yaml: "backend: {base_url: \"https://api.example.com\"}\ncapture: {frame_size: \"huge\"}",
			want: "capture.frame_size",
		},
		{
			name: "bad capture mode",
			yaml: "backend: {base_url: \"https://api.example.com\"}\ncapture: {mode: \"sometimes\"}",
			want: "capture.mode",
		},
		{
			name: "negative timeout",
			yaml: `backend: {base_url: "https://api.example.com", timeout_seconds: -5}`,
			want: "backend.timeout_seconds",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("invalid config was accepted")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(`
server:
  log_level: loud
capture:
  mime_type: video/avi
`))
	if err == nil {
		t.Fatal("invalid config was accepted")
	}
	for _, want := range []string{"server.log_level", "backend.base_url", "capture.mime_type"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q is missing %q", err, want)
		}
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []LogLevel{LogDebug, LogInfo, LogWarn, LogError} {
		if !l.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", l)
		}
	}
	if LogLevel("loud").IsValid() {
		t.Error(`IsValid("loud") = true, want false`)
	}
}
