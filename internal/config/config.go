// Package config provides the configuration schema and loader for the
// Intervo interview runtime.
package config

import (
	"github.com/intervo-ai/intervo/internal/session"
)

// LogLevel controls log verbosity for the runtime.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the runtime.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Capture CaptureConfig `yaml:"capture"`
}

// ServerConfig holds network and logging settings for the local HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the local server listens on. The default
	// binds to loopback only; the feed is meant for a UI on the same machine.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable via [Watcher].
	LogLevel LogLevel `yaml:"log_level"`

	// AllowedOrigins lists origin patterns permitted to open websocket feed
	// connections. Empty means same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// BackendConfig points the runtime at the assessment backend.
type BackendConfig struct {
	// BaseURL is the backend's API root (e.g., "https://api.example.com").
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds a single backend request, including multipart
	// submissions. Zero means the client default.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// CaptureConfig describes the local camera and microphone capture setup.
type CaptureConfig struct {
	// Command is the capture binary to invoke. Default: "ffmpeg".
	Command string `yaml:"command"`

	// VideoDevice is the camera device path (e.g., "/dev/video0").
	VideoDevice string `yaml:"video_device"`

	// AudioDevice is the microphone source name (e.g., "default").
	AudioDevice string `yaml:"audio_device"`

	// VideoFormat is the capture input format for the camera. Default: "v4l2".
	VideoFormat string `yaml:"video_format"`

	// AudioFormat is the capture input format for the microphone.
	// Default: "pulse".
	AudioFormat string `yaml:"audio_format"`

	// FrameSize is the requested capture resolution (e.g., "1280x720").
	FrameSize string `yaml:"frame_size"`

	// MimeType selects the recording container ("video/webm" or "video/mp4").
	MimeType string `yaml:"mime_type"`

	// Mode controls when the device is held: "persistent" keeps the camera
	// running for the whole session, "per_question" only during video
	// questions.
	Mode session.CaptureMode `yaml:"mode"`
}
