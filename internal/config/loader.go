package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/intervo-ai/intervo/internal/session"
)

// Defaults applied by [Validate] for fields left empty.
const (
	DefaultListenAddr  = "127.0.0.1:8090"
	DefaultCaptureCmd  = "ffmpeg"
	DefaultVideoFormat = "v4l2"
	DefaultAudioFormat = "pulse"
	DefaultMimeType    = "video/webm"
)

// resolutionRe matches capture resolutions like "1280x720".
var resolutionRe = regexp.MustCompile(`^[0-9]+x[0-9]+$`)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills in defaults and checks that cfg contains a coherent set of
// values. It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Backend
	if cfg.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	} else if u, err := url.Parse(cfg.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.base_url %q is not an absolute URL", cfg.Backend.BaseURL))
	}
	if cfg.Backend.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("backend.timeout_seconds %d must not be negative", cfg.Backend.TimeoutSeconds))
	}

	// Capture
	if cfg.Capture.Command == "" {
		cfg.Capture.Command = DefaultCaptureCmd
	}
	if cfg.Capture.VideoFormat == "" {
		cfg.Capture.VideoFormat = DefaultVideoFormat
	}
	if cfg.Capture.AudioFormat == "" {
		cfg.Capture.AudioFormat = DefaultAudioFormat
	}
	if cfg.Capture.MimeType == "" {
		cfg.Capture.MimeType = DefaultMimeType
	}
	switch cfg.Capture.MimeType {
	case "video/webm", "video/mp4":
	default:
		errs = append(errs, fmt.Errorf("capture.mime_type %q is unsupported; valid values: video/webm, video/mp4", cfg.Capture.MimeType))
	}
	if cfg.Capture.FrameSize != "" && !resolutionRe.MatchString(cfg.Capture.FrameSize) {
		errs = append(errs, fmt.Errorf("capture.frame_size %q is invalid; expected WIDTHxHEIGHT (e.g., 1280x720)", cfg.Capture.FrameSize))
	}
	if cfg.Capture.Mode == "" {
		cfg.Capture.Mode = session.CapturePersistent
	} else if !cfg.Capture.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("capture.mode %q is invalid; valid values: persistent, per_question", cfg.Capture.Mode))
	}

	return errors.Join(errs...)
}
