package config

import "slices"

// ConfigDiff describes what changed between two configs. Only the log level
// and the feed origin list can be applied to a running process; everything
// else needs a restart, which the watcher surfaces as a warning instead of
// silently ignoring the edit.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	OriginsChanged bool
	NewOrigins     []string

	// RestartRequired is true when the listen address, backend settings, or
	// capture settings changed.
	RestartRequired bool
}

// Empty reports whether the diff contains no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.OriginsChanged && !d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if !slices.Equal(old.Server.AllowedOrigins, new.Server.AllowedOrigins) {
		d.OriginsChanged = true
		d.NewOrigins = new.Server.AllowedOrigins
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Backend != new.Backend ||
		old.Capture != new.Capture {
		d.RestartRequired = true
	}

	return d
}
