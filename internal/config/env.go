package config

import (
	"strconv"
	"strings"
	"time"
)

// Environment variables that override file settings.
const (
	EnvCompress          = "KEYMACRO_COMPRESS"
	EnvSlowPlayback      = "KEYMACRO_SLOW_PLAYBACK"
	EnvSlowPlaybackDelay = "KEYMACRO_SLOW_PLAYBACK_DELAY_MS"
	EnvStore             = "KEYMACRO_STORE"
	EnvStorageKey        = "KEYMACRO_STORAGE_KEY"
	EnvLogLevel          = "KEYMACRO_LOG_LEVEL"
)

// LookupFunc looks up an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv applies environment overrides to s.
// An empty value counts as set for strings and is an error for flags and numbers.
func ApplyEnv(s *Settings, lookup LookupFunc) error {
	if v, ok := lookup(EnvCompress); ok {
		b, err := parseBool(EnvCompress, v)
		if err != nil {
			return err
		}
		s.CompressMacro = b
	}
	if v, ok := lookup(EnvSlowPlayback); ok {
		b, err := parseBool(EnvSlowPlayback, v)
		if err != nil {
			return err
		}
		s.SlowPlayback = b
	}
	if v, ok := lookup(EnvSlowPlaybackDelay); ok {
		d, err := parseMillis(EnvSlowPlaybackDelay, v)
		if err != nil {
			return err
		}
		s.SlowPlaybackDelay = d
	}
	if v, ok := lookup(EnvStore); ok {
		s.StoragePath = resolvePath(v, "")
	}
	if v, ok := lookup(EnvStorageKey); ok {
		s.StorageKey = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		s.LogLevel = v
	}
	return nil
}

// parseBool accepts the spellings true/yes/on/1 and false/no/off/0.
func parseBool(name, s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	default:
		return false, &ParseError{Path: name, Message: "expected a boolean, got " + strconv.Quote(s)}
	}
}

// parseMillis accepts a whole number of milliseconds or a Go duration string.
func parseMillis(name, s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	return 0, &ParseError{Path: name, Message: "expected milliseconds or a duration, got " + strconv.Quote(s)}
}
