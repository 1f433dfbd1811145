// Package config loads keymacro settings.
//
// Settings come from three sources, in increasing precedence:
//
//  1. Built-in defaults (Default)
//  2. A TOML file
//  3. KEYMACRO_* environment variables
//
// A typical file:
//
//	[macros]
//	compress = true
//	slow_playback = true
//	slow_playback_delay_ms = 150
//
//	[storage]
//	path = "~/.config/keymacro/store.json"
//	key = "keymacro.macros"
//
//	[logging]
//	level = "debug"
//
// Watcher reloads the file when it changes so that a running editor picks
// up new settings without a restart.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/keymacro/internal/logging"
)

// Default values.
const (
	DefaultStorageKey = "keymacro.macros"
	DefaultLogLevel   = "info"
	appDir            = "keymacro"
)

// Errors returned by configuration operations.
var (
	// ErrValidationFailed indicates a setting has an invalid value.
	ErrValidationFailed = errors.New("validation failed")
)

// Settings are the user settings.
type Settings struct {
	CompressMacro     bool          // Coalesce actions when a recording stops
	SlowPlayback      bool          // Pause between replayed actions
	SlowPlaybackDelay time.Duration // Pause length
	StoragePath       string        // File the macro store document lives in
	StorageKey        string        // Key the macro collection is stored under
	LogLevel          string        // debug, info, warn or error
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		StoragePath: DefaultStoragePath(),
		StorageKey:  DefaultStorageKey,
		LogLevel:    DefaultLogLevel,
	}
}

// DefaultDir returns the per-user configuration directory for keymacro.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "." + appDir
	}
	return filepath.Join(dir, appDir)
}

// DefaultStoragePath returns the default macro store document path.
func DefaultStoragePath() string {
	return filepath.Join(DefaultDir(), "store.json")
}

// DefaultConfigPath returns the default settings file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), "config.toml")
}

// Validate checks every setting and returns the first problem found.
func (s Settings) Validate() error {
	if s.SlowPlaybackDelay < 0 {
		return &ValidationError{Path: "macros.slow_playback_delay_ms", Value: s.SlowPlaybackDelay.Milliseconds(), Message: "must not be negative"}
	}
	if s.StoragePath == "" {
		return &ValidationError{Path: "storage.path", Value: s.StoragePath, Message: "must not be empty"}
	}
	if s.StorageKey == "" {
		return &ValidationError{Path: "storage.key", Value: s.StorageKey, Message: "must not be empty"}
	}
	if _, ok := logging.ParseLevel(s.LogLevel); !ok {
		return &ValidationError{Path: "logging.level", Value: s.LogLevel, Message: "must be one of debug, info, warn, error"}
	}
	return nil
}

// Level returns the parsed log level.
func (s Settings) Level() logging.Level {
	level, _ := logging.ParseLevel(s.LogLevel)
	return level
}

// ValidationError describes a setting with an invalid value.
type ValidationError struct {
	Path    string // Setting path, e.g. "logging.level"
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (value: %v)", e.Path, e.Message, e.Value)
}

// Is reports ErrValidationFailed for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// ParseError represents an error while parsing a configuration source.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load builds settings from the defaults, the TOML file at path (skipped if
// path is empty or the file doesn't exist) and the environment, then
// validates the result.
func Load(path string) (Settings, error) {
	s := Default()
	if path != "" {
		if err := LoadFile(path, &s); err != nil {
			return Settings{}, err
		}
	}
	if err := ApplyEnv(&s, os.LookupEnv); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
