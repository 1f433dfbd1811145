package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileSettings mirrors the TOML layout. Pointer fields distinguish an absent
// key from a zero value so that only keys present in the file override.
type fileSettings struct {
	Macros struct {
		Compress            *bool  `toml:"compress"`
		SlowPlayback        *bool  `toml:"slow_playback"`
		SlowPlaybackDelayMS *int64 `toml:"slow_playback_delay_ms"`
	} `toml:"macros"`
	Storage struct {
		Path *string `toml:"path"`
		Key  *string `toml:"key"`
	} `toml:"storage"`
	Logging struct {
		Level *string `toml:"level"`
	} `toml:"logging"`
}

// LoadFile applies the TOML file at path on top of s.
// A missing file is not an error and leaves s unchanged.
func LoadFile(path string, s *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return parse(path, data, s)
}

// parse decodes TOML data and applies it to s. Unknown keys are rejected.
func parse(source string, data []byte, s *Settings) error {
	var f fileSettings
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}

		var derr *toml.DecodeError
		var serr *toml.StrictMissingError
		switch {
		case errors.As(err, &derr):
			perr.Line, perr.Column = derr.Position()
		case errors.As(err, &serr):
			perr.Message = "unknown key " + strings.Join(unknownKeys(serr), ", ")
		}
		return perr
	}

	if v := f.Macros.Compress; v != nil {
		s.CompressMacro = *v
	}
	if v := f.Macros.SlowPlayback; v != nil {
		s.SlowPlayback = *v
	}
	if v := f.Macros.SlowPlaybackDelayMS; v != nil {
		s.SlowPlaybackDelay = time.Duration(*v) * time.Millisecond
	}
	if v := f.Storage.Path; v != nil {
		s.StoragePath = resolvePath(*v, filepath.Dir(source))
	}
	if v := f.Storage.Key; v != nil {
		s.StorageKey = *v
	}
	if v := f.Logging.Level; v != nil {
		s.LogLevel = *v
	}
	return nil
}

func unknownKeys(serr *toml.StrictMissingError) []string {
	keys := make([]string, 0, len(serr.Errors))
	for _, e := range serr.Errors {
		keys = append(keys, strings.Join(e.Key(), "."))
	}
	return keys
}

// resolvePath expands a leading "~/" and makes relative paths relative to base.
func resolvePath(path, base string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	if !filepath.IsAbs(path) && base != "" {
		path = filepath.Join(base, path)
	}
	return path
}

// Encode renders s as a TOML document in the layout LoadFile reads.
func Encode(s Settings) ([]byte, error) {
	delay := s.SlowPlaybackDelay.Milliseconds()
	var f fileSettings
	f.Macros.Compress = &s.CompressMacro
	f.Macros.SlowPlayback = &s.SlowPlayback
	f.Macros.SlowPlaybackDelayMS = &delay
	f.Storage.Path = &s.StoragePath
	f.Storage.Key = &s.StorageKey
	f.Logging.Level = &s.LogLevel
	return toml.Marshal(f)
}
