// Package kvstore provides the key-value configuration stores that macros
// are persisted to. Values are opaque strings.
package kvstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrInvalidKey is returned for an empty key.
var ErrInvalidKey = errors.New("invalid key")

// Memory is an in-process store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get returns the value for key, or "" if it was never set.
func (m *Memory) Get(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

// Set stores value under key.
func (m *Memory) Set(key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// File stores values in a JSON object document on disk:
//
//	{"keymacro.macros": "[...]", "other.key": "..."}
//
// Each Get and Set takes a file lock next to the document, so several
// processes can share one file. Writes go to a temporary file that is then
// renamed over the document.
type File struct {
	path string
	lock *flock.Flock
}

// NewFile creates a store backed by the document at path.
// The document and its directory are created on the first Set.
func NewFile(path string) *File {
	return &File{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the document path.
func (f *File) Path() string {
	return f.path
}

// Get returns the value for key, or "" if the key or the document doesn't exist.
func (f *File) Get(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	if err := f.ensureDir(); err != nil {
		return "", err
	}
	if err := f.lock.RLock(); err != nil {
		return "", fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer f.lock.Unlock()

	data, err := f.read()
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(data, escapeKey(key)).String(), nil
}

// Set stores value under key, keeping every other key in the document.
func (f *File) Set(key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := f.ensureDir(); err != nil {
		return err
	}
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer f.lock.Unlock()

	data, err := f.read()
	if err != nil {
		return err
	}
	data, err = sjson.SetBytes(data, escapeKey(key), value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, f.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (f *File) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// read returns the document, or an empty object if it doesn't exist yet or
// is not a JSON object. A damaged document is replaced on the next Set.
func (f *File) read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []byte("{}"), nil
		}
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []byte("{}"), nil
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return []byte("{}"), nil
	}
	return data, nil
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
)

// escapeKey turns a literal key into a gjson/sjson path of one component.
func escapeKey(key string) string {
	return pathEscaper.Replace(key)
}
