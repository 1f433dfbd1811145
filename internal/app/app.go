// Package app wires settings, logging, persistence and the macro store
// together for the command-line tools and the terminal editor.
package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/keymacro/internal/config"
	"github.com/dshills/keymacro/internal/kvstore"
	"github.com/dshills/keymacro/internal/logging"
	"github.com/dshills/keymacro/internal/macro"
)

// Options configures the application.
type Options struct {
	// ConfigPath is the settings file. Defaults to config.DefaultConfigPath().
	ConfigPath string

	// StorePath overrides the storage.path setting.
	StorePath string

	// LogLevel overrides the logging.level setting.
	LogLevel string

	// LogOutput receives log lines. Defaults to stderr.
	LogOutput io.Writer

	// Watch reloads settings when the settings file changes.
	Watch bool
}

// App holds the components shared by every entry point.
type App struct {
	opts Options

	mu       sync.Mutex
	settings config.Settings
	closed   bool

	logger  *logging.Logger
	kv      *kvstore.File
	store   *macro.Store
	watcher *config.Watcher
}

// New loads settings and creates the store. The collection itself is read
// lazily on first use.
func New(opts Options) (*App, error) {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.DefaultConfigPath()
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	a := &App{opts: opts}

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}
	if settings, err = a.override(settings); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}
	a.settings = settings

	a.logger = logging.New(logging.Config{
		Level:  settings.Level(),
		Output: opts.LogOutput,
		Prefix: "keymacro",
	})

	a.kv = kvstore.NewFile(settings.StoragePath)
	a.store = macro.NewStore(a.kv,
		macro.WithStorageKey(settings.StorageKey),
		macro.WithSettings(MacroSettings(settings)),
		macro.WithLogger(a.logger),
	)

	if opts.Watch {
		w, err := config.NewWatcher(opts.ConfigPath, config.WithWatcherLogger(a.logger))
		if err != nil {
			return nil, &InitError{Component: "config watcher", Err: err}
		}
		w.OnChange(a.apply)
		a.watcher = w
	}

	a.logger.Debug("started: config=%s store=%s key=%s", opts.ConfigPath, settings.StoragePath, settings.StorageKey)
	return a, nil
}

// override applies the command-line overrides and validates the result.
func (a *App) override(s config.Settings) (config.Settings, error) {
	if a.opts.StorePath != "" {
		abs, err := filepath.Abs(a.opts.StorePath)
		if err != nil {
			return s, err
		}
		s.StoragePath = abs
	}
	if a.opts.LogLevel != "" {
		s.LogLevel = a.opts.LogLevel
	}
	return s, s.Validate()
}

// apply installs reloaded settings. The store location is fixed for the
// life of the process.
func (a *App) apply(s config.Settings) {
	s, err := a.override(s)
	if err != nil {
		a.logger.Warn("ignoring reloaded settings: %v", err)
		return
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	prev := a.settings
	moved := s.StoragePath != prev.StoragePath || s.StorageKey != prev.StorageKey
	s.StoragePath, s.StorageKey = prev.StoragePath, prev.StorageKey
	a.settings = s
	a.mu.Unlock()

	if moved {
		a.logger.Warn("storage settings changed; restart to apply")
	}
	a.logger.SetLevel(s.Level())
	a.store.ApplySettings(MacroSettings(s))
}

// MacroSettings extracts the settings the macro store consults.
func MacroSettings(s config.Settings) macro.Settings {
	return macro.Settings{
		CompressMacro:     s.CompressMacro,
		SlowPlayback:      s.SlowPlayback,
		SlowPlaybackDelay: s.SlowPlaybackDelay,
	}
}

// Store returns the macro store.
func (a *App) Store() *macro.Store {
	return a.store
}

// Logger returns the application logger.
func (a *App) Logger() *logging.Logger {
	return a.logger
}

// Settings returns the current settings.
func (a *App) Settings() config.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// ConfigPath returns the settings file path.
func (a *App) ConfigPath() string {
	return a.opts.ConfigPath
}

// Watcher returns the settings watcher, or nil if watching is disabled.
func (a *App) Watcher() *config.Watcher {
	return a.watcher
}

// Open loads a document and attaches the store to its buffer so edits can
// be recorded.
func (a *App) Open(path string) (*Document, error) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	doc, err := OpenDocument(path)
	if err != nil {
		return nil, err
	}
	doc.Buffer.SetObserver(a.store)
	a.logger.Debug("opened %s (%d characters)", doc.Path, doc.Buffer.Len())
	return doc, nil
}

// Close stops the settings watcher. Close is idempotent.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			return fmt.Errorf("closing config watcher: %w", err)
		}
	}
	return nil
}
