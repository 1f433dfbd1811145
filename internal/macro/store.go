package macro

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/keymacro/internal/logging"
	"github.com/dshills/keymacro/internal/surface"
)

// DefaultStorageKey is the configuration key the macro collection is stored under.
const DefaultStorageKey = "keymacro.macros"

// Macro is a named, ordered list of actions.
type Macro struct {
	Name     string
	Actions  []Action
	Expanded bool // List view state only
}

// Clone returns a deep copy of m.
func (m Macro) Clone() Macro {
	m.Actions = CloneActions(m.Actions)
	return m
}

// ConfigStore is the key-value configuration store the collection is persisted to.
// Get returns "" for a key that was never set.
type ConfigStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Settings are the user settings the store consults.
type Settings struct {
	CompressMacro     bool          // Coalesce actions when a recording stops
	SlowPlayback      bool          // Pause between replayed actions
	SlowPlaybackDelay time.Duration // Pause length
}

// Store owns the macro collection and the recording session.
//
// The collection is loaded from the ConfigStore on first use and is the
// source of truth afterwards. Every mutation writes the whole collection
// back before it becomes visible; if the write fails the mutation is
// discarded.
//
// Store implements surface.Observer so a host can attach it to a surface
// and have edits recorded while a recording is in progress.
type Store struct {
	mu       sync.Mutex
	kv       ConfigStore
	key      string
	macros   []Macro
	loaded   bool
	recorder *Recorder
	session  string
	settings Settings
	player   *Player
	logger   *logging.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStorageKey sets the configuration key. Defaults to DefaultStorageKey.
func WithStorageKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *logging.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSettings sets the initial settings.
func WithSettings(settings Settings) StoreOption {
	return func(s *Store) {
		s.settings = settings
	}
}

// NewStore creates a store persisting to kv.
func NewStore(kv ConfigStore, opts ...StoreOption) *Store {
	s := &Store{
		kv:       kv,
		key:      DefaultStorageKey,
		recorder: NewRecorder(),
		logger:   logging.Null(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("macro")
	s.player = NewPlayer(
		WithPacing(s.settings.SlowPlayback, s.settings.SlowPlaybackDelay),
		WithPlayerLogger(s.logger),
	)
	return s
}

// ApplySettings replaces the settings. Compression applies to the next
// StopRecording, pacing to the next replay.
func (s *Store) ApplySettings(settings Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	s.player.SetPacing(settings.SlowPlayback, settings.SlowPlaybackDelay)
	s.logger.Debug("settings applied: compress=%v slow=%v delay=%v",
		settings.CompressMacro, settings.SlowPlayback, settings.SlowPlaybackDelay)
}

// Settings returns the current settings.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Load reads the collection from the ConfigStore, replacing what is in memory.
// A malformed blob is logged and treated as an empty collection.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() error {
	blob, err := s.kv.Get(s.key)
	if err != nil {
		return fmt.Errorf("load macros: %w", err)
	}

	macros, err := Decode(blob)
	if err != nil {
		s.logger.Warn("discarding persisted macros: %v", err)
		macros = nil
	}
	s.macros = macros
	s.loaded = true
	s.logger.Debug("loaded %d macros", len(macros))
	return nil
}

func (s *Store) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	return s.load()
}

// mutate applies fn to a copy of the collection, persists the result and
// only then makes it current. Callers hold s.mu.
func (s *Store) mutate(fn func(macros []Macro) ([]Macro, error)) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	next, err := fn(cloneMacros(s.macros))
	if err != nil {
		return err
	}

	blob, err := Encode(next)
	if err != nil {
		return fmt.Errorf("encode macros: %w", err)
	}
	if err := s.kv.Set(s.key, blob); err != nil {
		return fmt.Errorf("save macros: %w", err)
	}
	s.macros = next
	return nil
}

func cloneMacros(macros []Macro) []Macro {
	out := make([]Macro, len(macros))
	for i, m := range macros {
		out[i] = m.Clone()
	}
	return out
}

func indexOf(macros []Macro, name string) int {
	for i, m := range macros {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// ==================== Recording ====================

// StartRecording begins capturing edits made to s.
func (s *Store) StartRecording(sf surface.Surface) error {
	if sf == nil {
		return ErrNoActiveSurface
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recorder.Recording() {
		return ErrAlreadyRecording
	}
	s.session = uuid.New().String()
	s.recorder.Start(sf.Text(), sf.Selection())
	s.logger.WithField("session", s.session).Info("recording started")
	return nil
}

// StopRecording ends the recording and saves the captured actions as a new
// macro named "Macro <n>". It returns nil if nothing was captured.
// The recording always ends, even when saving fails.
func (s *Store) StopRecording() (*Macro, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recorder.Recording() {
		return nil, ErrNotRecording
	}

	log := s.logger.WithField("session", s.session)
	actions := s.recorder.Stop()
	s.session = ""

	if len(actions) == 0 {
		log.Info("recording stopped: no actions recorded")
		return nil, nil
	}
	if s.settings.CompressMacro {
		actions = Coalesce(actions)
	}

	var created Macro
	err := s.mutate(func(macros []Macro) ([]Macro, error) {
		created = Macro{Name: nextName(macros), Actions: actions}
		return append(macros, created), nil
	})
	if err != nil {
		log.Error("recording stopped: %v", err)
		return nil, err
	}

	log.Info("recording stopped: saved %q with %d actions", created.Name, len(created.Actions))
	created = created.Clone()
	return &created, nil
}

// nextName returns "Macro <count+1>", counting up until the name is free.
func nextName(macros []Macro) string {
	for n := len(macros) + 1; ; n++ {
		name := fmt.Sprintf("Macro %d", n)
		if indexOf(macros, name) < 0 {
			return name
		}
	}
}

// ToggleRecording stops a recording in progress or starts one on sf.
// started reports which happened; m is the saved macro when stopping.
func (s *Store) ToggleRecording(sf surface.Surface) (started bool, m *Macro, err error) {
	if s.IsRecording() {
		m, err = s.StopRecording()
		return false, m, err
	}
	if err := s.StartRecording(sf); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

// IsRecording returns true while a recording is in progress.
func (s *Store) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder.Recording()
}

// Session returns the current recording session ID, or "" when idle.
func (s *Store) Session() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// PendingActions returns the number of actions captured by the current recording.
func (s *Store) PendingActions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder.Len()
}

// OnContentChanged records a content change. Ignored when not recording.
func (s *Store) OnContentChanged(oldText, newText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logRecorded(s.recorder.ContentChanged(oldText, newText))
}

// OnSelectionChanged records a selection change. Ignored when not recording.
func (s *Store) OnSelectionChanged(oldSel, newSel surface.Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logRecorded(s.recorder.SelectionChanged(oldSel, newSel))
}

func (s *Store) logRecorded(actions []Action) {
	for _, a := range actions {
		s.logger.Debug("recorded %s", Describe(a))
	}
}

// ==================== Queries ====================

// Macros returns a copy of the collection in order.
func (s *Store) Macros() ([]Macro, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return cloneMacros(s.macros), nil
}

// Len returns the number of macros.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return 0, err
	}
	return len(s.macros), nil
}

// Get returns a copy of the named macro.
func (s *Store) Get(name string) (Macro, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return Macro{}, err
	}
	i := indexOf(s.macros, name)
	if i < 0 {
		return Macro{}, notFound(name)
	}
	return s.macros[i].Clone(), nil
}

// Last returns a copy of the most recently added macro.
func (s *Store) Last() (Macro, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return Macro{}, err
	}
	if len(s.macros) == 0 {
		return Macro{}, ErrNoMacros
	}
	return s.macros[len(s.macros)-1].Clone(), nil
}

// Items returns the list projection of every macro.
func (s *Store) Items() ([]MacroItem, error) {
	macros, err := s.Macros()
	if err != nil {
		return nil, err
	}
	items := make([]MacroItem, len(macros))
	for i, m := range macros {
		items[i] = ItemFor(m)
	}
	return items, nil
}

// ActionItems returns the list projection of the named macro's actions.
func (s *Store) ActionItems(name string) ([]ActionItem, error) {
	m, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	return ActionItemsFor(m), nil
}

// Export returns the named macro as indented JSON.
func (s *Store) Export(name string) (string, error) {
	m, err := s.Get(name)
	if err != nil {
		return "", err
	}
	return ExportJSON(m)
}

// ==================== Mutations ====================

// Rename renames a macro. Renaming to the current name is a no-op.
func (s *Store) Rename(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(func(macros []Macro) ([]Macro, error) {
		i := indexOf(macros, oldName)
		if i < 0 {
			return nil, notFound(oldName)
		}
		if newName == oldName {
			return macros, nil
		}
		if indexOf(macros, newName) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrNameTaken, newName)
		}
		macros[i].Name = newName
		return macros, nil
	})
}

// Remove deletes a macro. The collection is unchanged if it doesn't exist.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(func(macros []Macro) ([]Macro, error) {
		i := indexOf(macros, name)
		if i < 0 {
			return nil, notFound(name)
		}
		return append(macros[:i], macros[i+1:]...), nil
	})
}

// Duplicate appends a copy of a macro named "<name> (Copy)", or
// "<name> (Copy n)" if that is taken, and returns the new name.
func (s *Store) Duplicate(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var copyName string
	err := s.mutate(func(macros []Macro) ([]Macro, error) {
		i := indexOf(macros, name)
		if i < 0 {
			return nil, notFound(name)
		}
		copyName = name + " (Copy)"
		for n := 2; indexOf(macros, copyName) >= 0; n++ {
			copyName = fmt.Sprintf("%s (Copy %d)", name, n)
		}
		dup := macros[i].Clone()
		dup.Name = copyName
		dup.Expanded = false
		return append(macros, dup), nil
	})
	if err != nil {
		return "", err
	}
	return copyName, nil
}

// Compress coalesces a macro's actions. The macro is only rewritten when
// coalescing makes it shorter. It returns the action counts before and after.
func (s *Store) Compress(name string) (before, after int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return 0, 0, err
	}
	i := indexOf(s.macros, name)
	if i < 0 {
		return 0, 0, notFound(name)
	}

	before = len(s.macros[i].Actions)
	compressed := Coalesce(s.macros[i].Actions)
	if len(compressed) >= before {
		return before, before, nil
	}

	err = s.mutate(func(macros []Macro) ([]Macro, error) {
		macros[i].Actions = compressed
		return macros, nil
	})
	if err != nil {
		return before, before, err
	}
	return before, len(compressed), nil
}

// SetExpanded records whether a macro is expanded in the list view.
func (s *Store) SetExpanded(name string, expanded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(func(macros []Macro) ([]Macro, error) {
		i := indexOf(macros, name)
		if i < 0 {
			return nil, notFound(name)
		}
		macros[i].Expanded = expanded
		return macros, nil
	})
}

// ToggleExpansion flips a macro's expanded state and returns the new state.
func (s *Store) ToggleExpansion(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expanded bool
	err := s.mutate(func(macros []Macro) ([]Macro, error) {
		i := indexOf(macros, name)
		if i < 0 {
			return nil, notFound(name)
		}
		macros[i].Expanded = !macros[i].Expanded
		expanded = macros[i].Expanded
		return macros, nil
	})
	return expanded, err
}

// ==================== Replay ====================

// Replay plays the named macro on sf.
func (s *Store) Replay(ctx context.Context, name string, sf surface.Surface) (Report, error) {
	if sf == nil {
		return Report{}, ErrNoActiveSurface
	}
	m, err := s.Get(name)
	if err != nil {
		return Report{}, err
	}
	return s.play(ctx, m, sf)
}

// ReplayLast plays the most recently added macro on sf.
func (s *Store) ReplayLast(ctx context.Context, sf surface.Surface) (Report, error) {
	if sf == nil {
		return Report{}, ErrNoActiveSurface
	}
	m, err := s.Last()
	if err != nil {
		return Report{}, err
	}
	return s.play(ctx, m, sf)
}

func (s *Store) play(ctx context.Context, m Macro, sf surface.Surface) (Report, error) {
	log := s.logger.WithField("macro", m.Name)
	log.Info("replaying %d actions", len(m.Actions))

	report, err := s.player.Play(ctx, sf, m.Actions)
	switch {
	case err != nil && errors.Is(err, surface.ErrClosed):
		log.Warn("replay aborted: surface closed after %d actions", report.Applied)
	case err != nil:
		log.Warn("replay aborted: %v", err)
	case report.Failed() > 0:
		log.Warn("replay finished with %d failed actions", report.Failed())
	}
	return report, err
}
