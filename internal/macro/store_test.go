package macro

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keymacro/internal/logging"
	"github.com/dshills/keymacro/internal/surface"
)

// memoryKV is a ConfigStore that can be told to fail.
type memoryKV struct {
	values  map[string]string
	sets    int
	failSet error
	failGet error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: make(map[string]string)}
}

func (m *memoryKV) Get(key string) (string, error) {
	if m.failGet != nil {
		return "", m.failGet
	}
	return m.values[key], nil
}

func (m *memoryKV) Set(key, value string) error {
	if m.failSet != nil {
		return m.failSet
	}
	m.sets++
	m.values[key] = value
	return nil
}

// seededStore returns a store whose persisted collection holds macros.
func seededStore(t *testing.T, macros ...Macro) (*Store, *memoryKV) {
	t.Helper()
	kv := newMemoryKV()
	blob, err := Encode(macros)
	require.NoError(t, err)
	kv.values[DefaultStorageKey] = blob
	return NewStore(kv), kv
}

func names(t *testing.T, s *Store) []string {
	t.Helper()
	macros, err := s.Macros()
	require.NoError(t, err)
	out := make([]string, len(macros))
	for i, m := range macros {
		out[i] = m.Name
	}
	return out
}

func recordTyping(t *testing.T, s *Store, text string) *Macro {
	t.Helper()
	b := surface.NewBuffer("", surface.WithObserver(s))
	require.NoError(t, s.StartRecording(b))
	for _, r := range text {
		require.NoError(t, b.Type(string(r)))
	}
	m, err := s.StopRecording()
	require.NoError(t, err)
	return m
}

func TestStore_RecordAndPersist(t *testing.T) {
	kv := newMemoryKV()
	s := NewStore(kv)

	m := recordTyping(t, s, "hi")
	require.NotNil(t, m)
	assert.Equal(t, "Macro 1", m.Name)
	assert.Equal(t, []Action{Insert{"h"}, Insert{"i"}}, m.Actions)

	// A fresh store sees the persisted macro.
	got, err := NewStore(kv).Get("Macro 1")
	require.NoError(t, err)
	assert.Equal(t, *m, got)
}

func TestStore_CompressOnStop(t *testing.T) {
	s := NewStore(newMemoryKV(), WithSettings(Settings{CompressMacro: true}))

	m := recordTyping(t, s, "catdog")
	require.NotNil(t, m)
	assert.Equal(t, []Action{Insert{"catdog"}}, m.Actions)
}

func TestStore_StopWithoutActions(t *testing.T) {
	kv := newMemoryKV()
	s := NewStore(kv)
	b := surface.NewBuffer("hello", surface.WithObserver(s))

	require.NoError(t, s.StartRecording(b))
	m, err := s.StopRecording()
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Zero(t, kv.sets)
	assert.False(t, s.IsRecording())
}

func TestStore_RecordingLifecycle(t *testing.T) {
	s := NewStore(newMemoryKV())
	b := surface.NewBuffer("", surface.WithObserver(s))

	assert.ErrorIs(t, s.StartRecording(nil), ErrNoActiveSurface)
	_, err := s.StopRecording()
	assert.ErrorIs(t, err, ErrNotRecording)

	require.NoError(t, s.StartRecording(b))
	assert.True(t, s.IsRecording())
	assert.NotEmpty(t, s.Session())
	assert.ErrorIs(t, s.StartRecording(b), ErrAlreadyRecording)

	require.NoError(t, b.Type("x"))
	assert.Equal(t, 1, s.PendingActions())

	_, err = s.StopRecording()
	require.NoError(t, err)
	assert.Empty(t, s.Session())
	assert.Zero(t, s.PendingActions())

	// Edits outside a recording are ignored.
	require.NoError(t, b.Type("y"))
	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_ToggleRecording(t *testing.T) {
	s := NewStore(newMemoryKV())
	b := surface.NewBuffer("", surface.WithObserver(s))

	started, m, err := s.ToggleRecording(b)
	require.NoError(t, err)
	assert.True(t, started)
	assert.Nil(t, m)

	require.NoError(t, b.Type("z"))

	started, m, err = s.ToggleRecording(b)
	require.NoError(t, err)
	assert.False(t, started)
	require.NotNil(t, m)
	assert.Equal(t, "Macro 1", m.Name)

	_, _, err = s.ToggleRecording(nil)
	assert.ErrorIs(t, err, ErrNoActiveSurface)
}

func TestStore_NamesAreUnique(t *testing.T) {
	s, _ := seededStore(t,
		Macro{Name: "Macro 2", Actions: []Action{Insert{"a"}}},
	)

	m := recordTyping(t, s, "x")
	assert.Equal(t, "Macro 3", m.Name)
	m = recordTyping(t, s, "y")
	assert.Equal(t, "Macro 4", m.Name)
}

func TestStore_SaveFailureKeepsCollection(t *testing.T) {
	kv := newMemoryKV()
	s := NewStore(kv)
	recordTyping(t, s, "a")

	kv.failSet = errors.New("disk full")
	b := surface.NewBuffer("", surface.WithObserver(s))
	require.NoError(t, s.StartRecording(b))
	require.NoError(t, b.Type("b"))

	m, err := s.StopRecording()
	assert.Error(t, err)
	assert.Nil(t, m)
	assert.False(t, s.IsRecording())
	assert.Equal(t, []string{"Macro 1"}, names(t, s))

	assert.Error(t, s.Rename("Macro 1", "Renamed"))
	assert.Equal(t, []string{"Macro 1"}, names(t, s))
}

func TestStore_MalformedBlobStartsEmpty(t *testing.T) {
	var logs bytes.Buffer
	cfg := logging.DefaultConfig()
	cfg.Output = &logs
	kv := newMemoryKV()
	kv.values[DefaultStorageKey] = `{"not":"an array"}`

	s := NewStore(kv, WithLogger(logging.New(cfg)))
	n, err := s.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, logs.String(), "discarding persisted macros")

	// The next save replaces the bad blob.
	recordTyping(t, s, "a")
	macros, err := Decode(kv.values[DefaultStorageKey])
	require.NoError(t, err)
	assert.Len(t, macros, 1)
}

func TestStore_LoadError(t *testing.T) {
	kv := newMemoryKV()
	kv.failGet = errors.New("unreadable")
	s := NewStore(kv)

	_, err := s.Macros()
	assert.ErrorContains(t, err, "unreadable")
}

func TestStore_CustomStorageKey(t *testing.T) {
	kv := newMemoryKV()
	s := NewStore(kv, WithStorageKey("custom.key"))
	recordTyping(t, s, "a")

	assert.NotEmpty(t, kv.values["custom.key"])
	assert.Empty(t, kv.values[DefaultStorageKey])
}

func TestStore_RemoveMissingLeavesCollection(t *testing.T) {
	s, kv := seededStore(t,
		Macro{Name: "one", Actions: []Action{Insert{"1"}}},
		Macro{Name: "two", Actions: []Action{Delete{2}}},
	)
	before, err := s.Macros()
	require.NoError(t, err)

	err = s.Remove("three")
	assert.ErrorIs(t, err, ErrMacroNotFound)

	after, err := s.Macros()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Zero(t, kv.sets)
}

func TestStore_Remove(t *testing.T) {
	s, _ := seededStore(t,
		Macro{Name: "one", Actions: []Action{Insert{"1"}}},
		Macro{Name: "two", Actions: []Action{Insert{"2"}}},
		Macro{Name: "three", Actions: []Action{Insert{"3"}}},
	)

	require.NoError(t, s.Remove("two"))
	assert.Equal(t, []string{"one", "three"}, names(t, s))
}

func TestStore_Rename(t *testing.T) {
	s, _ := seededStore(t,
		Macro{Name: "one", Actions: []Action{Insert{"1"}}},
		Macro{Name: "two", Actions: []Action{Insert{"2"}}},
	)

	require.NoError(t, s.Rename("one", "  first  "))
	assert.Equal(t, []string{"first", "two"}, names(t, s))

	assert.ErrorIs(t, s.Rename("first", "two"), ErrNameTaken)
	assert.ErrorIs(t, s.Rename("first", "   "), ErrEmptyName)
	assert.ErrorIs(t, s.Rename("missing", "x"), ErrMacroNotFound)

	require.NoError(t, s.Rename("first", "first"))
	assert.Equal(t, []string{"first", "two"}, names(t, s))
}

func TestStore_Duplicate(t *testing.T) {
	s, _ := seededStore(t,
		Macro{Name: "one", Actions: []Action{Insert{"1"}, Move{-1}}, Expanded: true},
	)

	name, err := s.Duplicate("one")
	require.NoError(t, err)
	assert.Equal(t, "one (Copy)", name)

	name, err = s.Duplicate("one")
	require.NoError(t, err)
	assert.Equal(t, "one (Copy 2)", name)

	assert.Equal(t, []string{"one", "one (Copy)", "one (Copy 2)"}, names(t, s))

	dup, err := s.Get("one (Copy)")
	require.NoError(t, err)
	assert.Equal(t, []Action{Insert{"1"}, Move{-1}}, dup.Actions)
	assert.False(t, dup.Expanded)

	_, err = s.Duplicate("missing")
	assert.ErrorIs(t, err, ErrMacroNotFound)
}

func TestStore_Compress(t *testing.T) {
	s, kv := seededStore(t,
		Macro{Name: "long", Actions: []Action{Insert{"a"}, Insert{"b"}, Move{-1}, Move{-1}}},
		Macro{Name: "short", Actions: []Action{Insert{"a"}, Move{-1}}},
	)

	before, after, err := s.Compress("long")
	require.NoError(t, err)
	assert.Equal(t, 4, before)
	assert.Equal(t, 2, after)

	m, err := s.Get("long")
	require.NoError(t, err)
	assert.Equal(t, []Action{Insert{"ab"}, Move{-2}}, m.Actions)

	sets := kv.sets
	before, after, err = s.Compress("short")
	require.NoError(t, err)
	assert.Equal(t, 2, before)
	assert.Equal(t, 2, after)
	assert.Equal(t, sets, kv.sets, "unchanged macro is not rewritten")

	_, _, err = s.Compress("missing")
	assert.ErrorIs(t, err, ErrMacroNotFound)
}

func TestStore_Expansion(t *testing.T) {
	s, kv := seededStore(t, Macro{Name: "one", Actions: []Action{Insert{"1"}}})

	expanded, err := s.ToggleExpansion("one")
	require.NoError(t, err)
	assert.True(t, expanded)

	macros, err := Decode(kv.values[DefaultStorageKey])
	require.NoError(t, err)
	assert.True(t, macros[0].Expanded)

	require.NoError(t, s.SetExpanded("one", false))
	items, err := s.Items()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Expanded)

	assert.ErrorIs(t, s.SetExpanded("missing", true), ErrMacroNotFound)
	_, err = s.ToggleExpansion("missing")
	assert.ErrorIs(t, err, ErrMacroNotFound)
}

func TestStore_QueriesReturnCopies(t *testing.T) {
	s, _ := seededStore(t, Macro{Name: "one", Actions: []Action{Insert{"1"}}})

	m, err := s.Get("one")
	require.NoError(t, err)
	m.Actions[0] = Delete{5}
	m.Name = "changed"

	again, err := s.Get("one")
	require.NoError(t, err)
	assert.Equal(t, []Action{Insert{"1"}}, again.Actions)
}

func TestStore_Replay(t *testing.T) {
	s, _ := seededStore(t,
		Macro{Name: "greet", Actions: []Action{Insert{"hi "}}},
		Macro{Name: "shout", Actions: []Action{Insert{"!"}}},
	)
	b := surface.NewBuffer("")

	report, err := s.Replay(t.Context(), "greet", b)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, "hi ", b.Text())

	_, err = s.ReplayLast(t.Context(), b)
	require.NoError(t, err)
	assert.Equal(t, "hi !", b.Text())

	_, err = s.Replay(t.Context(), "missing", b)
	assert.ErrorIs(t, err, ErrMacroNotFound)
	_, err = s.Replay(t.Context(), "greet", nil)
	assert.ErrorIs(t, err, ErrNoActiveSurface)
}

func TestStore_ReplayLastEmpty(t *testing.T) {
	s := NewStore(newMemoryKV())
	_, err := s.ReplayLast(t.Context(), surface.NewBuffer(""))
	assert.ErrorIs(t, err, ErrNoMacros)
}

func TestStore_ReplayDuringRecordingIsRecorded(t *testing.T) {
	s, _ := seededStore(t, Macro{Name: "ab", Actions: []Action{Insert{"ab"}}})
	b := surface.NewBuffer("", surface.WithObserver(s))

	require.NoError(t, s.StartRecording(b))
	_, err := s.Replay(t.Context(), "ab", b)
	require.NoError(t, err)
	m, err := s.StopRecording()
	require.NoError(t, err)

	require.NotNil(t, m)
	assert.Equal(t, []Action{Insert{"ab"}}, m.Actions)
}

func TestStore_ApplySettings(t *testing.T) {
	s := NewStore(newMemoryKV())
	settings := Settings{CompressMacro: true, SlowPlayback: true, SlowPlaybackDelay: 10 * time.Millisecond}

	s.ApplySettings(settings)
	assert.Equal(t, settings, s.Settings())

	slow, delay := s.player.Pacing()
	assert.True(t, slow)
	assert.Equal(t, 10*time.Millisecond, delay)
}

func TestStore_ExportAndItems(t *testing.T) {
	s, _ := seededStore(t, Macro{Name: "one", Actions: []Action{Insert{"a\tb"}, Select{Delta: -2, Length: 1}}})

	items, err := s.Items()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "one (2 actions)", items[0].Tooltip)

	actionItems, err := s.ActionItems("one")
	require.NoError(t, err)
	require.Len(t, actionItems, 2)
	assert.Equal(t, `INS a\tb`, actionItems[0].Tooltip)

	exported, err := s.Export("one")
	require.NoError(t, err)
	assert.Contains(t, exported, `"name": "one"`)

	_, err = s.Export("missing")
	assert.ErrorIs(t, err, ErrMacroNotFound)
}
