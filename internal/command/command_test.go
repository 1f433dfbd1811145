package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keymacro/internal/kvstore"
	"github.com/dshills/keymacro/internal/macro"
	"github.com/dshills/keymacro/internal/surface"
)

type fakeHost struct {
	surface   surface.Surface
	beeps     int
	notices   []string
	answers   []string // Prompt answers in order; "\x00" means cancel
	prompts   []string
	clipboard string
	clipErr   error
}

func (h *fakeHost) ActiveSurface() surface.Surface {
	return h.surface
}

func (h *fakeHost) Beep() { h.beeps++ }

func (h *fakeHost) Notify(msg string) { h.notices = append(h.notices, msg) }

func (h *fakeHost) Prompt(prompt, initial string) (string, bool) {
	h.prompts = append(h.prompts, prompt)
	if len(h.answers) == 0 {
		return "", false
	}
	a := h.answers[0]
	h.answers = h.answers[1:]
	if a == "\x00" {
		return "", false
	}
	return a, true
}

func (h *fakeHost) SetClipboard(text string) error {
	if h.clipErr != nil {
		return h.clipErr
	}
	h.clipboard = text
	return nil
}

func setup(t *testing.T, macros ...macro.Macro) (*Handler, *fakeHost, *macro.Store, *surface.Buffer) {
	t.Helper()
	kv := kvstore.NewMemory()
	blob, err := macro.Encode(macros)
	require.NoError(t, err)
	require.NoError(t, kv.Set(macro.DefaultStorageKey, blob))

	store := macro.NewStore(kv)
	buf := surface.NewBuffer("", surface.WithObserver(store))
	host := &fakeHost{surface: buf}
	return NewHandler(store, host, nil), host, store, buf
}

func run(t *testing.T, h *Handler, name string, args Args) Result {
	t.Helper()
	return h.Handle(t.Context(), Action{Name: name, Args: args})
}

func TestHandler_CanHandle(t *testing.T) {
	h, _, _, _ := setup(t)
	for _, name := range Names() {
		assert.True(t, h.CanHandle(name), name)
	}
	assert.False(t, h.CanHandle("editor.save"))
	assert.Equal(t, "macro", h.Namespace())
}

func TestHandler_UnknownCommand(t *testing.T) {
	h, _, _, _ := setup(t)
	r := run(t, h, "macro.fly", Args{})
	assert.True(t, r.IsError())
}

func TestHandler_RecordAndReplay(t *testing.T) {
	h, host, store, buf := setup(t)

	r := run(t, h, ActionToggleRecording, Args{})
	require.True(t, r.IsOK())
	assert.Equal(t, true, r.Data["recording"])
	assert.NotEmpty(t, r.Data["session"])

	require.NoError(t, buf.Type("ab"))

	r = run(t, h, ActionToggleRecording, Args{})
	require.True(t, r.IsOK())
	assert.Equal(t, "Macro 1", r.Data["name"])
	assert.Equal(t, 1, r.Data["actionCount"])
	assert.False(t, store.IsRecording())

	r = run(t, h, ActionReplayLast, Args{})
	require.True(t, r.IsOK(), r.Message)
	assert.Equal(t, "abab", buf.Text())

	r = run(t, h, ActionReplay, Args{Name: "Macro 1"})
	require.True(t, r.IsOK())
	assert.Equal(t, "ababab", buf.Text())
	assert.Contains(t, host.notices, `macro: replayed "Macro 1" (1 actions)`)
}

func TestHandler_StartStopStates(t *testing.T) {
	h, _, _, _ := setup(t)

	assert.Equal(t, StatusNoOp, run(t, h, ActionStopRecording, Args{}).Status)
	assert.Equal(t, StatusOK, run(t, h, ActionStartRecording, Args{}).Status)
	assert.Equal(t, StatusNoOp, run(t, h, ActionStartRecording, Args{}).Status)

	r := run(t, h, ActionStopRecording, Args{})
	assert.Equal(t, StatusNoOp, r.Status)
	assert.Equal(t, "macro: nothing recorded", r.Message)
}

func TestHandler_NoActiveSurface(t *testing.T) {
	h, host, store, _ := setup(t, macro.Macro{Name: "m", Actions: []macro.Action{macro.Insert{Text: "x"}}})
	host.surface = nil

	for _, name := range []string{ActionStartRecording, ActionToggleRecording, ActionReplayLast} {
		r := run(t, h, name, Args{Name: "m"})
		assert.Equal(t, StatusNoOp, r.Status, name)
	}
	r := run(t, h, ActionReplay, Args{Name: "m"})
	assert.Equal(t, StatusNoOp, r.Status)
	assert.False(t, store.IsRecording())
	assert.Zero(t, host.beeps)
}

func TestHandler_NotFoundBeeps(t *testing.T) {
	h, host, _, _ := setup(t, macro.Macro{Name: "m", Actions: []macro.Action{macro.Insert{Text: "x"}}})

	for _, name := range []string{ActionReplay, ActionView, ActionRemove, ActionDuplicate, ActionCompress, ActionToggleExpansion} {
		r := run(t, h, name, Args{Name: "missing"})
		assert.True(t, r.IsError(), name)
		assert.ErrorIs(t, r.Error, macro.ErrMacroNotFound, name)
	}
	assert.Equal(t, 6, host.beeps)
}

func TestHandler_ReplayLastEmptyBeeps(t *testing.T) {
	h, host, _, _ := setup(t)

	r := run(t, h, ActionReplayLast, Args{})
	assert.ErrorIs(t, r.Error, macro.ErrNoMacros)
	assert.Equal(t, 1, host.beeps)
}

func TestHandler_ReplayClosedSurface(t *testing.T) {
	h, host, _, buf := setup(t, macro.Macro{Name: "m", Actions: []macro.Action{macro.Insert{Text: "x"}}})
	buf.Close()

	r := run(t, h, ActionReplay, Args{Name: "m"})
	assert.True(t, r.IsError())
	assert.ErrorIs(t, r.Error, surface.ErrClosed)
	assert.Zero(t, host.beeps)
}

func TestHandler_PromptsForMissingName(t *testing.T) {
	h, host, _, buf := setup(t, macro.Macro{Name: "m", Actions: []macro.Action{macro.Insert{Text: "x"}}})

	host.answers = []string{"m"}
	r := run(t, h, ActionReplay, Args{})
	require.True(t, r.IsOK())
	assert.Equal(t, "x", buf.Text())
	assert.Equal(t, []string{"Replay macro"}, host.prompts)

	host.answers = []string{"\x00"}
	r = run(t, h, ActionRemove, Args{})
	assert.Equal(t, StatusCancelled, r.Status)
}

func TestHandler_Rename(t *testing.T) {
	h, host, store, _ := setup(t,
		macro.Macro{Name: "a", Actions: []macro.Action{macro.Insert{Text: "1"}}},
		macro.Macro{Name: "b", Actions: []macro.Action{macro.Insert{Text: "2"}}},
	)

	r := run(t, h, ActionRename, Args{Name: "a", NewName: "first"})
	require.True(t, r.IsOK())
	_, err := store.Get("first")
	assert.NoError(t, err)

	// Prompted name, unchanged and empty answers are no-ops.
	host.answers = []string{"first"}
	assert.Equal(t, StatusNoOp, run(t, h, ActionRename, Args{Name: "first"}).Status)
	host.answers = []string{"  "}
	assert.Equal(t, StatusNoOp, run(t, h, ActionRename, Args{Name: "first"}).Status)
	host.answers = []string{"\x00"}
	assert.Equal(t, StatusCancelled, run(t, h, ActionRename, Args{Name: "first"}).Status)

	r = run(t, h, ActionRename, Args{Name: "first", NewName: "b"})
	assert.ErrorIs(t, r.Error, macro.ErrNameTaken)
	assert.Zero(t, host.beeps)
}

func TestHandler_RemoveDuplicateCompress(t *testing.T) {
	h, _, store, _ := setup(t, macro.Macro{Name: "m", Actions: []macro.Action{
		macro.Insert{Text: "a"}, macro.Insert{Text: "b"},
	}})

	r := run(t, h, ActionDuplicate, Args{Name: "m"})
	require.True(t, r.IsOK())
	assert.Equal(t, "m (Copy)", r.Data["name"])

	r = run(t, h, ActionCompress, Args{Name: "m"})
	require.True(t, r.IsOK())
	assert.Equal(t, 2, r.Data["before"])
	assert.Equal(t, 1, r.Data["after"])

	r = run(t, h, ActionCompress, Args{Name: "m"})
	assert.Equal(t, StatusNoOp, r.Status)

	r = run(t, h, ActionRemove, Args{Name: "m"})
	require.True(t, r.IsOK())
	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHandler_ViewCopiesJSON(t *testing.T) {
	h, host, _, _ := setup(t, macro.Macro{Name: "m", Actions: []macro.Action{macro.Delete{Count: 2}}})

	r := run(t, h, ActionView, Args{Name: "m"})
	require.True(t, r.IsOK())
	assert.JSONEq(t, `{"name":"m","actions":[{"type":"DEL","count":2}],"isExpanded":false}`, host.clipboard)
	assert.Equal(t, host.clipboard, r.Data["json"])

	host.clipErr = errors.New("no clipboard")
	r = run(t, h, ActionView, Args{Name: "m"})
	assert.True(t, r.IsOK())
	assert.Contains(t, r.Message, "could not be copied")
}

func TestHandler_ListAndExpansion(t *testing.T) {
	h, _, _, _ := setup(t)
	assert.Equal(t, StatusNoOp, run(t, h, ActionList, Args{}).Status)

	h, _, _, _ = setup(t, macro.Macro{Name: "m", Actions: []macro.Action{macro.Move{Delta: 1}}})

	r := run(t, h, ActionToggleExpansion, Args{Name: "m"})
	require.True(t, r.IsOK())
	assert.Equal(t, true, r.Data["expanded"])

	r = run(t, h, ActionList, Args{})
	require.True(t, r.IsOK())
	items := r.Data["items"].([]macro.MacroItem)
	require.Len(t, items, 1)
	assert.True(t, items[0].Expanded)
	assert.Equal(t, "m (1 actions)", items[0].Tooltip)
}

func TestResult(t *testing.T) {
	r := Success().WithData("a", 1)
	r2 := r.WithData("b", 2)
	assert.Len(t, r.Data, 1)
	assert.Len(t, r2.Data, 2)

	assert.Equal(t, "macro: boom 3", Errorf("boom %d", 3).Message)
	assert.Equal(t, "cancelled", StatusCancelled.String())
	assert.Equal(t, "unknown", ResultStatus(42).String())
}
