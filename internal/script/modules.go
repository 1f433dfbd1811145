package script

import (
	"unicode/utf8"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/keymacro/internal/macro"
	"github.com/dshills/keymacro/internal/surface"
)

// ==================== macros ====================

func (e *Engine) loadMacros(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"list":        e.macrosList,
		"count":       e.macrosCount,
		"get":         e.macrosGet,
		"describe":    e.macrosDescribe,
		"replay":      e.macrosReplay,
		"replay_last": e.macrosReplayLast,
		"rename":      e.macrosRename,
		"remove":      e.macrosRemove,
		"duplicate":   e.macrosDuplicate,
		"compress":    e.macrosCompress,
		"export":      e.macrosExport,
		"recording":   e.macrosRecording,
		"start":       e.macrosStart,
		"stop":        e.macrosStop,
	})
	L.Push(mod)
	return 1
}

// fail pushes the Lua error convention: nil plus a message.
func fail(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

func (e *Engine) macrosList(L *lua.LState) int {
	macros, err := e.store.Macros()
	if err != nil {
		return fail(L, err)
	}
	t := L.CreateTable(len(macros), 0)
	for _, m := range macros {
		t.Append(lua.LString(m.Name))
	}
	L.Push(t)
	return 1
}

func (e *Engine) macrosCount(L *lua.LState) int {
	n, err := e.store.Len()
	if err != nil {
		return fail(L, err)
	}
	L.Push(lua.LNumber(n))
	return 1
}

func (e *Engine) macrosGet(L *lua.LState) int {
	m, err := e.store.Get(L.CheckString(1))
	if err != nil {
		return fail(L, err)
	}

	actions := L.CreateTable(len(m.Actions), 0)
	for _, a := range m.Actions {
		actions.Append(actionTable(L, a))
	}
	t := L.CreateTable(0, 3)
	t.RawSetString("name", lua.LString(m.Name))
	t.RawSetString("expanded", lua.LBool(m.Expanded))
	t.RawSetString("actions", actions)
	L.Push(t)
	return 1
}

// actionTable mirrors the persisted action object.
func actionTable(L *lua.LState, a macro.Action) *lua.LTable {
	t := L.CreateTable(0, 3)
	t.RawSetString("type", lua.LString(string(a.Kind())))
	switch a := a.(type) {
	case macro.Insert:
		t.RawSetString("text", lua.LString(a.Text))
	case macro.Delete:
		t.RawSetString("count", lua.LNumber(a.Count))
	case macro.Move:
		t.RawSetString("delta", lua.LNumber(a.Delta))
	case macro.Select:
		t.RawSetString("delta", lua.LNumber(a.Delta))
		t.RawSetString("length", lua.LNumber(a.Length))
	}
	return t
}

func (e *Engine) macrosDescribe(L *lua.LState) int {
	items, err := e.store.ActionItems(L.CheckString(1))
	if err != nil {
		return fail(L, err)
	}
	t := L.CreateTable(len(items), 0)
	for _, item := range items {
		t.Append(lua.LString(item.Tooltip))
	}
	L.Push(t)
	return 1
}

func (e *Engine) macrosReplay(L *lua.LState) int {
	report, err := e.store.Replay(L.Context(), L.CheckString(1), e.surface)
	return pushReport(L, report, err)
}

func (e *Engine) macrosReplayLast(L *lua.LState) int {
	report, err := e.store.ReplayLast(L.Context(), e.surface)
	return pushReport(L, report, err)
}

func pushReport(L *lua.LState, report macro.Report, err error) int {
	if err != nil {
		return fail(L, err)
	}
	L.Push(lua.LNumber(report.Applied))
	L.Push(lua.LNumber(report.Failed()))
	return 2
}

func (e *Engine) macrosRename(L *lua.LState) int {
	if err := e.store.Rename(L.CheckString(1), L.CheckString(2)); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (e *Engine) macrosRemove(L *lua.LState) int {
	if err := e.store.Remove(L.CheckString(1)); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (e *Engine) macrosDuplicate(L *lua.LState) int {
	name, err := e.store.Duplicate(L.CheckString(1))
	if err != nil {
		return fail(L, err)
	}
	L.Push(lua.LString(name))
	return 1
}

func (e *Engine) macrosCompress(L *lua.LState) int {
	before, after, err := e.store.Compress(L.CheckString(1))
	if err != nil {
		return fail(L, err)
	}
	L.Push(lua.LNumber(before))
	L.Push(lua.LNumber(after))
	return 2
}

func (e *Engine) macrosExport(L *lua.LState) int {
	out, err := e.store.Export(L.CheckString(1))
	if err != nil {
		return fail(L, err)
	}
	L.Push(lua.LString(out))
	return 1
}

func (e *Engine) macrosRecording(L *lua.LState) int {
	L.Push(lua.LBool(e.store.IsRecording()))
	return 1
}

func (e *Engine) macrosStart(L *lua.LState) int {
	if err := e.store.StartRecording(e.surface); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (e *Engine) macrosStop(L *lua.LState) int {
	m, err := e.store.StopRecording()
	if err != nil {
		return fail(L, err)
	}
	if m == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(m.Name))
	return 1
}

// ==================== buf ====================

func (e *Engine) loadBuf(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"text":      e.bufText,
		"len":       e.bufLen,
		"cursor":    e.bufCursor,
		"selection": e.bufSelection,
		"move":      e.bufMove,
		"select":    e.bufSelect,
		"insert":    e.bufInsert,
		"delete":    e.bufDelete,
	})
	L.Push(mod)
	return 1
}

// active returns the surface, or pushes an error result when there is none.
func (e *Engine) active(L *lua.LState) (surface.Surface, int) {
	if e.surface == nil {
		return nil, fail(L, macro.ErrNoActiveSurface)
	}
	return e.surface, 0
}

func (e *Engine) bufText(L *lua.LState) int {
	sf, n := e.active(L)
	if sf == nil {
		return n
	}
	L.Push(lua.LString(sf.Text()))
	return 1
}

func (e *Engine) bufLen(L *lua.LState) int {
	sf, n := e.active(L)
	if sf == nil {
		return n
	}
	L.Push(lua.LNumber(sf.Len()))
	return 1
}

func (e *Engine) bufCursor(L *lua.LState) int {
	sf, n := e.active(L)
	if sf == nil {
		return n
	}
	L.Push(lua.LNumber(sf.Selection().End))
	return 1
}

func (e *Engine) bufSelection(L *lua.LState) int {
	sf, n := e.active(L)
	if sf == nil {
		return n
	}
	sel := sf.Selection()
	L.Push(lua.LNumber(sel.Start))
	L.Push(lua.LNumber(sel.End))
	return 2
}

func (e *Engine) bufMove(L *lua.LState) int {
	offset := L.CheckInt(1)
	sf, n := e.active(L)
	if sf == nil {
		return n
	}
	if err := sf.SetSelection(surface.Cursor(offset)); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (e *Engine) bufSelect(L *lua.LState) int {
	start, end := L.CheckInt(1), L.CheckInt(2)
	sf, n := e.active(L)
	if sf == nil {
		return n
	}
	if err := sf.SetSelection(surface.NewRange(start, end)); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (e *Engine) bufInsert(L *lua.LState) int {
	text := L.CheckString(1)
	sf, n := e.active(L)
	if sf == nil {
		return n
	}
	sel := sf.Selection()
	if err := sf.Apply(surface.Replace(sel, text)); err != nil {
		return fail(L, err)
	}
	if err := sf.SetSelection(surface.Cursor(sel.Start + utf8.RuneCountInString(text))); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (e *Engine) bufDelete(L *lua.LState) int {
	count := L.OptInt(1, 1)
	if count < 0 {
		L.ArgError(1, "count must not be negative")
		return 0
	}
	sf, n := e.active(L)
	if sf == nil {
		return n
	}
	sel := sf.Selection()
	if sel.IsEmpty() {
		sel = surface.Range{Start: sel.Start, End: min(sel.Start+count, sf.Len())}
	}
	if err := sf.Apply(surface.Delete(sel.Start, sel.End)); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}
