package macro

import (
	"unicode/utf8"

	"github.com/dshills/keymacro/internal/surface"
)

// Recorder turns content and selection notifications into actions.
//
// It tracks the cursor and selection that replay would hold after the
// actions emitted so far (the reference state). Every emitted action is
// relative to that reference, never to where recording started, so a macro
// recorded at one position replays correctly at another.
//
// Recorder is not safe for concurrent use; Store serializes access to it.
type Recorder struct {
	recording bool
	text      string
	cursor    int
	sel       *surface.Range
	actions   []Action
}

// NewRecorder creates an idle recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Start begins a recording from the given surface snapshot.
// Replay starts from the live cursor with no selection, so the reference
// cursor is the end of sel and the reference selection is empty.
func (r *Recorder) Start(text string, sel surface.Range) {
	r.recording = true
	r.text = text
	r.cursor = sel.End
	r.sel = nil
	r.actions = nil
}

// Stop ends the recording and returns the captured actions.
// The session state is reset.
func (r *Recorder) Stop() []Action {
	actions := r.actions
	r.recording = false
	r.text = ""
	r.cursor = 0
	r.sel = nil
	r.actions = nil
	return actions
}

// Recording returns true between Start and Stop.
func (r *Recorder) Recording() bool {
	return r.recording
}

// Len returns the number of actions captured so far.
func (r *Recorder) Len() int {
	return len(r.actions)
}

// Actions returns a copy of the actions captured so far.
func (r *Recorder) Actions() []Action {
	return CloneActions(r.actions)
}

// Observe records the change from the last observed text to newText.
func (r *Recorder) Observe(newText string) []Action {
	return r.ContentChanged(r.text, newText)
}

// ContentChanged records the edit between oldText and newText and returns
// the actions it emitted.
func (r *Recorder) ContentChanged(oldText, newText string) []Action {
	if !r.recording {
		return nil
	}
	r.text = newText

	start := len(r.actions)
	c := DetectChange(oldText, newText)
	switch c.Kind {
	case ChangeInsert:
		if c.Removed > 0 && r.sel != nil && r.sel.Start == c.Pos && r.sel.Len() == c.Removed {
			// Typed over the selection: replay's Insert replaces it.
			r.emit(Insert{Text: c.Text})
		} else {
			if c.Removed > 0 {
				r.moveTo(c.Pos+c.Removed, false)
				r.emit(Delete{Count: c.Removed})
			} else {
				r.moveTo(c.Pos, true)
			}
			r.emit(Insert{Text: c.Text})
		}
		r.cursor = c.Pos + utf8.RuneCountInString(c.Text)
		r.sel = nil
	case ChangeDelete:
		r.moveTo(c.Pos+c.Removed, false)
		r.emit(Delete{Count: c.Removed})
		r.cursor = c.Pos
		r.sel = nil
	}
	return r.emitted(start)
}

// SelectionChanged records a cursor move or selection change and returns
// the action it emitted, if any.
func (r *Recorder) SelectionChanged(oldSel, newSel surface.Range) []Action {
	if !r.recording || oldSel == newSel {
		return nil
	}

	start := len(r.actions)
	if newSel.IsEmpty() {
		r.moveTo(newSel.Start, true)
		return r.emitted(start)
	}

	if r.sel != nil && *r.sel == newSel {
		return nil
	}
	r.emit(Select{Delta: newSel.Start - r.cursor, Length: newSel.Len()})
	r.cursor = newSel.End
	sel := newSel
	r.sel = &sel
	return r.emitted(start)
}

// moveTo brings the reference cursor to target. A Move is emitted when the
// cursor changes, or when clearSel is set and a selection must be dropped;
// that Move may have a zero delta.
func (r *Recorder) moveTo(target int, clearSel bool) {
	if target == r.cursor && (r.sel == nil || !clearSel) {
		return
	}
	r.emit(Move{Delta: target - r.cursor})
	r.cursor = target
	r.sel = nil
}

func (r *Recorder) emit(a Action) {
	r.actions = append(r.actions, a)
}

func (r *Recorder) emitted(start int) []Action {
	if len(r.actions) == start {
		return nil
	}
	return CloneActions(r.actions[start:])
}
