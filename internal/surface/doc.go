// Package surface defines the editing surface that macros are recorded from
// and replayed against, plus an in-memory Buffer implementation.
//
// All positions are character offsets: a character is one Unicode code point,
// so "héllo" has length 5 regardless of its UTF-8 encoding.
//
// A Surface exposes exactly what recording and replay need:
//
//   - the full text and its length
//   - the current selection as a [Start, End) range
//   - Apply, which performs insert/delete/replace edits
//   - SetSelection, which moves the visible cursor or selection
//
// Buffer additionally reports every content and selection change to an
// optional Observer. Hosts use this to feed a macro recorder without the
// recorder managing subscriptions itself:
//
//	buf := surface.NewBuffer("hello", surface.WithObserver(store))
//	buf.MoveTo(5)
//	buf.Type(" world")   // store sees a content change then a selection change
//
// Thread Safety:
//
// Buffer methods are safe for concurrent use. Observer callbacks run after
// the buffer lock is released, in the goroutine that caused the change.
package surface
