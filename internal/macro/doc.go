// Package macro records text edits as replayable macros and plays them back.
//
// # Concepts
//
// A macro is a named, ordered list of actions. There are four kinds:
//
//	INS  Insert{Text}            insert at the cursor, replacing any selection
//	DEL  Delete{Count}           delete Count characters before the cursor
//	POS  Move{Delta}             move the cursor, dropping any selection
//	SEL  Select{Delta, Length}   select Length characters starting Delta away
//
// Positions are relative to the cursor left by the previous action, so a
// macro recorded at one place in a document can be replayed at another.
//
// # Recording
//
// The host feeds content and selection notifications to a Store while a
// recording is in progress. Content changes go through DetectChange, which
// recovers the single contiguous edit between the old and new text; the
// Recorder turns that edit, or a selection change, into actions.
//
//	store := macro.NewStore(kv)
//	buf := surface.NewBuffer(text, surface.WithObserver(store))
//	store.StartRecording(buf)
//	buf.Type("hello")           // each keystroke arrives as its own change
//	m, err := store.StopRecording()
//
// When the CompressMacro setting is on, StopRecording coalesces the actions
// (see Coalesce): consecutive inserts become one insert, and so on.
//
// # Playback
//
// Player walks a macro against a live surface, keeping a virtual cursor and
// selection. After each action the surface's visible selection is updated,
// and with slow playback enabled the player pauses before the next action.
//
//	report, err := store.Replay(ctx, "Macro 1", buf)
//
// An action the surface rejects is skipped and listed in the report; replay
// stops only if the surface is closed or the context is cancelled.
//
// # Persistence
//
// The whole collection is serialized to one JSON blob stored under a single
// key of a ConfigStore, and rewritten after every change. A blob that cannot
// be decoded is logged and replaced by an empty collection.
//
// # Thread Safety
//
// Store is safe for concurrent use. Recorder is not; Store serializes it.
package macro
