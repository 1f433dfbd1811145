package macro

import (
	"errors"
	"fmt"
)

// Macro errors.
var (
	// ErrMacroNotFound indicates no macro has the requested name.
	ErrMacroNotFound = errors.New("macro not found")

	// ErrNoMacros indicates the collection is empty.
	ErrNoMacros = errors.New("no macros available")

	// ErrMalformedState indicates the persisted blob could not be decoded.
	// The store recovers from it by starting with an empty collection.
	ErrMalformedState = errors.New("malformed persisted macros")

	// ErrNoActiveSurface indicates record or replay was invoked without an editing surface.
	ErrNoActiveSurface = errors.New("no active editing surface")

	// ErrEditFailed indicates a single action could not be applied to the surface.
	ErrEditFailed = errors.New("edit failed")

	// ErrNameTaken indicates another macro already has the requested name.
	ErrNameTaken = errors.New("macro name already in use")

	// ErrEmptyName indicates a blank macro name.
	ErrEmptyName = errors.New("macro name is empty")

	// ErrAlreadyRecording indicates StartRecording was called during a recording.
	ErrAlreadyRecording = errors.New("already recording")

	// ErrNotRecording indicates StopRecording was called with no recording in progress.
	ErrNotRecording = errors.New("not recording")
)

// ActionError describes the failure of one action during replay.
type ActionError struct {
	Index  int    // Position of the action in the macro
	Action Action // The action that failed
	Err    error  // Underlying surface error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d %s: %v", e.Index, e.Action, e.Err)
}

// Unwrap returns the underlying error.
func (e *ActionError) Unwrap() error {
	return e.Err
}

// Is reports ErrEditFailed for every ActionError.
func (e *ActionError) Is(target error) bool {
	return target == ErrEditFailed
}

// notFound wraps ErrMacroNotFound with the requested name.
func notFound(name string) error {
	return fmt.Errorf("%w: %q", ErrMacroNotFound, name)
}
