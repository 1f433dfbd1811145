package script

import (
	"errors"
	"fmt"
)

// Errors for script execution.
var (
	// ErrEngineClosed is returned when running a script on a closed engine.
	ErrEngineClosed = errors.New("script engine is closed")

	// ErrTimeout is returned when a script runs past its time limit.
	ErrTimeout = errors.New("script execution timeout")
)

// Error describes a failed script.
type Error struct {
	Script string // Chunk name, usually the file path
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("script %s: %v", e.Script, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
