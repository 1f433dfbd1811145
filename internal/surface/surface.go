package surface

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by a surface that has been torn down.
	ErrClosed = errors.New("surface closed")

	// ErrOutOfRange is returned when an edit or selection falls outside the text.
	ErrOutOfRange = errors.New("offset out of range")
)

// Range is a character range [Start, End).
type Range struct {
	Start int
	End   int
}

// NewRange creates a range, swapping the bounds if they are reversed.
func NewRange(start, end int) Range {
	if end < start {
		start, end = end, start
	}
	return Range{Start: start, End: end}
}

// Cursor returns an empty range at offset.
func Cursor(offset int) Range {
	return Range{Start: offset, End: offset}
}

// String returns a human-readable representation of the range.
func (r Range) String() string {
	return fmt.Sprintf("[%d:%d)", r.Start, r.End)
}

// Len returns the length of the range in characters.
func (r Range) Len() int {
	return r.End - r.Start
}

// IsEmpty returns true if the range has zero length.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// Edit replaces Range with NewText.
type Edit struct {
	Range   Range
	NewText string
}

// Insert creates an Edit that inserts text at offset.
func Insert(offset int, text string) Edit {
	return Edit{Range: Cursor(offset), NewText: text}
}

// Delete creates an Edit that deletes [start, end).
func Delete(start, end int) Edit {
	return Edit{Range: NewRange(start, end)}
}

// Replace creates an Edit that replaces r with text.
func Replace(r Range, text string) Edit {
	return Edit{Range: r, NewText: text}
}

// String returns a human-readable representation of the edit.
func (e Edit) String() string {
	if e.Range.IsEmpty() {
		return fmt.Sprintf("Insert(%d, %q)", e.Range.Start, e.NewText)
	}
	if e.NewText == "" {
		return fmt.Sprintf("Delete%s", e.Range)
	}
	return fmt.Sprintf("Replace%s with %q", e.Range, e.NewText)
}

// IsNoOp returns true if this edit does nothing.
func (e Edit) IsNoOp() bool {
	return e.Range.IsEmpty() && e.NewText == ""
}

// Surface is a live editing surface.
type Surface interface {
	// Text returns the full text.
	Text() string

	// Len returns the text length in characters.
	Len() int

	// Selection returns the current selection. An empty range is a bare cursor.
	Selection() Range

	// Apply performs the edits in order; each edit's range refers to the
	// text as left by the previous edit.
	Apply(edits ...Edit) error

	// SetSelection sets the visible selection.
	SetSelection(r Range) error
}

// Observer receives change notifications from a surface.
type Observer interface {
	OnContentChanged(oldText, newText string)
	OnSelectionChanged(oldSel, newSel Range)
}
