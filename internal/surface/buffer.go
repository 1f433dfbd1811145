package surface

import (
	"fmt"
	"sync"
)

// Buffer is an in-memory Surface.
// The selection is kept as an anchor and a head so that a selection can be
// extended in either direction; Selection reports it normalized.
type Buffer struct {
	mu       sync.Mutex
	text     []rune
	anchor   int
	head     int
	closed   bool
	observer Observer
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithObserver sets the observer notified of content and selection changes.
func WithObserver(o Observer) Option {
	return func(b *Buffer) {
		b.observer = o
	}
}

// WithSelection sets the initial selection. Out-of-range bounds are clamped.
func WithSelection(r Range) Option {
	return func(b *Buffer) {
		b.anchor = clamp(r.Start, 0, len(b.text))
		b.head = clamp(r.End, 0, len(b.text))
	}
}

// NewBuffer creates a buffer holding text with the cursor at offset 0.
func NewBuffer(text string, opts ...Option) *Buffer {
	b := &Buffer{text: []rune(text)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetObserver replaces the observer. A nil observer disables notifications.
func (b *Buffer) SetObserver(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observer = o
}

// Text returns the full text.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}

// Len returns the text length in characters.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.text)
}

// Selection returns the current selection.
func (b *Buffer) Selection() Range {
	b.mu.Lock()
	defer b.mu.Unlock()
	return NewRange(b.anchor, b.head)
}

// Head returns the moving end of the selection, where typing occurs.
func (b *Buffer) Head() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head
}

// Close tears the buffer down. Later edits and selection changes fail with ErrClosed.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// Closed reports whether Close has been called.
func (b *Buffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Apply performs the edits in order. Either all edits are applied or none are.
// The selection follows the text: offsets after an edited range shift by the
// edit's length change, offsets inside it move to the end of the new text.
func (b *Buffer) Apply(edits ...Edit) error {
	return b.apply(edits, nil)
}

// apply performs edits and then either sets the selection to *sel or maps the
// current selection through the edits. Observers see the content change
// before the selection change.
func (b *Buffer) apply(edits []Edit, sel *Range) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}

	oldText := string(b.text)
	oldSel := NewRange(b.anchor, b.head)

	text := b.text
	anchor, head := b.anchor, b.head
	for _, e := range edits {
		r := e.Range
		if r.Start < 0 || r.Start > r.End || r.End > len(text) {
			b.mu.Unlock()
			return fmt.Errorf("apply %s to text of length %d: %w", e, len(text), ErrOutOfRange)
		}
		if e.IsNoOp() {
			continue
		}
		inserted := []rune(e.NewText)
		next := make([]rune, 0, len(text)-r.Len()+len(inserted))
		next = append(next, text[:r.Start]...)
		next = append(next, inserted...)
		next = append(next, text[r.End:]...)
		text = next
		anchor = mapOffset(anchor, r, len(inserted))
		head = mapOffset(head, r, len(inserted))
	}
	if sel != nil {
		anchor, head = sel.Start, sel.End
	}
	b.text = text
	b.anchor = clamp(anchor, 0, len(text))
	b.head = clamp(head, 0, len(text))

	newText := string(b.text)
	newSel := NewRange(b.anchor, b.head)
	observer := b.observer
	b.mu.Unlock()

	if observer != nil {
		if newText != oldText {
			observer.OnContentChanged(oldText, newText)
		}
		if newSel != oldSel {
			observer.OnSelectionChanged(oldSel, newSel)
		}
	}
	return nil
}

// mapOffset moves p through an edit that replaced r with n characters.
func mapOffset(p int, r Range, n int) int {
	switch {
	case p <= r.Start:
		return p
	case p >= r.End:
		return p - r.Len() + n
	default:
		return r.Start + n
	}
}

// SetSelection sets the selection with the anchor at r.Start and the head at r.End.
func (b *Buffer) SetSelection(r Range) error {
	return b.setSelection(r.Start, r.End)
}

func (b *Buffer) setSelection(anchor, head int) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if anchor < 0 || anchor > len(b.text) || head < 0 || head > len(b.text) {
		n := len(b.text)
		b.mu.Unlock()
		return fmt.Errorf("select %d..%d in text of length %d: %w", anchor, head, n, ErrOutOfRange)
	}

	oldSel := NewRange(b.anchor, b.head)
	b.anchor, b.head = anchor, head
	newSel := NewRange(b.anchor, b.head)
	observer := b.observer
	b.mu.Unlock()

	if observer != nil && newSel != oldSel {
		observer.OnSelectionChanged(oldSel, newSel)
	}
	return nil
}

// MoveTo collapses the selection to a cursor at offset, clamped to the text.
func (b *Buffer) MoveTo(offset int) error {
	offset = clamp(offset, 0, b.Len())
	return b.setSelection(offset, offset)
}

// MoveBy collapses the selection and moves the cursor by delta characters.
func (b *Buffer) MoveBy(delta int) error {
	return b.MoveTo(b.Head() + delta)
}

// Select selects [start, end), clamped to the text.
func (b *Buffer) Select(start, end int) error {
	n := b.Len()
	return b.setSelection(clamp(start, 0, n), clamp(end, 0, n))
}

// ExtendBy moves the head by delta characters, keeping the anchor.
func (b *Buffer) ExtendBy(delta int) error {
	b.mu.Lock()
	anchor := b.anchor
	head := clamp(b.head+delta, 0, len(b.text))
	b.mu.Unlock()
	return b.setSelection(anchor, head)
}

// Type inserts text at the cursor, replacing the selection if there is one,
// and leaves the cursor after the inserted text.
func (b *Buffer) Type(text string) error {
	sel := b.Selection()
	cursor := Cursor(sel.Start + len([]rune(text)))
	return b.apply([]Edit{Replace(sel, text)}, &cursor)
}

// Backspace deletes the selection, or the character before the cursor.
func (b *Buffer) Backspace() error {
	sel := b.Selection()
	if sel.IsEmpty() {
		if sel.Start == 0 {
			return nil
		}
		sel = Range{Start: sel.Start - 1, End: sel.Start}
	}
	cursor := Cursor(sel.Start)
	return b.apply([]Edit{Delete(sel.Start, sel.End)}, &cursor)
}

// DeleteForward deletes the selection, or the character after the cursor.
func (b *Buffer) DeleteForward() error {
	sel := b.Selection()
	if sel.IsEmpty() {
		if sel.End >= b.Len() {
			return nil
		}
		sel = Range{Start: sel.Start, End: sel.Start + 1}
	}
	cursor := Cursor(sel.Start)
	return b.apply([]Edit{Delete(sel.Start, sel.End)}, &cursor)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
