package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	kind     string
	old, new any
}

type eventLog struct {
	events []event
}

func (l *eventLog) OnContentChanged(oldText, newText string) {
	l.events = append(l.events, event{"content", oldText, newText})
}

func (l *eventLog) OnSelectionChanged(oldSel, newSel Range) {
	l.events = append(l.events, event{"selection", oldSel, newSel})
}

func TestRange(t *testing.T) {
	r := NewRange(5, 2)
	assert.Equal(t, Range{Start: 2, End: 5}, r)
	assert.Equal(t, 3, r.Len())
	assert.False(t, r.IsEmpty())
	assert.Equal(t, "[2:5)", r.String())
	assert.True(t, Cursor(4).IsEmpty())
}

func TestEdit_String(t *testing.T) {
	assert.Equal(t, `Insert(1, "x")`, Insert(1, "x").String())
	assert.Equal(t, "Delete[1:3)", Delete(3, 1).String())
	assert.Equal(t, `Replace[1:3) with "x"`, Replace(Range{Start: 1, End: 3}, "x").String())
	assert.True(t, Insert(2, "").IsNoOp())
	assert.False(t, Delete(1, 2).IsNoOp())
}

func TestBuffer_CharacterOffsets(t *testing.T) {
	b := NewBuffer("héllo")
	assert.Equal(t, 5, b.Len())

	require.NoError(t, b.Apply(Delete(1, 2)))
	assert.Equal(t, "hllo", b.Text())
}

func TestBuffer_ApplyMapsSelection(t *testing.T) {
	b := NewBuffer("hello world", WithSelection(Range{Start: 6, End: 11}))

	require.NoError(t, b.Apply(Insert(0, ">> ")))
	assert.Equal(t, Range{Start: 9, End: 14}, b.Selection())

	require.NoError(t, b.Apply(Replace(Range{Start: 10, End: 12}, "X")))
	assert.Equal(t, Range{Start: 9, End: 13}, b.Selection())
	assert.Equal(t, ">> hello wXld", b.Text())
}

func TestBuffer_ApplyIsAllOrNothing(t *testing.T) {
	b := NewBuffer("abc")

	err := b.Apply(Insert(3, "d"), Delete(2, 10))
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, "abc", b.Text())
}

func TestBuffer_ApplyInOrder(t *testing.T) {
	b := NewBuffer("abc")

	// The second edit sees the text produced by the first.
	require.NoError(t, b.Apply(Insert(3, "d"), Delete(0, 1)))
	assert.Equal(t, "bcd", b.Text())
}

func TestBuffer_Closed(t *testing.T) {
	b := NewBuffer("abc")
	b.Close()

	assert.True(t, b.Closed())
	assert.ErrorIs(t, b.Apply(Insert(0, "x")), ErrClosed)
	assert.ErrorIs(t, b.SetSelection(Cursor(1)), ErrClosed)
	assert.ErrorIs(t, b.Type("x"), ErrClosed)
	assert.Equal(t, "abc", b.Text())
}

func TestBuffer_SetSelection(t *testing.T) {
	b := NewBuffer("abc")

	require.NoError(t, b.SetSelection(Range{Start: 3, End: 1}))
	assert.Equal(t, Range{Start: 1, End: 3}, b.Selection())
	assert.Equal(t, 1, b.Head())

	assert.ErrorIs(t, b.SetSelection(Cursor(4)), ErrOutOfRange)
	assert.ErrorIs(t, b.SetSelection(Range{Start: -1, End: 0}), ErrOutOfRange)
}

func TestBuffer_MovementClamps(t *testing.T) {
	b := NewBuffer("abc")

	require.NoError(t, b.MoveTo(10))
	assert.Equal(t, Cursor(3), b.Selection())
	require.NoError(t, b.MoveBy(-10))
	assert.Equal(t, Cursor(0), b.Selection())
	require.NoError(t, b.Select(-1, 2))
	assert.Equal(t, Range{Start: 0, End: 2}, b.Selection())
}

func TestBuffer_ExtendBy(t *testing.T) {
	b := NewBuffer("abcdef", WithSelection(Cursor(4)))

	require.NoError(t, b.ExtendBy(-3))
	assert.Equal(t, Range{Start: 1, End: 4}, b.Selection())
	assert.Equal(t, 1, b.Head())

	require.NoError(t, b.ExtendBy(4))
	assert.Equal(t, Range{Start: 4, End: 5}, b.Selection())
}

func TestBuffer_Typing(t *testing.T) {
	b := NewBuffer("hello", WithSelection(Cursor(5)))

	require.NoError(t, b.Type(" world"))
	assert.Equal(t, "hello world", b.Text())
	assert.Equal(t, Cursor(11), b.Selection())

	require.NoError(t, b.Select(0, 5))
	require.NoError(t, b.Type("bye"))
	assert.Equal(t, "bye world", b.Text())
	assert.Equal(t, Cursor(3), b.Selection())

	require.NoError(t, b.Backspace())
	assert.Equal(t, "by world", b.Text())
	assert.Equal(t, Cursor(2), b.Selection())

	require.NoError(t, b.DeleteForward())
	assert.Equal(t, "byworld", b.Text())
	assert.Equal(t, Cursor(2), b.Selection())
}

func TestBuffer_BoundaryDeletesAreNoOps(t *testing.T) {
	log := &eventLog{}
	b := NewBuffer("ab", WithObserver(log))

	require.NoError(t, b.Backspace())
	require.NoError(t, b.MoveTo(2))
	log.events = nil
	require.NoError(t, b.DeleteForward())

	assert.Equal(t, "ab", b.Text())
	assert.Empty(t, log.events)
}

func TestBuffer_NotifiesContentBeforeSelection(t *testing.T) {
	log := &eventLog{}
	b := NewBuffer("ab", WithSelection(Cursor(2)), WithObserver(log))

	require.NoError(t, b.Type("c"))

	assert.Equal(t, []event{
		{"content", "ab", "abc"},
		{"selection", Cursor(2), Cursor(3)},
	}, log.events)
}

func TestBuffer_NoEventsWithoutChange(t *testing.T) {
	log := &eventLog{}
	b := NewBuffer("ab", WithObserver(log))

	require.NoError(t, b.SetSelection(Cursor(0)))
	require.NoError(t, b.Apply(Insert(1, "")))
	assert.Empty(t, log.events)

	b.SetObserver(nil)
	require.NoError(t, b.Type("x"))
	assert.Empty(t, log.events)
}
