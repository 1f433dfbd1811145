package macro

import (
	"fmt"
	"unicode/utf8"
)

// Kind is the short type tag of an action, as persisted and displayed.
type Kind string

// Action kinds.
const (
	KindInsert Kind = "INS"
	KindDelete Kind = "DEL"
	KindMove   Kind = "POS"
	KindSelect Kind = "SEL"
)

// Action is one recorded step of a macro.
//
// The set of actions is closed: Insert, Delete, Move and Select are the only
// implementations. Positions are relative to the virtual cursor left by the
// previous action, so an action only has meaning inside its list.
type Action interface {
	Kind() Kind
	String() string
	isAction()
}

// Insert inserts Text at the virtual cursor, replacing the virtual selection if any.
type Insert struct {
	Text string
}

// Delete removes Count characters ending at the virtual cursor.
type Delete struct {
	Count int
}

// Move shifts the virtual cursor by Delta characters and clears the selection.
type Move struct {
	Delta int
}

// Select selects Length characters starting Delta characters from the virtual cursor.
type Select struct {
	Delta  int
	Length int
}

func (Insert) isAction() {}
func (Delete) isAction() {}
func (Move) isAction()   {}
func (Select) isAction() {}

// Kind returns KindInsert.
func (Insert) Kind() Kind { return KindInsert }

// Kind returns KindDelete.
func (Delete) Kind() Kind { return KindDelete }

// Kind returns KindMove.
func (Move) Kind() Kind { return KindMove }

// Kind returns KindSelect.
func (Select) Kind() Kind { return KindSelect }

func (a Insert) String() string { return fmt.Sprintf("Insert(%q)", a.Text) }
func (a Delete) String() string { return fmt.Sprintf("Delete(%d)", a.Count) }
func (a Move) String() string   { return fmt.Sprintf("Move(%+d)", a.Delta) }
func (a Select) String() string { return fmt.Sprintf("Select(%+d, %d)", a.Delta, a.Length) }

// Len returns the inserted text length in characters.
func (a Insert) Len() int {
	return utf8.RuneCountInString(a.Text)
}

// CloneActions returns a copy of actions. Action values are immutable,
// so copying the slice is a deep copy.
func CloneActions(actions []Action) []Action {
	if actions == nil {
		return nil
	}
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// unknownAction reports an Action implementation outside the closed set.
// Only reachable if a new type is added without updating every switch.
func unknownAction(a Action) string {
	return fmt.Sprintf("macro: unknown action type %T", a)
}
