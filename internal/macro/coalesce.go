package macro

// Coalesce merges runs of same-kind actions in a single left-to-right pass:
//
//   - Insert + Insert concatenates the text
//   - Delete + Delete sums the counts
//   - Move + Move sums the deltas
//   - Select + Select keeps the later selection, with its delta re-expressed
//     relative to the cursor the earlier one started from
//
// Empty inserts and non-positive deletes are dropped. Order is preserved and
// the result is never longer than the input. Replaying the result has the same
// effect as replaying the input as long as no intermediate position was
// clamped at a buffer boundary, which holds on the buffer it was recorded from.
//
// The input slice is not modified.
func Coalesce(actions []Action) []Action {
	out := make([]Action, 0, len(actions))
	var acc Action

	for _, a := range actions {
		if isEmptyAction(a) {
			continue
		}
		if acc == nil {
			acc = a
			continue
		}
		if merged, ok := merge(acc, a); ok {
			acc = merged
			continue
		}
		out = append(out, acc)
		acc = a
	}
	if acc != nil {
		out = append(out, acc)
	}
	return out
}

func isEmptyAction(a Action) bool {
	switch a := a.(type) {
	case Insert:
		return a.Text == ""
	case Delete:
		return a.Count <= 0
	default:
		return false
	}
}

// merge combines b into acc when both have the same kind.
func merge(acc, b Action) (Action, bool) {
	switch acc := acc.(type) {
	case Insert:
		if b, ok := b.(Insert); ok {
			return Insert{Text: acc.Text + b.Text}, true
		}
	case Delete:
		if b, ok := b.(Delete); ok {
			return Delete{Count: acc.Count + b.Count}, true
		}
	case Move:
		if b, ok := b.(Move); ok {
			return Move{Delta: acc.Delta + b.Delta}, true
		}
	case Select:
		// Selections don't add up: the later one wins. Its delta is relative
		// to the earlier selection's end, which sits acc.Delta+acc.Length
		// from where acc started.
		if b, ok := b.(Select); ok {
			return Select{Delta: acc.Delta + acc.Length + b.Delta, Length: b.Length}, true
		}
	default:
		panic(unknownAction(acc))
	}
	return nil, false
}
