package macro

// ChangeKind classifies a detected change.
type ChangeKind uint8

const (
	// ChangeNone means the texts are identical.
	ChangeNone ChangeKind = iota
	// ChangeInsert means new text appeared, possibly replacing old text.
	ChangeInsert
	// ChangeDelete means text was removed and nothing was inserted.
	ChangeDelete
)

// String returns a string representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeNone:
		return "none"
	case ChangeInsert:
		return "insert"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is the single contiguous edit that turns one text into another.
// The old text's [Pos, Pos+Removed) was replaced by Text.
type Change struct {
	Kind    ChangeKind
	Pos     int    // Character offset where the texts diverge
	Text    string // Inserted text; empty for ChangeDelete
	Removed int    // Characters of old text replaced or deleted
}

// DetectChange finds the edit between oldText and newText by trimming their
// longest common prefix and then their longest common suffix. The prefix and
// suffix never overlap.
//
// Editors report one contiguous edit per change, which this recovers exactly.
// Two disjoint edits in one notification (multi-cursor typing, replace all)
// come back as a single replacement spanning both.
func DetectChange(oldText, newText string) Change {
	if oldText == newText {
		return Change{Kind: ChangeNone}
	}

	o := []rune(oldText)
	n := []rune(newText)

	i := 0
	for i < len(o) && i < len(n) && o[i] == n[i] {
		i++
	}

	j := 0
	for j < len(o)-i && j < len(n)-i && o[len(o)-1-j] == n[len(n)-1-j] {
		j++
	}

	removed := len(o) - j - i
	switch {
	case i < len(n)-j:
		return Change{
			Kind:    ChangeInsert,
			Pos:     i,
			Text:    string(n[i : len(n)-j]),
			Removed: removed,
		}
	case removed > 0:
		return Change{Kind: ChangeDelete, Pos: i, Removed: removed}
	default:
		return Change{Kind: ChangeNone}
	}
}
