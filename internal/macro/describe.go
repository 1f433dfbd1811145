package macro

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// PreviewLength is the number of characters of inserted text shown in a description.
const PreviewLength = 20

// Describe returns the short form of an action shown in macro listings:
//
//	INS <escaped, truncated text>
//	DEL <count>
//	POS <signed delta>
//	SEL <delta>[..length]
func Describe(a Action) string {
	switch a := a.(type) {
	case Insert:
		return "INS " + EscapeAndTruncate(a.Text, PreviewLength)
	case Delete:
		return fmt.Sprintf("DEL %d", a.Count)
	case Move:
		if a.Delta > 0 {
			return fmt.Sprintf("POS +%d", a.Delta)
		}
		return fmt.Sprintf("POS %d", a.Delta)
	case Select:
		if a.Length > 0 {
			return fmt.Sprintf("SEL %d..%d", a.Delta, a.Length)
		}
		return fmt.Sprintf("SEL %d", a.Delta)
	default:
		panic(unknownAction(a))
	}
}

var controlEscaper = strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`)

// EscapeAndTruncate replaces newlines, carriage returns and tabs with their
// two-character escapes, then cuts the result to limit user-perceived
// characters followed by "..." if it was longer.
func EscapeAndTruncate(text string, limit int) string {
	escaped := controlEscaper.Replace(text)

	var b strings.Builder
	g := uniseg.NewGraphemes(escaped)
	n := 0
	for g.Next() {
		if n == limit {
			b.WriteString("...")
			return b.String()
		}
		b.WriteString(g.Str())
		n++
	}
	return b.String()
}

// MacroItem is the read-only projection of a macro for a list view.
type MacroItem struct {
	Name            string
	ActionCount     int
	Expanded        bool
	Tooltip         string // "<name> (<n> actions)"
	DescriptiveText string // "＝ <n> actions"
}

// ActionItem is the read-only projection of one action for a list view.
type ActionItem struct {
	MacroName string
	Index     int
	Kind      Kind   // Selects the item icon
	Label     string // Description without the kind prefix
	Tooltip   string // Full description
}

// ItemFor projects a macro.
func ItemFor(m Macro) MacroItem {
	n := len(m.Actions)
	return MacroItem{
		Name:            m.Name,
		ActionCount:     n,
		Expanded:        m.Expanded,
		Tooltip:         fmt.Sprintf("%s (%d actions)", m.Name, n),
		DescriptiveText: fmt.Sprintf("＝ %d actions", n),
	}
}

// ActionItemsFor projects the actions of a macro in order.
func ActionItemsFor(m Macro) []ActionItem {
	items := make([]ActionItem, len(m.Actions))
	for i, a := range m.Actions {
		desc := Describe(a)
		items[i] = ActionItem{
			MacroName: m.Name,
			Index:     i,
			Kind:      a.Kind(),
			Label:     strings.TrimPrefix(desc, string(a.Kind())+" "),
			Tooltip:   desc,
		}
	}
	return items
}
