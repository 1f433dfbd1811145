package macro

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// The persisted blob is a JSON array of macros:
//
//	[{"name":"Macro 1","actions":[{"type":"INS","text":"hi"},{"type":"POS","delta":-2}],"isExpanded":false}]
//
// Action objects carry a "type" tag and the fields of their kind:
// INS text, DEL count, POS delta, SEL delta and length.

// Encode serializes macros to the persisted blob.
func Encode(macros []Macro) (string, error) {
	items := make([]string, 0, len(macros))
	for _, m := range macros {
		item, err := EncodeMacro(m)
		if err != nil {
			return "", err
		}
		items = append(items, item)
	}
	return "[" + strings.Join(items, ",") + "]", nil
}

// EncodeMacro serializes a single macro object.
func EncodeMacro(m Macro) (string, error) {
	actions := make([]string, 0, len(m.Actions))
	for i, a := range m.Actions {
		obj, err := encodeAction(a)
		if err != nil {
			return "", fmt.Errorf("macro %q action %d: %w", m.Name, i, err)
		}
		actions = append(actions, obj)
	}

	obj, err := sjson.Set("{}", "name", m.Name)
	if err != nil {
		return "", err
	}
	if obj, err = sjson.SetRaw(obj, "actions", "["+strings.Join(actions, ",")+"]"); err != nil {
		return "", err
	}
	return sjson.Set(obj, "isExpanded", m.Expanded)
}

// ExportJSON returns a macro as indented JSON for display or sharing.
func ExportJSON(m Macro) (string, error) {
	obj, err := EncodeMacro(m)
	if err != nil {
		return "", err
	}
	return string(pretty.Pretty([]byte(obj))), nil
}

func encodeAction(a Action) (string, error) {
	obj, err := sjson.Set("{}", "type", string(a.Kind()))
	if err != nil {
		return "", err
	}

	switch a := a.(type) {
	case Insert:
		return sjson.Set(obj, "text", a.Text)
	case Delete:
		return sjson.Set(obj, "count", a.Count)
	case Move:
		return sjson.Set(obj, "delta", a.Delta)
	case Select:
		if obj, err = sjson.Set(obj, "delta", a.Delta); err != nil {
			return "", err
		}
		return sjson.Set(obj, "length", a.Length)
	default:
		panic(unknownAction(a))
	}
}

// Decode parses a persisted blob. An empty blob is an empty collection.
// Any structural problem, an unknown action type, an invalid field or a
// duplicate macro name yields an error wrapping ErrMalformedState.
func Decode(blob string) ([]Macro, error) {
	if strings.TrimSpace(blob) == "" {
		return nil, nil
	}
	if !gjson.Valid(blob) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedState)
	}

	root := gjson.Parse(blob)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: expected array, got %s", ErrMalformedState, root.Type)
	}

	var (
		macros []Macro
		seen   = make(map[string]bool)
		err    error
	)
	root.ForEach(func(key, value gjson.Result) bool {
		var m Macro
		m, err = decodeMacro(value)
		if err != nil {
			err = fmt.Errorf("%w: macro %d: %v", ErrMalformedState, key.Int(), err)
			return false
		}
		if seen[m.Name] {
			err = fmt.Errorf("%w: duplicate macro name %q", ErrMalformedState, m.Name)
			return false
		}
		seen[m.Name] = true
		macros = append(macros, m)
		return true
	})
	if err != nil {
		return nil, err
	}
	return macros, nil
}

func decodeMacro(v gjson.Result) (Macro, error) {
	if !v.IsObject() {
		return Macro{}, fmt.Errorf("expected object, got %s", v.Type)
	}

	name := v.Get("name")
	if name.Type != gjson.String || name.String() == "" {
		return Macro{}, fmt.Errorf("missing name")
	}

	m := Macro{Name: name.String()}

	// A missing flag means collapsed.
	if exp := v.Get("isExpanded"); exp.Exists() {
		if exp.Type != gjson.True && exp.Type != gjson.False {
			return Macro{}, fmt.Errorf("isExpanded: expected boolean")
		}
		m.Expanded = exp.Bool()
	}

	actions := v.Get("actions")
	if !actions.IsArray() {
		return Macro{}, fmt.Errorf("actions: expected array")
	}
	var err error
	actions.ForEach(func(key, value gjson.Result) bool {
		var a Action
		a, err = decodeAction(value)
		if err != nil {
			err = fmt.Errorf("action %d: %w", key.Int(), err)
			return false
		}
		m.Actions = append(m.Actions, a)
		return true
	})
	if err != nil {
		return Macro{}, err
	}
	return m, nil
}

func decodeAction(v gjson.Result) (Action, error) {
	if !v.IsObject() {
		return nil, fmt.Errorf("expected object, got %s", v.Type)
	}

	switch typ := v.Get("type").String(); Kind(typ) {
	case KindInsert:
		text := v.Get("text")
		if text.Type != gjson.String || text.String() == "" {
			return nil, fmt.Errorf("INS: missing text")
		}
		return Insert{Text: text.String()}, nil

	case KindDelete:
		count, err := intField(v, "count")
		if err != nil {
			return nil, err
		}
		if count <= 0 {
			return nil, fmt.Errorf("DEL: count must be positive, got %d", count)
		}
		return Delete{Count: count}, nil

	case KindMove:
		delta, err := intField(v, "delta")
		if err != nil {
			return nil, err
		}
		return Move{Delta: delta}, nil

	case KindSelect:
		delta, err := intField(v, "delta")
		if err != nil {
			return nil, err
		}
		length, err := intField(v, "length")
		if err != nil {
			return nil, err
		}
		if length < 0 {
			return nil, fmt.Errorf("SEL: negative length %d", length)
		}
		return Select{Delta: delta, Length: length}, nil

	default:
		return nil, fmt.Errorf("unknown action type %q", typ)
	}
}

func intField(v gjson.Result, name string) (int, error) {
	f := v.Get(name)
	if f.Type != gjson.Number {
		return 0, fmt.Errorf("%s: expected number", name)
	}
	if f.Float() != float64(f.Int()) {
		return 0, fmt.Errorf("%s: expected integer, got %s", name, f.Raw)
	}
	return int(f.Int()), nil
}
