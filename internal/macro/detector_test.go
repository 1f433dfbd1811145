package macro

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectChange(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
		want Change
	}{
		{"identical", "hello", "hello", Change{Kind: ChangeNone}},
		{"both empty", "", "", Change{Kind: ChangeNone}},
		{"append", "hello", "hello!", Change{Kind: ChangeInsert, Pos: 5, Text: "!"}},
		{"prepend", "hello", ">hello", Change{Kind: ChangeInsert, Pos: 0, Text: ">"}},
		{"into empty", "", "abc", Change{Kind: ChangeInsert, Pos: 0, Text: "abc"}},
		{"middle insert", "hello world", "hello, world", Change{Kind: ChangeInsert, Pos: 5, Text: ","}},
		{"truncate", "hello", "hel", Change{Kind: ChangeDelete, Pos: 3, Removed: 2}},
		{"clear", "abc", "", Change{Kind: ChangeDelete, Pos: 0, Removed: 3}},
		{"replace tail", "hello", "help", Change{Kind: ChangeInsert, Pos: 3, Text: "p", Removed: 2}},
		{"repeated insert", "aa", "aaa", Change{Kind: ChangeInsert, Pos: 2, Text: "a"}},
		{"repeated delete", "aaa", "aa", Change{Kind: ChangeDelete, Pos: 2, Removed: 1}},
		{"multibyte delete", "héllo", "hélo", Change{Kind: ChangeDelete, Pos: 3, Removed: 1}},
		{"multibyte replace", "ab日本cd", "ab中cd", Change{Kind: ChangeInsert, Pos: 2, Text: "中", Removed: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectChange(tt.old, tt.new))
		})
	}
}

func TestDetectChange_ReproducesNewText(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	randText := func() string {
		n := rng.Intn(8)
		r := make([]rune, n)
		for i := range r {
			r[i] = []rune("abé")[rng.Intn(3)]
		}
		return string(r)
	}

	for i := 0; i < 500; i++ {
		old, next := randText(), randText()
		c := DetectChange(old, next)

		o := []rune(old)
		got := string(o[:c.Pos]) + c.Text + string(o[c.Pos+c.Removed:])
		assert.Equal(t, next, got, "DetectChange(%q, %q) = %+v", old, next, c)

		switch c.Kind {
		case ChangeNone:
			assert.Equal(t, old, next)
		case ChangeInsert:
			assert.NotEmpty(t, c.Text)
		case ChangeDelete:
			assert.Empty(t, c.Text)
			assert.Positive(t, c.Removed)
		}
	}
}

func TestChangeKind_String(t *testing.T) {
	assert.Equal(t, "none", ChangeNone.String())
	assert.Equal(t, "insert", ChangeInsert.String())
	assert.Equal(t, "delete", ChangeDelete.String())
	assert.Equal(t, "unknown", ChangeKind(9).String())
}
