package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keymacro/internal/kvstore"
	"github.com/dshills/keymacro/internal/macro"
)

type cli struct {
	t      *testing.T
	dir    string
	store  string
	config string
	out    bytes.Buffer
	errOut bytes.Buffer
}

func newCLI(t *testing.T, macros ...macro.Macro) *cli {
	t.Helper()
	dir := t.TempDir()
	c := &cli{
		t:      t,
		dir:    dir,
		store:  filepath.Join(dir, "store.json"),
		config: filepath.Join(dir, "config.toml"),
	}
	blob, err := macro.Encode(macros)
	require.NoError(t, err)
	require.NoError(t, kvstore.NewFile(c.store).Set(macro.DefaultStorageKey, blob))

	prevOut, prevErr := stdout, stderr
	stdout, stderr = &c.out, &c.errOut
	t.Cleanup(func() { stdout, stderr = prevOut, prevErr })
	return c
}

func (c *cli) run(args ...string) int {
	c.out.Reset()
	c.errOut.Reset()
	return run(append([]string{"-c", c.config, "-s", c.store, "-l", "error"}, args...))
}

func (c *cli) file(name, content string) string {
	path := filepath.Join(c.dir, name)
	require.NoError(c.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (c *cli) macros() []macro.Macro {
	macros, err := macro.NewStore(kvstore.NewFile(c.store)).Macros()
	require.NoError(c.t, err)
	return macros
}

var (
	wrapMacro = macro.Macro{Name: "wrap", Actions: []macro.Action{
		macro.Insert{Text: "("}, macro.Move{Delta: 3}, macro.Insert{Text: ")"},
	}}
	typeMacro = macro.Macro{Name: "type", Actions: []macro.Action{
		macro.Insert{Text: "a"}, macro.Insert{Text: "b"},
	}}
)

func TestList(t *testing.T) {
	c := newCLI(t, wrapMacro, typeMacro)

	require.Equal(t, 0, c.run("list"))
	assert.Equal(t, "wrap  3 actions\ntype  2 actions\n", c.out.String())

	require.Equal(t, 0, c.run("list", "--actions"))
	assert.Contains(t, c.out.String(), "    POS +3\n")
}

func TestList_Empty(t *testing.T) {
	c := newCLI(t)

	require.Equal(t, 0, c.run("list"))
	assert.Empty(t, c.out.String())
	assert.Contains(t, c.errOut.String(), "no macros")
}

func TestShow(t *testing.T) {
	c := newCLI(t, wrapMacro)

	require.Equal(t, 0, c.run("show", "wrap"))
	assert.Equal(t, "  1  INS (\n  2  POS +3\n  3  INS )\n", c.out.String())

	require.Equal(t, 0, c.run("show", "--json", "wrap"))
	assert.Contains(t, c.out.String(), `"name": "wrap"`)

	assert.Equal(t, 1, c.run("show", "nope"))
	assert.Contains(t, c.errOut.String(), "macro not found")
}

func TestReplay(t *testing.T) {
	c := newCLI(t, wrapMacro, typeMacro)
	path := c.file("in.txt", "abc def")

	require.Equal(t, 0, c.run("replay", path, "wrap"))
	assert.Equal(t, "(abc) def", c.out.String())

	require.Equal(t, 0, c.run("replay", "--cursor", "4", path, "wrap"))
	assert.Equal(t, "abc (def)", c.out.String())

	// The last macro by default.
	require.Equal(t, 0, c.run("replay", "--at-end", path))
	assert.Equal(t, "abc defab", c.out.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc def", string(data))
}

func TestReplay_WriteAndOutput(t *testing.T) {
	c := newCLI(t, wrapMacro)
	path := c.file("in.txt", "abc")
	out := filepath.Join(c.dir, "out.txt")

	require.Equal(t, 0, c.run("replay", "-o", out, path, "wrap"))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "(abc)", string(data))

	require.Equal(t, 0, c.run("replay", "-w", path, "wrap"))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "(abc)", string(data))
	assert.Empty(t, c.out.String())
}

func TestReplay_ClampsMoves(t *testing.T) {
	c := newCLI(t, wrapMacro)
	path := c.file("in.txt", "ab")

	require.Equal(t, 0, c.run("replay", path, "wrap"))
	assert.Equal(t, "(ab)", c.out.String())
}

func TestReplay_Errors(t *testing.T) {
	c := newCLI(t, wrapMacro)
	path := c.file("in.txt", "abc")

	assert.Equal(t, 1, c.run("replay", path, "nope"))
	assert.Equal(t, 1, c.run("replay", "--cursor", "10", path, "wrap"))
	assert.Contains(t, c.errOut.String(), "--cursor")
	assert.Equal(t, 2, c.run("replay"))
}

func TestRenameRemoveDuplicate(t *testing.T) {
	c := newCLI(t, wrapMacro, typeMacro)

	require.Equal(t, 0, c.run("rename", "wrap", "parens"))
	require.Equal(t, 0, c.run("duplicate", "parens"))
	assert.Equal(t, "parens (Copy)\n", c.out.String())
	require.Equal(t, 0, c.run("remove", "type", "parens"))

	macros := c.macros()
	require.Len(t, macros, 1)
	assert.Equal(t, "parens (Copy)", macros[0].Name)

	assert.Equal(t, 1, c.run("rename", "parens (Copy)", "  "))
	assert.Contains(t, c.errOut.String(), "empty")
}

func TestCompress(t *testing.T) {
	c := newCLI(t, wrapMacro, typeMacro)

	require.Equal(t, 0, c.run("compress"))
	assert.Equal(t, "wrap: 3 -> 3 actions\ntype: 2 -> 1 actions\n", c.out.String())

	macros := c.macros()
	assert.Equal(t, []macro.Action{macro.Insert{Text: "ab"}}, macros[1].Actions)
}

func TestRun(t *testing.T) {
	c := newCLI(t, typeMacro)
	path := c.file("doc.txt", "xy")
	lua := c.file("s.lua", `
		print(macros.count())
		buf.move(buf.len())
		macros.replay("type")
	`)

	require.Equal(t, 0, c.run("run", "-w", lua, path))
	assert.Equal(t, "1\n", c.out.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "xyab", string(data))

	bad := c.file("bad.lua", `error("boom")`)
	assert.Equal(t, 1, c.run("run", bad))
	assert.Contains(t, c.errOut.String(), "boom")
}

func TestConfigAndVersion(t *testing.T) {
	c := newCLI(t)
	c.file("config.toml", "[macros]\ncompress = true\n")

	require.Equal(t, 0, c.run("config"))
	assert.Contains(t, c.out.String(), "compress = true")
	assert.Contains(t, c.out.String(), c.config)

	require.Equal(t, 0, c.run("version"))
	assert.Contains(t, c.out.String(), "keymacro dev")
}

func TestUsageErrors(t *testing.T) {
	c := newCLI(t)

	assert.Equal(t, 2, c.run("bogus"))
	assert.Equal(t, 2, run([]string{"-l", "loud", "list"}))
	assert.Equal(t, 0, c.run("--help"))
	assert.Contains(t, c.out.String(), "Usage")
}
