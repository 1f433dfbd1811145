// Package script runs Lua scripts against the macro store and an editing
// surface.
//
// Scripts execute in a sandboxed gopher-lua state. Only the base, table,
// string and math libraries are opened; dofile, loadfile, load and
// loadstring are removed, and require resolves only the safe built-in
// libraries and the two modules below.
//
// # Modules
//
// The macros module wraps the macro store:
//
//	macros.list()              -- names in order
//	macros.count()
//	macros.get(name)           -- {name=, expanded=, actions={{type="INS", text=...}, ...}}
//	macros.describe(name)      -- action descriptions
//	macros.replay(name)        -- applied, failed
//	macros.replay_last()
//	macros.rename(old, new)
//	macros.remove(name)
//	macros.duplicate(name)     -- name of the copy
//	macros.compress(name)      -- before, after
//	macros.export(name)        -- indented JSON
//	macros.recording()
//	macros.start()
//	macros.stop()              -- saved macro name, or nil
//
// The buf module wraps the surface:
//
//	buf.text()
//	buf.len()
//	buf.cursor()
//	buf.selection()            -- start, end
//	buf.move(offset)
//	buf.select(start, end)
//	buf.insert(text)           -- replaces the selection, cursor after the text
//	buf.delete(count)          -- deletes the selection, or count characters after the cursor
//
// Functions that fail because of a store or surface error return nil and
// an error message, so scripts can recover:
//
//	local ok, err = macros.rename("Macro 1", "wrap")
//	if not ok then print(err) end
//
// Argument errors raise a Lua error and abort the script.
//
// # Usage
//
//	eng := script.New(store, buf, script.WithOutput(os.Stdout))
//	defer eng.Close()
//
//	if err := eng.RunFile(ctx, "tidy.lua"); err != nil {
//	    log.Fatal(err)
//	}
package script
