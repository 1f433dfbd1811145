package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gdamore/tcell/v2"
	xterm "golang.org/x/term"

	"github.com/dshills/keymacro/internal/app"
	"github.com/dshills/keymacro/internal/config"
	"github.com/dshills/keymacro/internal/macro"
	"github.com/dshills/keymacro/internal/script"
	"github.com/dshills/keymacro/internal/surface"
	"github.com/dshills/keymacro/internal/term"
)

// ==================== edit ====================

type editCommand struct {
	Args struct {
		File string `positional-arg-name:"FILE" description:"File to edit; created on save if missing"`
	} `positional-args:"yes" required:"yes"`
}

func (c *editCommand) Execute([]string) error {
	if !xterm.IsTerminal(int(os.Stdin.Fd())) || !xterm.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("edit needs an interactive terminal")
	}

	// Log lines would corrupt the screen; send them to a file.
	logPath := filepath.Join(config.DefaultDir(), "keymacro.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()

	a, err := newApp(true, logFile)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.Open(c.Args.File)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initialize terminal: %w", err)
	}
	defer screen.Fini()
	screen.EnablePaste()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ed := term.New(screen, doc.Buffer, a.Store(),
		term.WithSave(doc.SaveText),
		term.WithTitle(doc.Name),
		term.WithLogger(a.Logger()),
	)
	if err := ed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ==================== list / show ====================

type listCommand struct {
	Actions bool `short:"a" long:"actions" description:"Also list each macro's actions"`
}

func (c *listCommand) Execute([]string) error {
	a, err := newApp(false, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	macros, err := a.Store().Macros()
	if err != nil {
		return err
	}
	if len(macros) == 0 {
		fmt.Fprintln(stderr, "no macros")
		return nil
	}

	width := 0
	for _, m := range macros {
		width = max(width, len(m.Name))
	}
	for _, m := range macros {
		item := macro.ItemFor(m)
		fmt.Fprintf(stdout, "%-*s  %d actions\n", width, item.Name, item.ActionCount)
		if c.Actions {
			for _, ai := range macro.ActionItemsFor(m) {
				fmt.Fprintf(stdout, "    %s\n", ai.Tooltip)
			}
		}
	}
	return nil
}

type showCommand struct {
	JSON bool `short:"j" long:"json" description:"Print the macro as JSON"`
	Args struct {
		Name string `positional-arg-name:"NAME"`
	} `positional-args:"yes" required:"yes"`
}

func (c *showCommand) Execute([]string) error {
	a, err := newApp(false, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.JSON {
		out, err := a.Store().Export(c.Args.Name)
		if err != nil {
			return err
		}
		fmt.Fprint(stdout, out)
		return nil
	}

	items, err := a.Store().ActionItems(c.Args.Name)
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Fprintf(stdout, "%3d  %s\n", item.Index+1, item.Tooltip)
	}
	return nil
}

// ==================== replay / run ====================

// outputOptions choose where a modified document goes.
type outputOptions struct {
	Write  bool   `short:"w" long:"write" description:"Write the result back to FILE"`
	Output string `short:"o" long:"output" description:"Write the result to PATH" value-name:"PATH"`
}

func (o outputOptions) emit(doc *app.Document) error {
	switch {
	case o.Output != "":
		return doc.WriteTo(o.Output, doc.Buffer.Text())
	case o.Write:
		return doc.Save()
	default:
		_, err := fmt.Fprint(stdout, doc.Buffer.Text())
		return err
	}
}

type replayCommand struct {
	outputOptions
	Cursor int  `long:"cursor" default:"0" description:"Character offset to start replaying from"`
	AtEnd  bool `long:"at-end" description:"Start replaying from the end of the text"`
	Args   struct {
		File string `positional-arg-name:"FILE" required:"yes"`
		Name string `positional-arg-name:"NAME" description:"Macro to replay; defaults to the most recently added"`
	} `positional-args:"yes"`
}

func (c *replayCommand) Execute([]string) error {
	a, err := newApp(false, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := app.OpenDocument(c.Args.File)
	if err != nil {
		return err
	}
	cursor := c.Cursor
	if c.AtEnd {
		cursor = doc.Buffer.Len()
	}
	if err := doc.Buffer.SetSelection(surface.Cursor(cursor)); err != nil {
		return fmt.Errorf("--cursor: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var report macro.Report
	if c.Args.Name == "" {
		report, err = a.Store().ReplayLast(ctx, doc.Buffer)
	} else {
		report, err = a.Store().Replay(ctx, c.Args.Name, doc.Buffer)
	}
	if err != nil {
		return err
	}
	for _, f := range report.Failures {
		fmt.Fprintf(stderr, "warning: %v\n", f)
	}
	return c.emit(doc)
}

type runCommand struct {
	outputOptions
	Args struct {
		Script string `positional-arg-name:"SCRIPT" required:"yes"`
		File   string `positional-arg-name:"FILE"`
	} `positional-args:"yes"`
}

func (c *runCommand) Execute([]string) error {
	a, err := newApp(false, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	var doc *app.Document
	if c.Args.File != "" {
		if doc, err = a.Open(c.Args.File); err != nil {
			return err
		}
	} else {
		doc = &app.Document{Name: "[scratch]", Buffer: surface.NewBuffer("", surface.WithObserver(a.Store()))}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := script.New(a.Store(), doc.Buffer,
		script.WithOutput(stdout),
		script.WithLogger(a.Logger()),
		script.WithTimeout(0),
	)
	defer eng.Close()

	if err := eng.RunFile(ctx, c.Args.Script); err != nil {
		return err
	}
	if c.Args.File == "" || (!c.Write && c.Output == "") {
		return nil
	}
	return c.emit(doc)
}

// ==================== collection ====================

type renameCommand struct {
	Args struct {
		Name    string `positional-arg-name:"NAME"`
		NewName string `positional-arg-name:"NEW-NAME"`
	} `positional-args:"yes" required:"yes"`
}

func (c *renameCommand) Execute([]string) error {
	a, err := newApp(false, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Store().Rename(c.Args.Name, c.Args.NewName)
}

type removeCommand struct {
	Args struct {
		Names []string `positional-arg-name:"NAME"`
	} `positional-args:"yes" required:"yes"`
}

func (c *removeCommand) Execute([]string) error {
	a, err := newApp(false, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, name := range c.Args.Names {
		if err := a.Store().Remove(name); err != nil {
			return err
		}
	}
	return nil
}

type duplicateCommand struct {
	Args struct {
		Name string `positional-arg-name:"NAME"`
	} `positional-args:"yes" required:"yes"`
}

func (c *duplicateCommand) Execute([]string) error {
	a, err := newApp(false, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	name, err := a.Store().Duplicate(c.Args.Name)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, name)
	return nil
}

type compressCommand struct {
	Args struct {
		Names []string `positional-arg-name:"NAME" description:"Macros to compress; all when omitted"`
	} `positional-args:"yes"`
}

func (c *compressCommand) Execute([]string) error {
	a, err := newApp(false, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	names := c.Args.Names
	if len(names) == 0 {
		macros, err := a.Store().Macros()
		if err != nil {
			return err
		}
		for _, m := range macros {
			names = append(names, m.Name)
		}
	}
	for _, name := range names {
		before, after, err := a.Store().Compress(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s: %d -> %d actions\n", name, before, after)
	}
	return nil
}

// ==================== config ====================

type configCommand struct{}

func (c *configCommand) Execute([]string) error {
	a, err := newApp(false, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := config.Encode(a.Settings())
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "# %s\n", a.ConfigPath())
	_, err = stdout.Write(data)
	return err
}
