// Package main is the entry point for keymacro, a text-edit macro recorder.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/dshills/keymacro/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type globalOptions struct {
	Config   string `short:"c" long:"config" description:"Path to the settings file" value-name:"FILE"`
	Store    string `short:"s" long:"store" description:"Path to the macro store document (overrides storage.path)" value-name:"FILE"`
	LogLevel string `short:"l" long:"log-level" description:"Log level" choice:"debug" choice:"info" choice:"warn" choice:"error"`
}

var globals globalOptions

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	parser := newParser()
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, flagsErr.Message)
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if flagsErr != nil {
			return 2
		}
		return 1
	}
	return 0
}

func newParser() *flags.Parser {
	globals = globalOptions{}
	parser := flags.NewParser(&globals, flags.HelpFlag|flags.PassDoubleDash)
	parser.ShortDescription = "Record and replay text-edit macros"
	parser.LongDescription = "keymacro records editing sessions as position-independent macros " +
		"and replays them against text files."

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"edit", "Open a file in the terminal editor", "Ctrl-R toggles recording, Ctrl-P replays the last macro, Ctrl-T replays a macro by name, Ctrl-S saves and Ctrl-Q quits.", &editCommand{}},
		{"list", "List saved macros", "", &listCommand{}},
		{"show", "Show the actions of a macro", "", &showCommand{}},
		{"replay", "Replay a macro against a file", "The result is written to stdout unless --write or --output is given.", &replayCommand{}},
		{"rename", "Rename a macro", "", &renameCommand{}},
		{"remove", "Remove a macro", "", &removeCommand{}},
		{"duplicate", "Copy a macro under a new name", "", &duplicateCommand{}},
		{"compress", "Merge adjacent actions of the same kind", "", &compressCommand{}},
		{"run", "Run a Lua script against the macro store", "The script sees the macros and buf modules. buf is the document given as FILE, or an empty buffer.", &runCommand{}},
		{"config", "Print the effective settings", "", &configCommand{}},
		{"version", "Print version information", "", &versionCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			panic(err)
		}
	}
	return parser
}

// newApp creates the application from the global options.
func newApp(watch bool, logOutput io.Writer) (*app.App, error) {
	return app.New(app.Options{
		ConfigPath: globals.Config,
		StorePath:  globals.Store,
		LogLevel:   globals.LogLevel,
		LogOutput:  logOutput,
		Watch:      watch,
	})
}

type versionCommand struct{}

func (c *versionCommand) Execute([]string) error {
	fmt.Fprintf(stdout, "keymacro %s\n", version)
	fmt.Fprintf(stdout, "Commit: %s\n", commit)
	fmt.Fprintf(stdout, "Built: %s\n", date)
	return nil
}
