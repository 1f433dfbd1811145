// Package command exposes macro operations as named commands a host can bind
// to keys or menu entries.
//
// Every command is a thin call into macro.Store. Failures never escape as
// panics or returned errors; they come back as a Result, and a missing macro
// additionally makes the host beep.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/keymacro/internal/logging"
	"github.com/dshills/keymacro/internal/macro"
	"github.com/dshills/keymacro/internal/surface"
)

// Command names.
const (
	ActionToggleRecording = "macro.toggleRecording"
	ActionStartRecording  = "macro.startRecording"
	ActionStopRecording   = "macro.stopRecording"
	ActionReplay          = "macro.replay"
	ActionReplayLast      = "macro.replayLast"
	ActionView            = "macro.view"
	ActionList            = "macro.list"
	ActionRename          = "macro.rename"
	ActionRemove          = "macro.remove"
	ActionDuplicate       = "macro.duplicate"
	ActionCompress        = "macro.compress"
	ActionToggleExpansion = "macro.toggleExpansion"
)

var actionNames = []string{
	ActionToggleRecording,
	ActionStartRecording,
	ActionStopRecording,
	ActionReplay,
	ActionReplayLast,
	ActionView,
	ActionList,
	ActionRename,
	ActionRemove,
	ActionDuplicate,
	ActionCompress,
	ActionToggleExpansion,
}

// Names returns every command name.
func Names() []string {
	return append([]string(nil), actionNames...)
}

// Args are the arguments of a command. Commands that need a missing
// argument ask the host for it.
type Args struct {
	Name    string // Target macro
	NewName string // Rename target
}

// Action is a command invocation.
type Action struct {
	Name string
	Args Args
}

// Host is the environment commands run in.
type Host interface {
	// ActiveSurface returns the focused editing surface, or nil if there is none.
	ActiveSurface() surface.Surface

	// Beep signals a failed command.
	Beep()

	// Notify shows a transient status message.
	Notify(msg string)

	// Prompt asks the user for a line of text. ok is false if the user cancelled.
	Prompt(prompt, initial string) (value string, ok bool)

	// SetClipboard replaces the clipboard contents.
	SetClipboard(text string) error
}

// Handler runs macro commands against a store.
type Handler struct {
	store  *macro.Store
	host   Host
	logger *logging.Logger
}

// NewHandler creates a handler.
func NewHandler(store *macro.Store, host Host, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Null()
	}
	return &Handler{
		store:  store,
		host:   host,
		logger: logger.WithComponent("command"),
	}
}

// Namespace returns the command namespace.
func (h *Handler) Namespace() string {
	return "macro"
}

// CanHandle returns true if this handler can process the command.
func (h *Handler) CanHandle(name string) bool {
	for _, n := range actionNames {
		if n == name {
			return true
		}
	}
	return false
}

// Handle runs a command, notifies the host of its message and returns the result.
func (h *Handler) Handle(ctx context.Context, action Action) Result {
	r := h.dispatch(ctx, action)

	switch r.Status {
	case StatusError:
		h.logger.Warn("%s: %v", action.Name, r.Error)
	default:
		h.logger.Debug("%s: %s", action.Name, r.Status)
	}
	if r.Message != "" {
		h.host.Notify(r.Message)
	}
	return r
}

func (h *Handler) dispatch(ctx context.Context, action Action) Result {
	switch action.Name {
	case ActionToggleRecording:
		return h.toggleRecording()
	case ActionStartRecording:
		return h.startRecording()
	case ActionStopRecording:
		return h.stopRecording()
	case ActionReplay:
		return h.replay(ctx, action.Args)
	case ActionReplayLast:
		return h.replayLast(ctx)
	case ActionView:
		return h.view(action.Args)
	case ActionList:
		return h.list()
	case ActionRename:
		return h.rename(action.Args)
	case ActionRemove:
		return h.remove(action.Args)
	case ActionDuplicate:
		return h.duplicate(action.Args)
	case ActionCompress:
		return h.compress(action.Args)
	case ActionToggleExpansion:
		return h.toggleExpansion(action.Args)
	default:
		return Errorf("unknown command: %s", action.Name)
	}
}

// fail converts an error from the store into a result. A missing macro or an
// empty collection makes the host beep; a missing surface is a no-op.
func (h *Handler) fail(err error) Result {
	switch {
	case errors.Is(err, macro.ErrMacroNotFound), errors.Is(err, macro.ErrNoMacros):
		h.host.Beep()
		return Error(err)
	case errors.Is(err, macro.ErrNoActiveSurface):
		return NoOpWithMessage("macro: no active editor")
	case errors.Is(err, context.Canceled):
		return Cancelled().WithMessage("macro: replay cancelled")
	default:
		return Error(err)
	}
}

// name returns the macro name from args, asking the host if it's missing.
func (h *Handler) name(args Args, prompt string) (string, bool) {
	if args.Name != "" {
		return args.Name, true
	}
	name, ok := h.host.Prompt(prompt, "")
	name = strings.TrimSpace(name)
	return name, ok && name != ""
}

func (h *Handler) toggleRecording() Result {
	if h.store.IsRecording() {
		return h.stopRecording()
	}
	return h.startRecording()
}

func (h *Handler) startRecording() Result {
	if err := h.store.StartRecording(h.host.ActiveSurface()); err != nil {
		if errors.Is(err, macro.ErrAlreadyRecording) {
			return NoOpWithMessage("macro: already recording")
		}
		return h.fail(err)
	}
	return SuccessWithMessage("macro: recording").
		WithData("recording", true).
		WithData("session", h.store.Session())
}

func (h *Handler) stopRecording() Result {
	m, err := h.store.StopRecording()
	if err != nil {
		if errors.Is(err, macro.ErrNotRecording) {
			return NoOpWithMessage("macro: not recording")
		}
		return h.fail(err)
	}
	if m == nil {
		return NoOpWithMessage("macro: nothing recorded").WithData("recording", false)
	}
	return SuccessWithMessage(fmt.Sprintf("macro: saved %q (%d actions)", m.Name, len(m.Actions))).
		WithData("recording", false).
		WithData("name", m.Name).
		WithData("actionCount", len(m.Actions))
}

func (h *Handler) replay(ctx context.Context, args Args) Result {
	sf := h.host.ActiveSurface()
	if sf == nil {
		return h.fail(macro.ErrNoActiveSurface)
	}
	name, ok := h.name(args, "Replay macro")
	if !ok {
		return Cancelled()
	}
	report, err := h.store.Replay(ctx, name, sf)
	return h.replayed(name, report, err)
}

func (h *Handler) replayLast(ctx context.Context) Result {
	sf := h.host.ActiveSurface()
	if sf == nil {
		return h.fail(macro.ErrNoActiveSurface)
	}
	last, err := h.store.Last()
	if err != nil {
		return h.fail(err)
	}
	report, err := h.store.Replay(ctx, last.Name, sf)
	return h.replayed(last.Name, report, err)
}

func (h *Handler) replayed(name string, report macro.Report, err error) Result {
	if err != nil {
		return h.fail(err).WithData("report", report)
	}
	msg := fmt.Sprintf("macro: replayed %q (%d actions)", name, report.Applied)
	if report.Failed() > 0 {
		msg = fmt.Sprintf("macro: replayed %q (%d of %d actions, %d failed)",
			name, report.Applied, report.Total, report.Failed())
	}
	return SuccessWithMessage(msg).WithData("report", report)
}

func (h *Handler) view(args Args) Result {
	name, ok := h.name(args, "View macro")
	if !ok {
		return Cancelled()
	}
	out, err := h.store.Export(name)
	if err != nil {
		return h.fail(err)
	}
	r := Success().WithData("json", out)
	if err := h.host.SetClipboard(out); err != nil {
		h.logger.Warn("copy %q to clipboard: %v", name, err)
		return r.WithMessage(fmt.Sprintf("macro: %q could not be copied", name))
	}
	return r.WithMessage(fmt.Sprintf("macro: %q copied to clipboard", name))
}

func (h *Handler) list() Result {
	items, err := h.store.Items()
	if err != nil {
		return h.fail(err)
	}
	if len(items) == 0 {
		return NoOpWithMessage("macro: no macros").WithData("items", items)
	}
	return Success().WithData("items", items)
}

func (h *Handler) rename(args Args) Result {
	name, ok := h.name(args, "Rename macro")
	if !ok {
		return Cancelled()
	}
	newName := args.NewName
	if newName == "" {
		if newName, ok = h.host.Prompt("New name", name); !ok {
			return Cancelled()
		}
	}
	newName = strings.TrimSpace(newName)
	if newName == "" || newName == name {
		return NoOp()
	}

	if err := h.store.Rename(name, newName); err != nil {
		return h.fail(err)
	}
	return SuccessWithMessage(fmt.Sprintf("macro: renamed %q to %q", name, newName)).
		WithData("name", newName)
}

func (h *Handler) remove(args Args) Result {
	name, ok := h.name(args, "Remove macro")
	if !ok {
		return Cancelled()
	}
	if err := h.store.Remove(name); err != nil {
		return h.fail(err)
	}
	return SuccessWithMessage(fmt.Sprintf("macro: removed %q", name))
}

func (h *Handler) duplicate(args Args) Result {
	name, ok := h.name(args, "Duplicate macro")
	if !ok {
		return Cancelled()
	}
	copyName, err := h.store.Duplicate(name)
	if err != nil {
		return h.fail(err)
	}
	return SuccessWithMessage(fmt.Sprintf("macro: duplicated %q as %q", name, copyName)).
		WithData("name", copyName)
}

func (h *Handler) compress(args Args) Result {
	name, ok := h.name(args, "Compress macro")
	if !ok {
		return Cancelled()
	}
	before, after, err := h.store.Compress(name)
	if err != nil {
		return h.fail(err)
	}
	if after == before {
		return NoOpWithMessage(fmt.Sprintf("macro: %q is already compact (%d actions)", name, before))
	}
	return SuccessWithMessage(fmt.Sprintf("macro: compressed %q from %d to %d actions", name, before, after)).
		WithData("before", before).
		WithData("after", after)
}

func (h *Handler) toggleExpansion(args Args) Result {
	name, ok := h.name(args, "Macro")
	if !ok {
		return Cancelled()
	}
	expanded, err := h.store.ToggleExpansion(name)
	if err != nil {
		return h.fail(err)
	}
	return Success().WithData("expanded", expanded)
}
