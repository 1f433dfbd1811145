// Package term is a minimal terminal editor for recording and replaying
// macros interactively.
//
// The editor owns one surface.Buffer with the macro store attached as its
// observer, so every edit made while recording is captured. Macro commands
// go through command.Handler; the editor is its Host.
package term

import (
	"context"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/keymacro/internal/command"
	"github.com/dshills/keymacro/internal/logging"
	"github.com/dshills/keymacro/internal/macro"
	"github.com/dshills/keymacro/internal/surface"
)

// SaveFunc persists the buffer text.
type SaveFunc func(text string) error

// Editor is an interactive editing session on a tcell screen.
type Editor struct {
	screen  tcell.Screen
	buf     *surface.Buffer
	store   *macro.Store
	handler *command.Handler
	save    SaveFunc
	logger  *logging.Logger
	title   string

	mu        sync.Mutex
	status    string
	clipboard string
	prompt    *promptLine

	// replay runs off the event loop so pacing doesn't block input.
	replayCancel context.CancelFunc
	replayDone   chan struct{}

	quit bool
}

// Option configures an Editor.
type Option func(*Editor)

// WithSave sets the function Ctrl-S calls.
func WithSave(fn SaveFunc) Option {
	return func(e *Editor) {
		e.save = fn
	}
}

// WithTitle sets the name shown in the status line.
func WithTitle(title string) Option {
	return func(e *Editor) {
		e.title = title
	}
}

// WithLogger sets the editor's logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an editor on an initialized screen. The store is attached to
// buf as its observer.
func New(screen tcell.Screen, buf *surface.Buffer, store *macro.Store, opts ...Option) *Editor {
	e := &Editor{
		screen: screen,
		buf:    buf,
		store:  store,
		logger: logging.Null(),
		title:  "[scratch]",
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("term")
	e.handler = command.NewHandler(store, e, e.logger)
	buf.SetObserver(&redrawObserver{next: store, screen: screen})
	return e
}

// redrawObserver forwards buffer events to the store and wakes the event
// loop so edits made off the loop, during a replay, are drawn.
type redrawObserver struct {
	next   surface.Observer
	screen tcell.Screen
}

func (o *redrawObserver) OnContentChanged(oldText, newText string) {
	o.next.OnContentChanged(oldText, newText)
	_ = o.screen.PostEvent(tcell.NewEventInterrupt(nil)) // best-effort; queue may be full
}

func (o *redrawObserver) OnSelectionChanged(oldSel, newSel surface.Range) {
	o.next.OnSelectionChanged(oldSel, newSel)
	_ = o.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

// Run processes events until the user quits, the screen is finalized or
// ctx is cancelled. A replay in progress is cancelled and waited for.
func (e *Editor) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = e.screen.PostEvent(tcell.NewEventInterrupt(ctx.Err()))
		case <-done:
		}
	}()

	defer e.stopReplay()

	for !e.quit {
		e.draw()
		ev := e.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		e.handleEvent(ctx, ev)
	}
	return nil
}

func (e *Editor) handleEvent(ctx context.Context, ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		e.screen.Sync()
	case *tcell.EventKey:
		e.handleKey(ctx, ev)
	}
}

// exec runs a macro command on the event loop.
func (e *Editor) exec(ctx context.Context, name string, args command.Args) command.Result {
	return e.handler.Handle(ctx, command.Action{Name: name, Args: args})
}

// replayAsync runs a replay command in the background. Only one replay runs
// at a time.
func (e *Editor) replayAsync(ctx context.Context, name string, args command.Args) {
	e.mu.Lock()
	if e.replayDone != nil {
		e.mu.Unlock()
		e.Notify("macro: replay in progress")
		return
	}
	rctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.replayCancel = cancel
	e.replayDone = done
	e.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		e.exec(rctx, name, args)

		e.mu.Lock()
		e.replayCancel = nil
		e.replayDone = nil
		e.mu.Unlock()
		_ = e.screen.PostEvent(tcell.NewEventInterrupt(nil))
	}()
}

// Replaying returns true while a background replay runs.
func (e *Editor) Replaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.replayDone != nil
}

// cancelReplay cancels a running replay without waiting for it.
func (e *Editor) cancelReplay() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayCancel == nil {
		return false
	}
	e.replayCancel()
	return true
}

// stopReplay cancels a running replay and waits for it to finish.
func (e *Editor) stopReplay() {
	e.mu.Lock()
	cancel, done := e.replayCancel, e.replayDone
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// ==================== command.Host ====================

// ActiveSurface returns the editor's buffer.
func (e *Editor) ActiveSurface() surface.Surface {
	return e.buf
}

// Beep rings the terminal bell.
func (e *Editor) Beep() {
	_ = e.screen.Beep() // best-effort; terminal may not support beep
}

// Notify sets the status message.
func (e *Editor) Notify(msg string) {
	e.mu.Lock()
	e.status = msg
	e.mu.Unlock()
	_ = e.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

// Status returns the current status message.
func (e *Editor) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SetClipboard stores text in the editor's clipboard. Ctrl-V pastes it.
func (e *Editor) SetClipboard(text string) error {
	e.mu.Lock()
	e.clipboard = text
	e.mu.Unlock()
	return nil
}

// Clipboard returns the clipboard contents.
func (e *Editor) Clipboard() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clipboard
}
