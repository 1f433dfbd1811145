package term

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/keymacro/internal/command"
	"github.com/dshills/keymacro/internal/macro"
)

// Key bindings for macro commands.
var commandKeys = map[tcell.Key]string{
	tcell.KeyCtrlR: command.ActionToggleRecording,
	tcell.KeyCtrlL: command.ActionList,
	tcell.KeyCtrlN: command.ActionRename,
	tcell.KeyCtrlD: command.ActionDuplicate,
	tcell.KeyCtrlK: command.ActionCompress,
	tcell.KeyCtrlX: command.ActionRemove,
	tcell.KeyCtrlE: command.ActionView,
}

func (e *Editor) handleKey(ctx context.Context, ev *tcell.EventKey) {
	shift := ev.Modifiers()&tcell.ModShift != 0

	if name, ok := commandKeys[ev.Key()]; ok {
		r := e.exec(ctx, name, command.Args{})
		if name == command.ActionList && r.IsOK() {
			e.Notify(listStatus(r.Data["items"].([]macro.MacroItem)))
		}
		return
	}

	var err error
	switch ev.Key() {
	case tcell.KeyCtrlQ:
		e.quit = true
	case tcell.KeyCtrlP:
		e.replayAsync(ctx, command.ActionReplayLast, command.Args{})
	case tcell.KeyCtrlT:
		if name, ok := e.Prompt("Replay macro", ""); ok && strings.TrimSpace(name) != "" {
			e.replayAsync(ctx, command.ActionReplay, command.Args{Name: strings.TrimSpace(name)})
		}
	case tcell.KeyEscape:
		if e.cancelReplay() {
			e.Notify("macro: cancelling replay")
		}
	case tcell.KeyCtrlS:
		e.saveBuffer()
	case tcell.KeyCtrlV:
		if clip := e.Clipboard(); clip != "" {
			err = e.buf.Type(clip)
		}
	case tcell.KeyRune:
		err = e.buf.Type(string(ev.Rune()))
	case tcell.KeyEnter:
		err = e.buf.Type("\n")
	case tcell.KeyTab:
		err = e.buf.Type("\t")
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		err = e.buf.Backspace()
	case tcell.KeyDelete:
		err = e.buf.DeleteForward()
	case tcell.KeyLeft:
		err = e.moveHorizontal(-1, shift)
	case tcell.KeyRight:
		err = e.moveHorizontal(1, shift)
	case tcell.KeyUp:
		err = e.moveVertical(-1, shift)
	case tcell.KeyDown:
		err = e.moveVertical(1, shift)
	case tcell.KeyHome:
		err = e.moveLine(false, shift)
	case tcell.KeyEnd:
		err = e.moveLine(true, shift)
	}
	if err != nil {
		e.logger.Warn("key %s: %v", ev.Name(), err)
		e.Notify(err.Error())
	}
}

func listStatus(items []macro.MacroItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = fmt.Sprintf("%s (%d)", item.Name, item.ActionCount)
	}
	return "macros: " + strings.Join(parts, ", ")
}

// moveHorizontal moves the head by delta. Without shift an existing
// selection collapses to the side it moves toward.
func (e *Editor) moveHorizontal(delta int, extend bool) error {
	if extend {
		return e.buf.ExtendBy(delta)
	}
	sel := e.buf.Selection()
	if !sel.IsEmpty() {
		if delta < 0 {
			return e.buf.MoveTo(sel.Start)
		}
		return e.buf.MoveTo(sel.End)
	}
	return e.buf.MoveBy(delta)
}

func (e *Editor) moveVertical(dir int, extend bool) error {
	text := []rune(e.buf.Text())
	line, col := lineCol(text, e.buf.Head())
	target := offsetAt(text, line+dir, col)
	return e.moveHead(target, extend)
}

func (e *Editor) moveLine(toEnd bool, extend bool) error {
	text := []rune(e.buf.Text())
	line, _ := lineCol(text, e.buf.Head())
	col := 0
	if toEnd {
		col = len(text)
	}
	return e.moveHead(offsetAt(text, line, col), extend)
}

func (e *Editor) moveHead(target int, extend bool) error {
	if extend {
		return e.buf.ExtendBy(target - e.buf.Head())
	}
	return e.buf.MoveTo(target)
}

func (e *Editor) saveBuffer() {
	if e.save == nil {
		e.Notify("no file to save to")
		return
	}
	if err := e.save(e.buf.Text()); err != nil {
		e.logger.Error("save: %v", err)
		e.Notify(fmt.Sprintf("save failed: %v", err))
		return
	}
	e.Notify(fmt.Sprintf("saved %s", e.title))
}

// Prompt reads a line on the status row, running a nested event loop until
// Enter or Escape.
func (e *Editor) Prompt(prompt, initial string) (string, bool) {
	p := &promptLine{label: prompt, input: []rune(initial)}
	e.setPrompt(p)
	defer e.setPrompt(nil)

	for {
		e.draw()
		ev := e.screen.PollEvent()
		if ev == nil {
			return "", false
		}
		k, ok := ev.(*tcell.EventKey)
		if !ok {
			if _, resized := ev.(*tcell.EventResize); resized {
				e.screen.Sync()
			}
			continue
		}
		switch k.Key() {
		case tcell.KeyEnter:
			return string(p.input), true
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return "", false
		case tcell.KeyBackspace, tcell.KeyBackspace2:
			if len(p.input) > 0 {
				p.input = p.input[:len(p.input)-1]
			}
		case tcell.KeyRune:
			p.input = append(p.input, k.Rune())
		}
	}
}

type promptLine struct {
	label string
	input []rune
}

func (e *Editor) setPrompt(p *promptLine) {
	e.mu.Lock()
	e.prompt = p
	e.mu.Unlock()
}

// lineCol returns the zero-based line and column of offset.
func lineCol(text []rune, offset int) (line, col int) {
	for _, r := range text[:min(offset, len(text))] {
		if r == '\n' {
			line++
			col = 0
			continue
		}
		col++
	}
	return line, col
}

// offsetAt returns the offset of line and col, clamped to the text and to
// the line's length.
func offsetAt(text []rune, line, col int) int {
	if line < 0 {
		return 0
	}
	start := 0
	for l := 0; l < line; l++ {
		i := indexRune(text[start:], '\n')
		if i < 0 {
			return len(text)
		}
		start += i + 1
	}
	end := start + indexRune(text[start:], '\n')
	if end < start {
		end = len(text)
	}
	return min(start+col, end)
}

func indexRune(text []rune, r rune) int {
	for i, c := range text {
		if c == r {
			return i
		}
	}
	return -1
}
