package term

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

var (
	styleText      = tcell.StyleDefault
	styleSelection = tcell.StyleDefault.Reverse(true)
	styleStatus    = tcell.StyleDefault.Reverse(true)
	styleRecording = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true).Reverse(true)
)

// draw renders the buffer and the status row. Text scrolls so the line
// holding the cursor is visible.
func (e *Editor) draw() {
	width, height := e.screen.Size()
	if width <= 0 || height <= 0 {
		return
	}
	e.screen.Clear()

	text := []rune(e.buf.Text())
	sel := e.buf.Selection()
	head := e.buf.Head()
	rows := height - 1

	cursorLine, cursorCol := lineCol(text, head)
	top := 0
	if cursorLine >= rows {
		top = cursorLine - rows + 1
	}

	line, col := 0, 0
	for i := 0; i <= len(text); i++ {
		y := line - top
		if i == head && y >= 0 && y < rows {
			e.screen.ShowCursor(min(cursorCol, width-1), y)
		}
		if i == len(text) {
			break
		}
		r := text[i]
		if r == '\n' {
			line++
			col = 0
			if line-top >= rows {
				break
			}
			continue
		}
		if y >= 0 && col < width {
			style := styleText
			if i >= sel.Start && i < sel.End {
				style = styleSelection
			}
			if r == '\t' {
				r = ' '
			}
			e.screen.SetContent(col, y, r, nil, style)
		}
		col++
	}

	e.drawStatus(width, height-1)
	e.screen.Show()
}

func (e *Editor) drawStatus(width, y int) {
	e.mu.Lock()
	status, prompt := e.status, e.prompt
	replaying := e.replayDone != nil
	e.mu.Unlock()

	for x := 0; x < width; x++ {
		e.screen.SetContent(x, y, ' ', nil, styleStatus)
	}

	if prompt != nil {
		line := prompt.label + ": " + string(prompt.input)
		x := drawString(e.screen, 0, y, width, line, styleStatus)
		e.screen.ShowCursor(min(x, width-1), y)
		return
	}

	x := 0
	switch {
	case e.store.IsRecording():
		x = drawString(e.screen, x, y, width, fmt.Sprintf(" REC %d ", e.store.PendingActions()), styleRecording)
	case replaying:
		x = drawString(e.screen, x, y, width, " PLAY ", styleRecording)
	}
	sel := e.buf.Selection()
	x = drawString(e.screen, x, y, width, fmt.Sprintf(" %s %s ", e.title, sel), styleStatus)
	drawString(e.screen, x, y, width, status, styleStatus)
}

// drawString draws s from x on row y and returns the column after it.
func drawString(screen tcell.Screen, x, y, width int, s string, style tcell.Style) int {
	for _, r := range s {
		if x >= width {
			break
		}
		screen.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}
