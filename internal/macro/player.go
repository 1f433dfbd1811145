package macro

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dshills/keymacro/internal/logging"
	"github.com/dshills/keymacro/internal/surface"
)

// State is the replay engine's virtual cursor and selection.
type State struct {
	Cursor    int
	Selection *surface.Range
}

// Visible returns the range to show on the surface: the selection if there
// is one, otherwise a bare cursor.
func (s State) Visible() surface.Range {
	if s.Selection != nil {
		return *s.Selection
	}
	return surface.Cursor(s.Cursor)
}

// Step computes the state after applying a to a text of the given length,
// and the edits that apply it. Move and Select produce no edits.
func Step(st State, a Action, length int) (State, []surface.Edit) {
	cursor := clamp(st.Cursor, 0, length)

	switch a := a.(type) {
	case Insert:
		if st.Selection != nil {
			sel := *st.Selection
			return State{Cursor: sel.Start + a.Len()}, []surface.Edit{surface.Replace(sel, a.Text)}
		}
		return State{Cursor: cursor + a.Len()}, []surface.Edit{surface.Insert(cursor, a.Text)}

	case Delete:
		start := max(0, cursor-a.Count)
		if start == cursor {
			return State{Cursor: cursor}, nil
		}
		return State{Cursor: start}, []surface.Edit{surface.Delete(start, cursor)}

	case Move:
		return State{Cursor: clamp(cursor+a.Delta, 0, length)}, nil

	case Select:
		start := clamp(cursor+a.Delta, 0, length)
		end := clamp(start+a.Length, 0, length)
		sel := surface.Range{Start: start, End: end}
		return State{Cursor: end, Selection: &sel}, nil

	default:
		panic(unknownAction(a))
	}
}

// Report summarizes a replay.
type Report struct {
	Total    int     // Actions in the macro
	Applied  int     // Actions applied successfully
	Failures []error // One *ActionError per action that failed and was skipped
	Final    State   // Virtual state after the last applied action
}

// Failed returns the number of actions that failed and were skipped.
func (r Report) Failed() int {
	return len(r.Failures)
}

// Player replays actions against a surface.
//
// Each action is applied as one edit followed by one selection update, so
// intermediate states are visible. With pacing enabled the player waits the
// configured delay between actions.
//
// Replay is best effort: an action the surface rejects is logged, reported
// and skipped. Replay stops early only when the surface is closed or the
// context is done; edits already applied are not rolled back.
type Player struct {
	mu      sync.Mutex
	slow    bool
	delay   time.Duration
	logger  *logging.Logger
	waitFor func(ctx context.Context, d time.Duration) error
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithPacing enables slow playback with the given delay between actions.
func WithPacing(enabled bool, delay time.Duration) PlayerOption {
	return func(p *Player) {
		p.slow = enabled
		p.delay = delay
	}
}

// WithPlayerLogger sets the player's logger.
func WithPlayerLogger(l *logging.Logger) PlayerOption {
	return func(p *Player) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPlayer creates a player. Pacing is off by default.
func NewPlayer(opts ...PlayerOption) *Player {
	p := &Player{
		logger:  logging.Null(),
		waitFor: sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetPacing changes the slow playback settings for subsequent replays.
func (p *Player) SetPacing(enabled bool, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slow = enabled
	p.delay = delay
}

// Pacing returns the current slow playback settings.
func (p *Player) Pacing() (bool, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slow, p.delay
}

// Play replays actions on s, starting from s's cursor (the end of its
// selection) with no selection.
func (p *Player) Play(ctx context.Context, s surface.Surface, actions []Action) (Report, error) {
	report := Report{Total: len(actions)}
	if s == nil {
		return report, ErrNoActiveSurface
	}

	slow, delay := p.Pacing()
	st := State{Cursor: s.Selection().End}
	report.Final = st

	for i, a := range actions {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		next, edits := Step(st, a, s.Len())
		if len(edits) > 0 {
			if err := s.Apply(edits...); err != nil {
				actionErr := &ActionError{Index: i, Action: a, Err: err}
				if errors.Is(err, surface.ErrClosed) {
					return report, actionErr
				}
				p.logger.Warn("replay: skipping %v", actionErr)
				report.Failures = append(report.Failures, actionErr)
				continue
			}
		}
		st = next
		report.Final = st
		report.Applied++

		if err := s.SetSelection(st.Visible()); err != nil {
			if errors.Is(err, surface.ErrClosed) {
				return report, &ActionError{Index: i, Action: a, Err: err}
			}
			p.logger.Warn("replay: action %d: set selection %s: %v", i, st.Visible(), err)
		}

		if slow && delay > 0 && i < len(actions)-1 {
			if err := p.waitFor(ctx, delay); err != nil {
				return report, err
			}
		}
	}

	p.logger.Debug("replay: applied %d of %d actions", report.Applied, report.Total)
	return report, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
