package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/dash-rally/internal/games/dash"
	"github.com/vovakirdan/dash-rally/internal/score"
	"github.com/vovakirdan/dash-rally/internal/session"
)

// HUD is the published presentation state. It is rebuilt from a game
// snapshot on a fixed cadence or when something discrete happens, never
// read back into the simulation.
type HUD struct {
	Snapshot    dash.Snapshot
	Practice    bool
	Phase       session.Phase
	Entry       uint32
	Attempt     int
	MaxAttempts int
	Exhausted   bool
	Display     score.Display
	Remaining   time.Duration
	RoundOpen   bool
	Notice      string
	Err         error
}

// Status is the one-line state shown at the end of the HUD.
func (h HUD) Status() string {
	switch {
	case h.Practice && h.Snapshot.Status == dash.StatusCrashed:
		return "crashed, press a to run again"
	case h.Practice:
		return "practice"
	case h.Phase == session.PhaseLocking:
		return "locking failed, press e to retry"
	case h.Phase == session.PhaseEnding:
		return "locking…"
	case !h.RoundOpen:
		return "round closed"
	case h.Phase == session.PhasePlaying && h.Snapshot.Status == dash.StatusCrashed:
		return "crashed, press e to lock score"
	case h.Phase == session.PhasePlaying:
		return "running"
	case h.Entry == 0:
		return "press n to enter"
	case h.Exhausted:
		return "entry spent, press n for a new one"
	default:
		return "press a to start attempt"
	}
}

// Line renders the HUD.
func (h HUD) Line() string {
	parts := []string{
		field("dist", fmt.Sprintf("%.0f", h.Snapshot.Travel/10)),
		field("combo", fmt.Sprintf("x%d", h.Snapshot.Combo)),
	}
	if h.Snapshot.Feedback != dash.FeedbackNone {
		parts = append(parts, hudTag.Render(strings.ToUpper(string(h.Snapshot.Feedback))))
	}
	if h.Practice {
		parts = append(parts, field("score", fmt.Sprintf("%.0f", h.Snapshot.Units)))
	} else {
		parts = append(parts,
			field("attempt", fmt.Sprintf("%d/%d", h.Attempt, h.MaxAttempts)),
			field("score", fmt.Sprintf("%d", h.Display.Attempt)),
			field("total", fmt.Sprintf("%d", h.Display.Total)),
			field("round", formatRemaining(h.Remaining)),
		)
	}

	status := h.Status()
	switch h.Phase {
	case session.PhaseLocking:
		status = hudError.Render(status)
	case session.PhaseEnding:
		status = hudWarn.Render(status)
	default:
		status = hudLabel.Render(status)
	}
	parts = append(parts, status)
	if h.Phase == session.PhaseLocking && h.Err != nil {
		parts = append(parts, hudError.Render(h.Err.Error()))
	}

	line := strings.Join(parts, "  ")
	if h.Notice != "" {
		line += "  " + hudWarn.Render(h.Notice)
	}
	return line
}

func field(label, value string) string {
	return hudLabel.Render(label+" ") + hudValue.Render(value)
}

// formatRemaining renders a countdown as m:ss, or h:mm:ss past an hour.
func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
