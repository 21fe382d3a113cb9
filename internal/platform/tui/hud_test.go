package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/dash-rally/internal/core"
	"github.com/vovakirdan/dash-rally/internal/games/dash"
	"github.com/vovakirdan/dash-rally/internal/ledger"
	"github.com/vovakirdan/dash-rally/internal/score"
	"github.com/vovakirdan/dash-rally/internal/session"
)

func TestHUDStatus(t *testing.T) {
	crashed := dash.Snapshot{Status: dash.StatusCrashed}
	running := dash.Snapshot{Status: dash.StatusRunning}
	tests := []struct {
		name string
		hud  HUD
		want string
	}{
		{"practice", HUD{Practice: true, Snapshot: running}, "practice"},
		{"practice crashed", HUD{Practice: true, Snapshot: crashed}, "crashed, press a to run again"},
		{"locking", HUD{Phase: session.PhaseLocking, RoundOpen: true}, "locking failed, press e to retry"},
		{"ending", HUD{Phase: session.PhaseEnding, RoundOpen: true}, "locking…"},
		{"closed", HUD{RoundOpen: false}, "round closed"},
		{"running", HUD{Phase: session.PhasePlaying, RoundOpen: true, Snapshot: running}, "running"},
		{"crashed", HUD{Phase: session.PhasePlaying, RoundOpen: true, Snapshot: crashed}, "crashed, press e to lock score"},
		{"no entry", HUD{RoundOpen: true}, "press n to enter"},
		{"spent", HUD{RoundOpen: true, Entry: 1, Exhausted: true}, "entry spent, press n for a new one"},
		{"ready", HUD{RoundOpen: true, Entry: 1}, "press a to start attempt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.hud.Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHUDLine(t *testing.T) {
	h := HUD{
		Snapshot:    dash.Snapshot{Travel: 12340, Combo: 4, Feedback: dash.FeedbackPerfect},
		Phase:       session.PhaseLocking,
		Entry:       1,
		Attempt:     2,
		MaxAttempts: 3,
		Display:     score.Display{Attempt: 57, Total: 190},
		Remaining:   90 * time.Second,
		RoundOpen:   true,
		Err:         errors.New("relay down"),
	}
	line := h.Line()
	for _, want := range []string{"1234", "x4", "PERFECT", "2/3", "57", "190", "1:30", "locking failed", "relay down"} {
		if !strings.Contains(line, want) {
			t.Errorf("HUD line %q missing %q", line, want)
		}
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "0:00"},
		{0, "0:00"},
		{59 * time.Second, "0:59"},
		{61*time.Second + 900*time.Millisecond, "1:01"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := formatRemaining(tt.d); got != tt.want {
			t.Errorf("formatRemaining(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestStandingRows(t *testing.T) {
	you := ledger.MustAddress("0xabc")
	rows := standingRows([]ledger.Standing{
		{Player: ledger.MustAddress("0x1111111111111111111111111111111111111111"), Score: 40},
		{Player: you, Score: 90},
		{Player: ledger.MustAddress("0x2222222222222222222222222222222222222222"), Score: 40},
	}, you)

	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][1] != "You" || rows[0][2] != "90" {
		t.Errorf("first row = %v, want You/90", rows[0])
	}
	if rows[1][1] != "0x1111…1111" || rows[2][1] != "0x2222…2222" {
		t.Errorf("tie order = %v, %v", rows[1], rows[2])
	}
	if rows[2][0] != "3" {
		t.Errorf("rank = %q, want 3", rows[2][0])
	}
}

func TestKeyMapActions(t *testing.T) {
	keys := DefaultKeyMap()
	tests := []struct {
		msg  tea.KeyMsg
		want core.Action
	}{
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, core.ActionJump},
		{tea.KeyMsg{Type: tea.KeyUp}, core.ActionJump},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("w")}, core.ActionJump},
		{tea.KeyMsg{Type: tea.KeyDown}, core.ActionSlide},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")}, core.ActionSlide},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}, core.ActionNewEntry},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")}, core.ActionStartAttempt},
		{tea.KeyMsg{Type: tea.KeyEnter}, core.ActionStartAttempt},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")}, core.ActionEndAttempt},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}, core.ActionRetry},
		{tea.KeyMsg{Type: tea.KeyTab}, core.ActionStandings},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")}, core.ActionDebug},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}, core.ActionQuit},
		{tea.KeyMsg{Type: tea.KeyCtrlC}, core.ActionQuit},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}, core.ActionNone},
	}
	for _, tt := range tests {
		if got := keys.Action(tt.msg); got != tt.want {
			t.Errorf("Action(%q) = %v, want %v", tt.msg.String(), got, tt.want)
		}
	}
}
