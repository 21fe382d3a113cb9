package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/dash-rally/internal/core"
)

// KeyMap defines the key bindings for a rally session.
type KeyMap struct {
	Jump      key.Binding
	Slide     key.Binding
	NewEntry  key.Binding
	Start     key.Binding
	End       key.Binding
	Retry     key.Binding
	Standings key.Binding
	Debug     key.Binding
	Help      key.Binding
	Quit      key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Jump, k.Slide, k.NewEntry, k.Start, k.End, k.Standings, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Jump, k.Slide},
		{k.NewEntry, k.Start, k.End, k.Retry},
		{k.Standings, k.Help, k.Quit},
	}
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Jump: key.NewBinding(
			key.WithKeys(" ", "up", "w"),
			key.WithHelp("space/w", "jump"),
		),
		Slide: key.NewBinding(
			key.WithKeys("down", "s"),
			key.WithHelp("s", "slide/dash"),
		),
		NewEntry: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new entry"),
		),
		Start: key.NewBinding(
			key.WithKeys("a", "enter"),
			key.WithHelp("a", "start attempt"),
		),
		End: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "end attempt"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry lock"),
		),
		Standings: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "standings"),
		),
		// Hidden diagnostic overlay.
		Debug: key.NewBinding(
			key.WithKeys("d"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Action maps a key message to a game action.
func (k KeyMap) Action(msg tea.KeyMsg) core.Action {
	switch {
	case key.Matches(msg, k.Quit):
		return core.ActionQuit
	case key.Matches(msg, k.Jump):
		return core.ActionJump
	case key.Matches(msg, k.Slide):
		return core.ActionSlide
	case key.Matches(msg, k.NewEntry):
		return core.ActionNewEntry
	case key.Matches(msg, k.Start):
		return core.ActionStartAttempt
	case key.Matches(msg, k.End):
		return core.ActionEndAttempt
	case key.Matches(msg, k.Retry):
		return core.ActionRetry
	case key.Matches(msg, k.Standings):
		return core.ActionStandings
	case key.Matches(msg, k.Debug):
		return core.ActionDebug
	}
	return core.ActionNone
}
