package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

// drawerWidth is the standings drawer's outer width in cells.
const drawerWidth = 36

// standingsMsg carries a standings read back to the loop.
type standingsMsg struct {
	round ledger.RoundID
	rows  []ledger.Standing
	err   error
}

// loadStandings reads the round's standings off the loop.
func loadStandings(l ledger.Ledger, round ledger.RoundID, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		rows, err := ledger.Standings(ctx, l, round)
		return standingsMsg{round: round, rows: rows, err: err}
	}
}

// Drawer is the standings side panel.
type Drawer struct {
	open    bool
	loading bool
	you     ledger.Address
	rows    []ledger.Standing
	err     error
	table   table.Model
}

// NewDrawer creates a closed drawer that marks you in the listing.
func NewDrawer(you ledger.Address, height int) *Drawer {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: 3},
			{Title: "Player", Width: 16},
			{Title: "Score", Width: 8},
		}),
		table.WithHeight(max(height-6, 3)),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)
	return &Drawer{you: you, table: t}
}

// Toggle opens or closes the drawer and reports whether it is now open.
func (d *Drawer) Toggle() bool {
	d.open = !d.open
	if d.open {
		d.loading = true
	}
	return d.open
}

// Open reports whether the drawer is shown.
func (d *Drawer) Open() bool { return d.open }

// SetHeight resizes the listing.
func (d *Drawer) SetHeight(h int) { d.table.SetHeight(max(h-6, 3)) }

// Set replaces the listing with a fresh read.
func (d *Drawer) Set(rows []ledger.Standing, err error) {
	d.loading = false
	d.err = err
	if err != nil {
		return
	}
	d.rows = rows
	d.table.SetRows(standingRows(rows, d.you))
}

// standingRows orders rows by score and marks you.
func standingRows(rows []ledger.Standing, you ledger.Address) []table.Row {
	sorted := append([]ledger.Standing(nil), rows...)
	ledger.SortStandings(sorted)
	out := make([]table.Row, len(sorted))
	for i, r := range sorted {
		name := r.Player.Short()
		if r.Player.Equal(you) {
			name = "You"
		}
		out[i] = table.Row{fmt.Sprintf("%d", i+1), name, fmt.Sprintf("%d", r.Score)}
	}
	return out
}

// View renders the drawer.
func (d *Drawer) View() string {
	var b strings.Builder
	b.WriteString(drawerHead.Render("STANDINGS"))
	b.WriteString("\n")
	switch {
	case d.err != nil:
		b.WriteString(hudError.Render("unavailable: " + d.err.Error()))
	case d.loading && len(d.rows) == 0:
		b.WriteString(hudLabel.Render("loading…"))
	case len(d.rows) == 0:
		b.WriteString(hudLabel.Render("no players yet"))
	default:
		b.WriteString(d.table.View())
		for _, r := range d.rows {
			if r.Player.Equal(d.you) {
				b.WriteString("\n")
				b.WriteString(drawerYou.Render(fmt.Sprintf("you: %d", r.Score)))
				break
			}
		}
	}
	return drawerBox.Width(drawerWidth - 2).Render(b.String())
}
