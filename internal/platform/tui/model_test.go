package tui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/config"
	"github.com/vovakirdan/dash-rally/internal/core"
	"github.com/vovakirdan/dash-rally/internal/ledger"
	"github.com/vovakirdan/dash-rally/internal/ledger/memory"
	"github.com/vovakirdan/dash-rally/internal/replay"
	"github.com/vovakirdan/dash-rally/internal/session"
	"github.com/vovakirdan/dash-rally/internal/storage"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

type driver struct {
	t   *testing.T
	m   Model
	now time.Time
}

// frame runs one tick and completes its ledger calls synchronously.
func (d *driver) frame() {
	d.t.Helper()
	m, cmds := d.m.step(d.now)
	d.m = m
	for len(cmds) > 0 {
		var next []tea.Cmd
		for _, cmd := range cmds {
			msg := cmd()
			updated, _ := d.m.Update(msg)
			d.m = updated.(Model)
		}
		m, next = d.m.step(d.now)
		d.m = m
		cmds = next
	}
	d.now = d.now.Add(16 * time.Millisecond)
}

func (d *driver) key(s string) {
	updated, cmd := d.m.Update(keyMsg(s))
	d.m = updated.(Model)
	if cmd == nil {
		return
	}
	if msg, ok := cmd().(standingsMsg); ok {
		updated, _ = d.m.Update(msg)
		d.m = updated.(Model)
	}
}

func newScored(t *testing.T, traceDir string, edit ...func(*config.RallyConfig)) (*driver, *memory.Book, ledger.RoundID) {
	t.Helper()
	d := &driver{t: t, now: time.Now()}
	book := memory.New(memory.WithClock(func() time.Time { return d.now }))
	host := ledger.AddressFromName("host")
	round, err := book.Account(host).CreateRound(context.Background(), decimal.RequireFromString("0.001"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultRallyConfig()
	for _, e := range edit {
		e(&cfg)
	}
	m, err := NewModel(Options{
		Config:   cfg,
		Runtime:  core.DefaultConfig(),
		Ledger:   book.Account(ledger.AddressFromName("alice")),
		Round:    round,
		TraceDir: traceDir,
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Init()
	t.Cleanup(m.close)
	d.m = m
	return d, book, round
}

// startAttempt buys an entry and starts the first attempt.
func (d *driver) startAttempt() {
	d.t.Helper()
	d.frame()
	d.key("n")
	d.frame()
	d.key("a")
	d.frame()
	d.frame()
	if !d.m.game.Active() || d.m.Machine().Phase() != session.PhasePlaying {
		d.t.Fatalf("attempt not running: phase %v", d.m.Machine().Phase())
	}
}

func TestScoredAttemptThroughModel(t *testing.T) {
	dir := t.TempDir()
	d, book, round := newScored(t, dir)
	alice := book.Account(ledger.AddressFromName("alice"))

	d.frame()
	d.key("a")
	if d.m.HUD().Notice == "" {
		t.Error("starting without an entry gave no notice")
	}
	d.startAttempt()

	for i := range 240 {
		if i%40 == 10 {
			d.key("space")
		}
		d.frame()
	}

	d.key("e")
	for range 5 {
		d.frame()
	}
	if d.m.Machine().Phase() != session.PhaseIdle || d.m.game.Active() {
		t.Fatalf("phase = %v, game active = %v", d.m.Machine().Phase(), d.m.game.Active())
	}

	c, err := ledger.ReadCounters(context.Background(), alice, round, alice.Account())
	if err != nil {
		t.Fatal(err)
	}
	if c.AttemptsUsed != 1 || c.TotalScore == 0 {
		t.Fatalf("ledger counters = %+v", c)
	}
	if got := d.m.HUD().Display.Total; got != c.TotalScore {
		t.Errorf("HUD total = %d, ledger total = %d", got, c.TotalScore)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil || len(files) != 1 {
		t.Fatalf("trace files = %v, %v", files, err)
	}
	tr, err := replay.Load(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if tr.Attempt != 1 || tr.SeedBase != d.m.Machine().SeedBase().String() {
		t.Errorf("trace header = %s attempt %d", tr.SeedBase, tr.Attempt)
	}
}

func TestRoundCloseStopsCourse(t *testing.T) {
	tests := []struct {
		name    string
		autoEnd bool
		phase   session.Phase
		locked  uint32
	}{
		{"waits for player", false, session.PhasePlaying, 0},
		{"ends attempt", true, session.PhaseIdle, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, book, round := newScored(t, "", func(c *config.RallyConfig) {
				c.Session.AutoEndOnCrash = tc.autoEnd
			})
			d.startAttempt()
			for range 30 {
				d.frame()
			}

			d.now = d.now.Add(time.Hour)
			d.frame()
			d.frame()
			if d.m.game.Active() {
				t.Error("course still active after the round closed")
			}
			if got := d.m.Machine().Phase(); got != tc.phase {
				t.Errorf("phase = %v, want %v", got, tc.phase)
			}

			alice := book.Account(ledger.AddressFromName("alice"))
			c, err := ledger.ReadCounters(context.Background(), alice, round, alice.Account())
			if err != nil {
				t.Fatal(err)
			}
			if c.AttemptsUsed != tc.locked {
				t.Errorf("attempts used = %d, want %d", c.AttemptsUsed, tc.locked)
			}
		})
	}
}

func TestStandingsDrawer(t *testing.T) {
	d, _, _ := newScored(t, "")
	d.frame()
	d.key("n")
	d.frame()

	d.key("tab")
	if !d.m.drawer.Open() {
		t.Fatal("drawer did not open")
	}
	if len(d.m.drawer.rows) != 1 || d.m.drawer.rows[0].Player != ledger.AddressFromName("alice") {
		t.Errorf("drawer rows = %+v", d.m.drawer.rows)
	}
	if w := d.m.screen.Width(); w != core.DefaultConfig().ScreenW-drawerWidth-1 {
		t.Errorf("playfield width with drawer = %d", w)
	}

	d.key("tab")
	if d.m.drawer.Open() || d.m.screen.Width() != core.DefaultConfig().ScreenW {
		t.Errorf("drawer open = %v, width = %d", d.m.drawer.Open(), d.m.screen.Width())
	}
}

func TestWrongNetworkRefusesEntry(t *testing.T) {
	cfg := config.DefaultRallyConfig()
	cfg.Ledger.ChainID = 1
	book := memory.New()
	round, err := book.Account(ledger.AddressFromName("host")).CreateRound(context.Background(), decimal.RequireFromString("0.001"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewModel(Options{Config: cfg, Runtime: core.DefaultConfig(), Ledger: book.Account(ledger.AddressFromName("bob")), Round: round})
	if err != nil {
		t.Fatal(err)
	}
	m.Init()
	d := &driver{t: t, m: m, now: time.Now()}
	t.Cleanup(d.m.close)

	d.frame()
	d.key("n")
	if got := d.m.HUD().Notice; got != "wrong network" {
		t.Errorf("notice = %q, want wrong network", got)
	}
}

func TestPracticeSavesRun(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	store, err := storage.Open(filepath.Join(t.TempDir(), "rally.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	m, err := NewModel(Options{Config: config.DefaultRallyConfig(), Runtime: core.DefaultConfig(), Runs: store})
	if err != nil {
		t.Fatal(err)
	}
	m.Init()
	d := &driver{t: t, m: m, now: time.Now()}

	for i := 0; i < 20000 && !d.m.game.State().GameOver; i++ {
		d.frame()
	}
	if !d.m.game.State().GameOver {
		t.Fatal("practice run never ended")
	}
	d.frame()

	runs, err := store.TopRuns("dash_practice", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Score != d.m.game.State().Score {
		t.Errorf("runs = %+v, want one with score %d", runs, d.m.game.State().Score)
	}

	d.key("a")
	if d.m.game.State().GameOver {
		t.Error("practice did not restart")
	}
	if d.m.opts.Runtime.Attempt != 2 {
		t.Errorf("restart attempt = %d, want 2", d.m.opts.Runtime.Attempt)
	}
}

func TestQuitStopsEvents(t *testing.T) {
	d, _, _ := newScored(t, "")
	updated, cmd := d.m.Update(keyMsg("q"))
	d.m = updated.(Model)
	if cmd == nil || d.m.View() != "" {
		t.Error("quit did not stop the program")
	}
	if d.m.stopEvents != nil {
		t.Error("event subscription left open")
	}
}
