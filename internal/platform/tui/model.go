package tui

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/vovakirdan/dash-rally/internal/config"
	"github.com/vovakirdan/dash-rally/internal/core"
	"github.com/vovakirdan/dash-rally/internal/games/dash"
	"github.com/vovakirdan/dash-rally/internal/ledger"
	"github.com/vovakirdan/dash-rally/internal/replay"
	"github.com/vovakirdan/dash-rally/internal/session"
	"github.com/vovakirdan/dash-rally/internal/storage"
)

// hudRows is the number of terminal rows below the playfield.
const hudRows = 2

// Options configures a Model.
type Options struct {
	Config   config.RallyConfig
	Runtime  core.RuntimeConfig
	Ledger   ledger.Ledger // nil runs practice with no ledger
	Round    ledger.RoundID
	Logger   *log.Logger
	Runs     *storage.Store // practice run history, may be nil
	TraceDir string         // attempts are recorded here when set
}

// callResultMsg delivers a finished ledger call to the loop.
type callResultMsg struct{ res session.Result }

// ledgerEventMsg delivers a ledger event; closed streams deliver nothing.
type ledgerEventMsg struct{ ev ledger.Event }

// Model is the Bubble Tea model for a rally session. The simulation and
// the session machine are only touched from Update.
type Model struct {
	opts        Options
	logger      *log.Logger
	game        *dash.Game
	screen      *core.Screen
	machine     *session.Machine
	keys        KeyMap
	help        help.Model
	drawer      *Drawer
	input       core.InputFrame
	hud         HUD
	hudAt       time.Time
	hudEvery    time.Duration
	callTimeout time.Duration
	events      <-chan ledger.Event
	stopEvents  func()
	serial      uint64
	recorder    *replay.Recorder
	notice      string
	runSaved    bool
	quitting    bool
}

// NewModel creates a model. With a ledger it plays scored attempts in
// opts.Round as the ledger's account; without one it runs practice.
func NewModel(opts Options) (Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Runtime.TickRate <= 0 {
		opts.Runtime.TickRate = 60
	}

	m := Model{
		opts:        opts,
		logger:      logger,
		screen:      core.NewScreen(opts.Runtime.ScreenW, max(opts.Runtime.ScreenH-hudRows, 1)),
		keys:        DefaultKeyMap(),
		help:        help.New(),
		input:       core.NewInputFrame(),
		hudEvery:    time.Duration(opts.Config.HUD.PublishMs) * time.Millisecond,
		callTimeout: time.Duration(opts.Config.Commit.CallTimeoutMs) * time.Millisecond,
	}
	if m.hudEvery <= 0 {
		m.hudEvery = 50 * time.Millisecond
	}
	if m.callTimeout <= 0 {
		m.callTimeout = 10 * time.Second
	}
	m.help.Width = opts.Runtime.ScreenW

	if opts.Ledger == nil {
		m.game = dash.NewPractice()
		return m, nil
	}

	cfg, err := session.ConfigFrom(opts.Config, opts.Round, opts.Ledger.Account())
	if err != nil {
		return Model{}, err
	}
	m.game = dash.NewWithConfig(opts.Config)
	m.machine = session.New(cfg, logger, time.Now())
	m.drawer = NewDrawer(opts.Ledger.Account(), opts.Runtime.ScreenH)
	m.events, m.stopEvents = opts.Ledger.Subscribe()
	return m, nil
}

// Init initializes the model and starts the game.
func (m Model) Init() tea.Cmd {
	m.game.Reset(m.opts.Runtime)
	cmds := []tea.Cmd{tickCmd(m.opts.Runtime.TickRate)}
	if m.events != nil {
		cmds = append(cmds, waitEvent(m.events))
	}
	return tea.Batch(cmds...)
}

// waitEvent blocks for the next ledger event.
func waitEvent(ch <-chan ledger.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return ledgerEventMsg{ev: ev}
	}
}

// runCall performs a ledger call off the loop.
func (m Model) runCall(c session.Call) tea.Cmd {
	l, timeout := m.opts.Ledger, m.callTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return callResultMsg{res: c.Do(ctx, l)}
	}
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg, time.Now())

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case TickMsg:
		var cmds []tea.Cmd
		m, cmds = m.step(time.Time(msg))
		cmds = append(cmds, tickCmd(m.opts.Runtime.TickRate))
		return m, tea.Batch(cmds...)

	case callResultMsg:
		return m.handleResult(msg.res, time.Now())

	case ledgerEventMsg:
		var cmds []tea.Cmd
		if m.machine != nil {
			m.machine.NoteEvent(msg.ev)
			if m.drawer.Open() && msg.ev.Round == m.opts.Round && msg.ev.Kind != ledger.EventOperatorSet {
				cmds = append(cmds, loadStandings(m.opts.Ledger, m.opts.Round, m.callTimeout))
			}
		}
		cmds = append(cmds, waitEvent(m.events))
		return m, tea.Batch(cmds...)

	case standingsMsg:
		if m.drawer != nil && msg.round == m.opts.Round {
			m.drawer.Set(msg.rows, msg.err)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) resize(w, h int) {
	m.opts.Runtime.ScreenW = w
	m.opts.Runtime.ScreenH = h
	m.help.Width = w
	if m.drawer != nil {
		m.drawer.SetHeight(h)
	}
	m.layout()
}

// layout sizes the playfield around the HUD and an open drawer.
func (m *Model) layout() {
	w := m.opts.Runtime.ScreenW
	if m.drawer != nil && m.drawer.Open() {
		w -= drawerWidth + 1
	}
	m.screen.Resize(max(w, 1), max(m.opts.Runtime.ScreenH-hudRows, 1))
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg, now time.Time) (tea.Model, tea.Cmd) {
	if msg.String() == "?" {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	var err error
	switch a := m.keys.Action(msg); a {
	case core.ActionQuit:
		m.quitting = true
		m.close()
		return m, tea.Quit

	case core.ActionJump, core.ActionSlide, core.ActionDebug:
		m.input.Set(a)
		return m, nil

	case core.ActionNewEntry:
		if m.machine != nil {
			err = m.machine.RequestEntry(now)
		}

	case core.ActionStartAttempt:
		if m.machine == nil {
			if m.game.Status() == dash.StatusCrashed {
				m.opts.Runtime.Attempt = max(m.opts.Runtime.Attempt, 1) + 1
				m.game.Reset(m.opts.Runtime)
				m.runSaved = false
			}
			return m, nil
		}
		err = m.machine.RequestAttempt(now)

	case core.ActionEndAttempt:
		if m.machine != nil {
			if m.machine.Phase() == session.PhaseLocking {
				err = m.machine.RetryEnd(now)
			} else {
				err = m.machine.RequestEnd(now)
			}
		}

	case core.ActionRetry:
		if m.machine != nil {
			err = m.machine.RetryEnd(now)
		}

	case core.ActionStandings:
		if m.drawer == nil {
			return m, nil
		}
		open := m.drawer.Toggle()
		m.layout()
		if open {
			return m, loadStandings(m.opts.Ledger, m.opts.Round, m.callTimeout)
		}
		return m, nil

	default:
		return m, nil
	}

	m.notice = noticeFor(err)
	m.publish(now)
	return m, nil
}

// noticeFor turns a refused request into a HUD notice.
func noticeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrWrongNetwork):
		return "wrong network"
	case errors.Is(err, session.ErrRoundClosed):
		return "round is not open"
	case errors.Is(err, session.ErrNoEntry):
		return "start an entry first (n)"
	case errors.Is(err, session.ErrAttemptsExhausted):
		return "no attempts left, start a new entry (n)"
	case errors.Is(err, session.ErrBusy):
		return "waiting for the ledger"
	case errors.Is(err, session.ErrNotPlaying), errors.Is(err, session.ErrNotLocking):
		return ""
	default:
		return err.Error()
	}
}

// step runs one frame: attempt bookkeeping, simulation, then ledger
// scheduling. It returns the ledger calls to start.
func (m Model) step(now time.Time) (Model, []tea.Cmd) {
	var cmds []tea.Cmd
	discrete := false

	if m.machine == nil {
		discrete = m.simulate(now)
		if st := m.game.State(); st.GameOver && !m.runSaved {
			m.runSaved = true
			m.saveRun(st.Score)
		}
	} else {
		if s := m.machine.AttemptSerial(); s != m.serial {
			m.serial = s
			m.beginAttempt()
			discrete = true
		}
		// A closed round or failed gate stops the course for good; the
		// attempt itself is ended by the machine or the player.
		phase := m.machine.Phase()
		if m.game.Active() && (phase == session.PhaseIdle || phase == session.PhasePlaying && !m.machine.CanSimulate(now)) {
			m.finishTrace()
			m.game.Deactivate()
			discrete = true
		}
		if m.machine.CanSimulate(now) {
			discrete = m.simulate(now) || discrete
		}
		for _, c := range m.machine.Tick(now) {
			cmds = append(cmds, m.runCall(c))
		}
	}
	m.input.Clear()

	if discrete || now.Sub(m.hudAt) >= m.hudEvery {
		m.publish(now)
	}
	return m, cmds
}

// simulate steps the game once and forwards its events. It reports
// whether anything the HUD shows immediately happened.
func (m *Model) simulate(now time.Time) bool {
	if m.recorder != nil && m.game.Status() == dash.StatusRunning {
		m.recorder.Record(m.input, m.opts.Runtime.TickMillis())
	}
	res := m.game.Step(m.input)
	discrete := false
	for _, ev := range res.Events {
		switch ev.(type) {
		case dash.PassEvent, dash.CrashEvent, dash.FeedbackEvent:
			discrete = true
		}
		if m.machine != nil {
			m.machine.Observe(ev, now)
		}
	}
	return discrete
}

func (m *Model) beginAttempt() {
	m.finishTrace()
	base := m.machine.SeedBase().String()
	attempt := m.machine.Attempt()
	m.game.Activate(base, attempt)
	if m.opts.TraceDir != "" {
		w, h := m.opts.Config.World.ViewW, m.opts.Config.World.ViewH
		m.recorder = replay.NewRecorder(base, attempt, w, h)
	}
	m.notice = ""
	m.logger.Debug("simulation activated", "seed_base", base, "attempt", attempt)
}

// finishTrace saves the recorded attempt, if any.
func (m *Model) finishTrace() {
	if m.recorder == nil {
		return
	}
	rec := m.recorder
	m.recorder = nil
	if rec.Len() == 0 {
		return
	}
	tr := rec.Trace()
	path := filepath.Join(config.ExpandHome(m.opts.TraceDir), replay.FileName(tr))
	if err := replay.Save(path, tr); err != nil {
		m.logger.Warn("could not save trace", "error", err)
		return
	}
	m.logger.Info("trace saved", "path", path, "frames", len(tr.Frames))
}

func (m *Model) saveRun(score int) {
	if m.opts.Runs == nil || score <= 0 {
		return
	}
	if _, err := m.opts.Runs.SaveRun(m.game.ID(), score, m.game.Passed(), m.opts.Runtime.SeedBase); err != nil {
		m.logger.Warn("could not save run", "error", err)
	}
}

// handleResult applies a finished ledger call.
func (m Model) handleResult(res session.Result, now time.Time) (tea.Model, tea.Cmd) {
	if m.machine == nil {
		return m, nil
	}
	m.machine.Apply(res, now)
	if res.Err != nil && res.Call.Kind != session.CallRefresh {
		m.notice = res.Call.Kind.String() + " failed"
	} else if res.Err == nil && res.Call.Kind != session.CallRefresh {
		m.notice = ""
	}
	m.publish(now)
	return m, nil
}

// publish rebuilds the HUD from the current snapshot.
func (m *Model) publish(now time.Time) {
	m.hudAt = now
	h := HUD{
		Snapshot: m.game.Snapshot(),
		Practice: m.machine == nil,
		Notice:   m.notice,
	}
	if m.machine != nil {
		c := m.machine.Counters()
		h.Phase = m.machine.Phase()
		h.Entry = c.EntryIndex
		h.Attempt = m.machine.Attempt()
		h.MaxAttempts = m.opts.Config.Session.MaxAttempts
		h.Exhausted = c.AttemptsUsed >= uint32(h.MaxAttempts)
		h.Display = m.machine.Display()
		h.Remaining = m.machine.Round().Remaining(now)
		h.RoundOpen = m.machine.Round().Active(now)
		h.Err = m.machine.LastError()
	}
	m.hud = h
}

// HUD returns the last published HUD.
func (m Model) HUD() HUD { return m.hud }

// Machine returns the session machine, nil in practice.
func (m Model) Machine() *session.Machine { return m.machine }

func (m *Model) close() {
	m.finishTrace()
	if m.stopEvents != nil {
		m.stopEvents()
		m.stopEvents = nil
	}
}

// View renders the current state to a string for display.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	m.game.Render(m.screen)
	body := RenderScreen(m.screen)
	if m.drawer != nil && m.drawer.Open() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, " ", m.drawer.View())
	}
	return body + "\n" + m.hud.Line() + "\n" + helpStyle.Render(m.help.View(m.keys))
}

// Run starts the Bubble Tea program with a new model.
func Run(opts Options) error {
	model, err := NewModel(opts)
	if err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.close()
	}
	return err
}
