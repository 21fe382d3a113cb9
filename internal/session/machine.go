// Package session tracks a player's entry and attempts against the round
// ledger and drives score commits. The Machine is confined to the host
// loop: it never performs I/O itself, it hands out Calls and is fed their
// Results.
package session

import (
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/config"
	"github.com/vovakirdan/dash-rally/internal/core"
	"github.com/vovakirdan/dash-rally/internal/games/dash"
	"github.com/vovakirdan/dash-rally/internal/ledger"
	"github.com/vovakirdan/dash-rally/internal/rng"
	"github.com/vovakirdan/dash-rally/internal/score"
)

// Gating errors returned by the Request methods.
var (
	ErrWrongNetwork      = errors.New("session: connected chain is not supported")
	ErrRoundClosed       = errors.New("session: round is not active")
	ErrNoEntry           = errors.New("session: start an entry first")
	ErrAttemptsExhausted = errors.New("session: no attempts left on this entry")
	ErrBusy              = errors.New("session: another ledger call is outstanding")
	ErrNotPlaying        = errors.New("session: no attempt is running")
	ErrNotLocking        = errors.New("session: nothing to retry")
)

// Phase is the attempt lifecycle as the player sees it.
type Phase int

const (
	PhaseIdle    Phase = iota // no attempt; may start one if gating allows
	PhasePlaying              // attempt active, simulation may run
	PhaseEnding               // flushing and ending the attempt
	PhaseLocking              // ending failed; RetryEnd is available
)

func (p Phase) String() string {
	switch p {
	case PhasePlaying:
		return "playing"
	case PhaseEnding:
		return "ending"
	case PhaseLocking:
		return "locking"
	default:
		return "idle"
	}
}

type endStep int

const (
	endWaitFlush endStep = iota
	endFlushing
	endCalling
)

// Config binds a machine to one player in one round.
type Config struct {
	Round               ledger.RoundID
	Player              ledger.Address
	ChainID             uint64
	Contract            string
	EntryFee            decimal.Decimal
	Mode                string // config.CommitBatch or config.CommitObstacle
	Policy              score.Policy
	PollEvery           time.Duration
	RefreshEvery        time.Duration
	MaxAttempts         uint32
	MaxScorePerObstacle uint64
	AutoEndOnCrash      bool
	Session             config.SessionConfig
}

// ConfigFrom builds a Config from the loaded rally configuration.
func ConfigFrom(cfg config.RallyConfig, round ledger.RoundID, player ledger.Address) (Config, error) {
	fee, err := decimal.NewFromString(cfg.Ledger.EntryFee)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Round:    round,
		Player:   player,
		ChainID:  cfg.Ledger.ChainID,
		Contract: cfg.Ledger.Contract,
		EntryFee: fee,
		Mode:     cfg.Commit.Mode,
		Policy: score.Policy{
			Threshold:    uint64(cfg.Commit.Threshold),
			MaxInterval:  time.Duration(cfg.Commit.MaxIntervalMs) * time.Millisecond,
			RetryBackoff: time.Duration(cfg.Commit.RetryBackoff) * time.Millisecond,
		},
		PollEvery:           time.Duration(cfg.Commit.PollMs) * time.Millisecond,
		RefreshEvery:        time.Duration(cfg.Session.RefreshMs) * time.Millisecond,
		MaxAttempts:         uint32(cfg.Session.MaxAttempts),
		MaxScorePerObstacle: ledger.DefaultLimits().MaxScorePerObstacle,
		AutoEndOnCrash:      cfg.Session.AutoEndOnCrash,
		Session:             cfg.Session,
	}, nil
}

// Machine is the attempt/entry state machine.
type Machine struct {
	cfg    Config
	logger *log.Logger

	phase    Phase
	step     endStep
	round    ledger.Round
	counters ledger.Counters
	synced   bool // a refresh has succeeded at least once

	sched  *score.Scheduler
	mirror score.Mirror

	queue          []Call
	nextID         uint64
	entryCall      bool
	attemptCall    bool
	endCall        bool
	refreshCall    bool
	refreshWanted  bool
	writeGen       uint64
	lastRefresh    time.Time
	lastPoll       time.Time
	passed         uint32
	lastSentPassed uint32
	sentPassed     uint32 // pass count carried by the commit in flight or held
	attemptSerial  uint64
	lastErr        error
}

// New creates a machine. A nil logger discards output.
func New(cfg Config, logger *log.Logger, now time.Time) *Machine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = ledger.DefaultLimits().MaxAttempts
	}
	if cfg.Policy == (score.Policy{}) {
		cfg.Policy = score.DefaultPolicy()
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 500 * time.Millisecond
	}
	return &Machine{
		cfg:           cfg,
		logger:        logger,
		sched:         score.NewScheduler(cfg.Policy, now),
		refreshWanted: true,
	}
}

// --- gating ---

func (m *Machine) gate(now time.Time) error {
	if !m.cfg.Session.IsChainSupported(m.cfg.ChainID) {
		return ErrWrongNetwork
	}
	if !m.synced || !m.round.Active(now) {
		return ErrRoundClosed
	}
	return nil
}

// CanSimulate reports whether the simulation may advance at now.
func (m *Machine) CanSimulate(now time.Time) bool {
	if m.phase != PhasePlaying || m.endCall {
		return false
	}
	if m.gate(now) != nil {
		return false
	}
	return m.counters.EntryIndex > 0 && m.counters.AttemptsUsed < m.cfg.MaxAttempts
}

// StartBlocked returns why a new attempt cannot start, or nil.
func (m *Machine) StartBlocked(now time.Time) error {
	if err := m.gate(now); err != nil {
		return err
	}
	switch {
	case m.entryCall || m.attemptCall || m.phase != PhaseIdle:
		return ErrBusy
	case m.counters.EntryIndex == 0:
		return ErrNoEntry
	case m.counters.AttemptsUsed >= m.cfg.MaxAttempts:
		return ErrAttemptsExhausted
	}
	return nil
}

// --- requests from the player ---

// RequestEntry queues a paid entry at the round's fee.
func (m *Machine) RequestEntry(now time.Time) error {
	if err := m.gate(now); err != nil {
		return err
	}
	if m.entryCall || m.attemptCall || m.phase != PhaseIdle {
		return ErrBusy
	}
	fee := m.round.EntryFee
	if fee.LessThan(m.cfg.EntryFee) {
		fee = m.cfg.EntryFee
	}
	m.entryCall = true
	m.enqueue(Call{Kind: CallStartEntry, Payment: fee})
	return nil
}

// RequestAttempt queues the start of the next attempt.
func (m *Machine) RequestAttempt(now time.Time) error {
	if err := m.StartBlocked(now); err != nil {
		return err
	}
	m.attemptCall = true
	m.enqueue(Call{Kind: CallStartAttempt})
	return nil
}

// RequestEnd begins the end sequence: wait for the in-flight commit, flush
// what is left, end the attempt, then refresh.
func (m *Machine) RequestEnd(now time.Time) error {
	if m.phase != PhasePlaying {
		return ErrNotPlaying
	}
	m.phase = PhaseEnding
	m.step = endWaitFlush
	m.logger.Info("ending attempt", "round", m.cfg.Round, "attempt", m.Attempt(), "buffer", m.sched.Buffer())
	return nil
}

// RetryEnd resumes a failed end sequence.
func (m *Machine) RetryEnd(now time.Time) error {
	if m.phase != PhaseLocking {
		return ErrNotLocking
	}
	m.phase = PhaseEnding
	m.step = endWaitFlush
	m.lastErr = nil
	return nil
}

// --- simulation input ---

// Observe feeds simulation events into the machine.
func (m *Machine) Observe(ev core.Event, now time.Time) {
	switch e := ev.(type) {
	case dash.DistanceEvent:
		if m.phase == PhasePlaying {
			m.sched.Credit(e.Units)
		}
	case dash.PassEvent:
		if m.phase == PhasePlaying && uint32(e.Passed) > m.passed {
			m.passed = uint32(e.Passed)
		}
	case dash.CrashEvent:
		if m.cfg.AutoEndOnCrash && m.phase == PhasePlaying {
			_ = m.RequestEnd(now)
		}
	}
}

// NoteEvent marks a refresh as wanted when a ledger event concerns us.
func (m *Machine) NoteEvent(e ledger.Event) {
	if e.Concerns(m.cfg.Round, m.cfg.Player) {
		m.refreshWanted = true
	}
}

// --- pump ---

func (m *Machine) enqueue(c Call) {
	m.nextID++
	c.ID = m.nextID
	c.Round = m.cfg.Round
	c.Player = m.cfg.Player
	m.queue = append(m.queue, c)
}

// Tick returns the calls to start now. The host must run each one and
// deliver its Result through Apply.
func (m *Machine) Tick(now time.Time) []Call {
	switch m.phase {
	case PhasePlaying:
		if m.cfg.AutoEndOnCrash && m.synced && !m.round.Active(now) {
			m.logger.Info("round closed during attempt", "round", m.cfg.Round)
			_ = m.RequestEnd(now)
			m.advanceEnd(now)
			break
		}
		if now.Sub(m.lastPoll) >= m.cfg.PollEvery || m.sched.Due(now) {
			m.lastPoll = now
			m.dispatch(now, false)
		}
	case PhaseEnding:
		m.advanceEnd(now)
	}

	if !m.refreshCall && (m.refreshWanted || (m.cfg.RefreshEvery > 0 && now.Sub(m.lastRefresh) >= m.cfg.RefreshEvery)) {
		m.refreshWanted = false
		m.refreshCall = true
		m.lastRefresh = now
		m.enqueue(Call{Kind: CallRefresh, Gen: m.writeGen})
	}

	out := m.queue
	m.queue = nil
	return out
}

// dispatch starts a commit if the scheduler allows one. A resend repeats
// the failed call exactly, pass count included.
func (m *Machine) dispatch(now time.Time, force bool) bool {
	if m.cfg.Mode == config.CommitObstacle {
		var limit uint64
		if !m.sched.Resending() {
			if m.passed <= m.lastSentPassed {
				return false
			}
			limit = m.cfg.MaxScorePerObstacle * uint64(m.passed-m.lastSentPassed)
		}
		c, ok := m.sched.DispatchAtMost(now, force, limit)
		if !ok {
			return false
		}
		if !c.Resend {
			m.sentPassed = m.passed
		}
		m.enqueue(Call{Kind: CallObstacle, Seq: c.Seq, Amount: c.Amount, Key: c.Key, Entry: m.counters.EntryIndex, Obstacles: m.sentPassed})
		return true
	}

	c, ok := m.sched.Dispatch(now, force)
	if !ok {
		return false
	}
	m.enqueue(Call{Kind: CallSubmit, Seq: c.Seq, Amount: c.Amount, Key: c.Key})
	return true
}

func (m *Machine) advanceEnd(now time.Time) {
	switch m.step {
	case endWaitFlush:
		if _, ok := m.sched.InFlight(); ok {
			return
		}
		if m.dispatch(now, true) {
			m.step = endFlushing
			return
		}
		if dropped := m.sched.DropFraction(); dropped > 0 {
			m.logger.Debug("dropping fractional remainder", "units", dropped)
		}
		if left := m.sched.Buffer(); left >= 1 {
			// Obstacle mode cannot send units earned after the last pass.
			m.logger.Warn("unsendable score at attempt end", "units", left)
		}
		m.step = endCalling
		m.endCall = true
		m.enqueue(Call{Kind: CallEndAttempt})
	}
}

// --- results ---

// Apply feeds back the result of a call returned by Tick.
func (m *Machine) Apply(res Result, now time.Time) {
	c := res.Call
	switch c.Kind {
	case CallStartEntry:
		m.entryCall = false
		if res.Err != nil {
			m.fail("start entry", res.Err)
			m.refreshWanted = true
			return
		}
		m.writeGen++
		m.counters = ledger.Counters{EntryIndex: res.Entry}
		m.refreshWanted = true
		m.logger.Info("entry started", "round", c.Round, "entry", res.Entry)

	case CallStartAttempt:
		m.attemptCall = false
		if res.Err != nil {
			m.fail("start attempt", res.Err)
			m.refreshWanted = true
			return
		}
		m.writeGen++
		m.counters.AttemptActive = true
		m.counters.CurrentAttemptScore = 0
		m.beginAttempt(now)
		m.refreshWanted = true

	case CallSubmit, CallObstacle:
		if res.Err != nil {
			if ledger.IsRejection(res.Err) {
				m.sched.Reject(c.Seq, now)
			} else {
				m.sched.Fail(c.Seq, now)
			}
			if errors.Is(res.Err, ledger.ErrRoundInactive) {
				// Score is no longer accepted; the attempt can still be locked.
				dropped := m.sched.Discard()
				m.logger.Warn("round closed, dropping unsent score", "round", c.Round, "units", dropped)
				if m.phase == PhaseEnding {
					m.step = endWaitFlush
				}
				return
			}
			m.fail("score commit", res.Err, "amount", c.Amount, "held", m.sched.Resending())
			if m.phase == PhaseEnding {
				m.phase = PhaseLocking
			}
			return
		}
		if m.sched.Confirm(c.Seq, now) {
			m.writeGen++
			if c.Kind == CallObstacle {
				m.lastSentPassed = c.Obstacles
			}
		}
		if m.phase == PhaseEnding && m.step == endFlushing {
			m.step = endWaitFlush
		}

	case CallEndAttempt:
		m.endCall = false
		if res.Err != nil && !errors.Is(res.Err, ledger.ErrNoAttempt) {
			m.fail("end attempt", res.Err)
			m.phase = PhaseLocking
			m.step = endWaitFlush
			return
		}
		m.writeGen++
		m.counters.AttemptsUsed++
		m.counters.AttemptActive = false
		m.counters.TotalScore += max(m.counters.CurrentAttemptScore, m.sched.Ledgered())
		m.counters.CurrentAttemptScore = 0
		m.phase = PhaseIdle
		if err := m.sched.Reset(now); err != nil {
			m.logger.Warn("reset after end", "error", err)
		}
		m.refreshWanted = true
		m.lastErr = nil
		m.logger.Info("attempt locked", "round", c.Round, "attempts_used", m.counters.AttemptsUsed)

	case CallRefresh:
		m.refreshCall = false
		if res.Err != nil {
			m.logger.Debug("refresh failed", "error", res.Err)
			return
		}
		m.round = res.Round
		m.synced = true
		if c.Gen != m.writeGen {
			// A write landed after this read was issued.
			m.refreshWanted = true
			return
		}
		m.counters = res.Counters
		m.reconcilePhase(now)
	}
}

// reconcilePhase aligns the phase with freshly read counters.
func (m *Machine) reconcilePhase(now time.Time) {
	switch m.phase {
	case PhaseIdle:
		if m.counters.AttemptActive && !m.attemptCall {
			// Attempt started elsewhere, or before a restart.
			m.beginAttempt(now)
		}
	case PhasePlaying:
		if !m.counters.AttemptActive {
			// Ended elsewhere. Nothing left to send belongs to a live attempt.
			m.logger.Warn("attempt ended outside this session", "round", m.cfg.Round)
			m.phase = PhaseIdle
			if err := m.sched.Reset(now); err != nil {
				m.phase = PhaseLocking
			}
		}
	}
}

func (m *Machine) beginAttempt(now time.Time) {
	if err := m.sched.Reset(now); err != nil {
		m.logger.Warn("attempt started with a commit in flight", "error", err)
	}
	m.phase = PhasePlaying
	m.passed = 0
	m.lastSentPassed = 0
	m.sentPassed = 0
	m.lastPoll = now
	m.attemptSerial++
	m.logger.Info("attempt started", "round", m.cfg.Round, "entry", m.counters.EntryIndex, "attempt", m.Attempt())
}

func (m *Machine) fail(op string, err error, kv ...any) {
	m.lastErr = err
	args := append([]any{"op", op, "error", err, "rejected", ledger.IsRejection(err)}, kv...)
	m.logger.Warn("ledger call failed", args...)
}

// --- read side ---

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Counters returns the latest authoritative counters, adjusted by writes
// this machine has seen confirmed since.
func (m *Machine) Counters() ledger.Counters { return m.counters }

// Round returns the last read round metadata.
func (m *Machine) Round() ledger.Round { return m.round }

// Synced reports whether the ledger has been read at least once.
func (m *Machine) Synced() bool { return m.synced }

// LastError returns the most recent ledger failure, cleared on success.
func (m *Machine) LastError() error { return m.lastErr }

// Attempt returns the 1-based number of the live or next attempt.
func (m *Machine) Attempt() int {
	n := int(m.counters.AttemptsUsed) + 1
	if n > int(m.cfg.MaxAttempts) {
		n = int(m.cfg.MaxAttempts)
	}
	return n
}

// AttemptSerial changes every time a new attempt begins.
func (m *Machine) AttemptSerial() uint64 { return m.attemptSerial }

// SeedBase returns the course identity of the current entry.
func (m *Machine) SeedBase() rng.SeedBase {
	return rng.SeedBase{
		ChainID:    m.cfg.ChainID,
		Contract:   m.cfg.Contract,
		RoundID:    uint64(m.cfg.Round),
		Player:     string(m.cfg.Player),
		EntryIndex: m.counters.EntryIndex,
	}
}

// Scheduler exposes the commit scheduler for diagnostics.
func (m *Machine) Scheduler() *score.Scheduler { return m.sched }

// Display returns the reconciled, non-regressing score figures. Between
// attempts the last attempt's figure is held until the next one begins.
func (m *Machine) Display() score.Display {
	remote := score.Remote{
		AttemptScore: m.counters.CurrentAttemptScore,
		EntryTotal:   m.counters.TotalScore,
	}
	local := score.LocalOf(m.sched)
	if m.phase == PhaseIdle {
		remote.AttemptScore = 0
		local = score.Local{}
	}
	key := uint64(m.counters.EntryIndex)<<32 | m.attemptSerial
	return m.mirror.Observe(key, score.Reconcile(remote, local))
}
