// Package memory provides an in-process ledger for demos, practice rounds
// and tests. It enforces the same rules as the persistent backends and can
// inject latency and failures to exercise retry paths.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/ledger"
	"github.com/vovakirdan/dash-rally/internal/rng"
)

// ErrUnavailable is returned by injected failures.
var ErrUnavailable = errors.New("memory: ledger unavailable")

// eventLogCap bounds the retained event history.
const eventLogCap = 4096

// Faults configures injected misbehaviour.
type Faults struct {
	Latency  time.Duration // added to every call
	FailRate float64       // probability in [0,1] that a call fails
}

// Option configures a Book.
type Option func(*Book)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

// WithLimits overrides the ledger limits.
func WithLimits(l ledger.Limits) Option {
	return func(b *Book) { b.limits = l }
}

// WithFaults enables fault injection.
func WithFaults(f Faults) Option {
	return func(b *Book) { b.faults = f }
}

// WithLogger sets the logger used for bot activity.
func WithLogger(l *log.Logger) Option {
	return func(b *Book) { b.logger = l }
}

var _ ledger.Book = (*Book)(nil)

// Book is a mutex-guarded multi-account ledger.
type Book struct {
	mu        sync.Mutex
	now       func() time.Time
	limits    ledger.Limits
	faults    Faults
	faultRNG  *rng.Stream
	failNext  int
	logger    *log.Logger
	hub       *ledger.Hub
	nextRound ledger.RoundID
	rounds    map[ledger.RoundID]*ledger.Round
	records   map[ledger.RoundID]map[ledger.Address]*ledger.PlayerRecord
	joined    map[ledger.RoundID][]ledger.Address
	operators map[ledger.Address]map[ledger.Address]bool
	keyed     map[string]uint32
	keyOrder  []string
	seq       uint64
	events    []ledger.Event
}

// New creates an empty book.
func New(opts ...Option) *Book {
	b := &Book{
		now:       time.Now,
		limits:    ledger.DefaultLimits(),
		faultRNG:  rng.New("memory-faults"),
		hub:       ledger.NewHub(64),
		nextRound: 1,
		rounds:    make(map[ledger.RoundID]*ledger.Round),
		records:   make(map[ledger.RoundID]map[ledger.Address]*ledger.PlayerRecord),
		joined:    make(map[ledger.RoundID][]ledger.Address),
		operators: make(map[ledger.Address]map[ledger.Address]bool),
		keyed:     make(map[string]uint32),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.New(io.Discard)
	}
	return b
}

// Account returns a Ledger acting as addr.
func (b *Book) Account(addr ledger.Address) ledger.Ledger {
	return &Account{book: b, addr: addr}
}

// SetFaults replaces the fault configuration.
func (b *Book) SetFaults(f Faults) {
	b.mu.Lock()
	b.faults = f
	b.mu.Unlock()
}

// FailNext makes the next n calls fail with ErrUnavailable.
func (b *Book) FailNext(n int) {
	b.mu.Lock()
	b.failNext = n
	b.mu.Unlock()
}

// EventsSince returns up to limit retained events with Seq > after.
func (b *Book) EventsSince(_ context.Context, after uint64, limit int) ([]ledger.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []ledger.Event
	for _, e := range b.events {
		if e.Seq <= after {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Subscribe streams every event the book records.
func (b *Book) Subscribe() (<-chan ledger.Event, func()) {
	return b.hub.Subscribe()
}

// Close is a no-op; the book lives as long as the process.
func (b *Book) Close() error { return nil }

// gate applies injected latency and failures.
func (b *Book) gate(ctx context.Context) error {
	b.mu.Lock()
	latency := b.faults.Latency
	fail := false
	if b.failNext > 0 {
		b.failNext--
		fail = true
	} else if b.faults.FailRate > 0 && b.faultRNG.Next() < b.faults.FailRate {
		fail = true
	}
	b.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if fail {
		return ErrUnavailable
	}
	return nil
}

// emit records an event. Caller holds b.mu.
func (b *Book) emit(e ledger.Event) {
	b.seq++
	e.Seq = b.seq
	if e.At.IsZero() {
		e.At = b.now()
	}
	b.events = append(b.events, e)
	if len(b.events) > eventLogCap {
		b.events = append([]ledger.Event(nil), b.events[len(b.events)-eventLogCap:]...)
	}
	b.hub.Publish(e)
}

// round returns the round or ErrUnknownRound. Caller holds b.mu.
func (b *Book) round(id ledger.RoundID) (*ledger.Round, error) {
	r, ok := b.rounds[id]
	if !ok {
		return nil, fmt.Errorf("memory: round %d: %w", id, ledger.ErrUnknownRound)
	}
	return r, nil
}

// record returns the player's record, creating an empty one when create is
// set. Caller holds b.mu.
func (b *Book) record(id ledger.RoundID, player ledger.Address, create bool) *ledger.PlayerRecord {
	byPlayer := b.records[id]
	if byPlayer == nil {
		if !create {
			return &ledger.PlayerRecord{Round: id, Player: player}
		}
		byPlayer = make(map[ledger.Address]*ledger.PlayerRecord)
		b.records[id] = byPlayer
	}
	rec, ok := byPlayer[player]
	if !ok {
		rec = &ledger.PlayerRecord{Round: id, Player: player}
		if create {
			byPlayer[player] = rec
		}
	}
	return rec
}

// keyedOnce reports a prior result for an idempotency key. Caller holds b.mu.
func (b *Book) keyedOnce(ctx context.Context) (uint32, bool) {
	key := ledger.BatchKey(ctx)
	if key == "" {
		return 0, false
	}
	v, ok := b.keyed[key]
	return v, ok
}

// maxKeys bounds the remembered idempotency keys. A resend arrives within
// seconds of the original, long before its key is evicted.
const maxKeys = 4096

func (b *Book) remember(ctx context.Context, v uint32) {
	key := ledger.BatchKey(ctx)
	if key == "" {
		return
	}
	if _, ok := b.keyed[key]; !ok {
		b.keyOrder = append(b.keyOrder, key)
	}
	b.keyed[key] = v
	if len(b.keyOrder) > maxKeys {
		delete(b.keyed, b.keyOrder[0])
		b.keyOrder[0] = ""
		b.keyOrder = b.keyOrder[1:]
	}
}

func (b *Book) createRound(ctx context.Context, caller ledger.Address, fee decimal.Decimal, d time.Duration) (ledger.RoundID, error) {
	if err := b.gate(ctx); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.keyedOnce(ctx); ok {
		return ledger.RoundID(v), nil
	}

	r, err := ledger.NewRound(b.nextRound, caller, fee, d, b.now())
	if err != nil {
		return 0, err
	}
	b.nextRound++
	b.rounds[r.ID] = &r
	b.remember(ctx, uint32(r.ID))
	b.emit(ledger.Event{Kind: ledger.EventRoundCreated, Round: r.ID, Player: caller, Value: fee})
	return r.ID, nil
}

func (b *Book) finalizeRound(ctx context.Context, caller ledger.Address, id ledger.RoundID) error {
	if err := b.gate(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r, err := b.round(id)
	if err != nil {
		return err
	}
	if err := ledger.ApplyFinalize(r, caller, b.now()); err != nil {
		return err
	}
	b.emit(ledger.Event{Kind: ledger.EventRoundFinalized, Round: id, Value: r.Pool})
	return nil
}

func (b *Book) startEntry(ctx context.Context, caller ledger.Address, id ledger.RoundID, payment decimal.Decimal) (uint32, error) {
	if err := b.gate(ctx); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.keyedOnce(ctx); ok {
		return v, nil
	}
	r, err := b.round(id)
	if err != nil {
		return 0, err
	}
	rec := b.record(id, caller, true)
	first := rec.EntryIndex == 0
	entry, err := ledger.ApplyStartEntry(r, rec, payment, b.now())
	if err != nil {
		return 0, err
	}
	if first {
		b.joined[id] = append(b.joined[id], caller)
	}
	b.remember(ctx, entry)
	b.emit(ledger.Event{Kind: ledger.EventEntryStarted, Round: id, Player: caller, Entry: entry, Value: payment})
	return entry, nil
}

func (b *Book) startAttempt(ctx context.Context, caller ledger.Address, id ledger.RoundID) error {
	if err := b.gate(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.keyedOnce(ctx); ok {
		return nil
	}
	r, err := b.round(id)
	if err != nil {
		return err
	}
	rec := b.record(id, caller, true)
	if err := ledger.ApplyStartAttempt(*r, rec, b.limits, b.now()); err != nil {
		return err
	}
	b.remember(ctx, rec.AttemptsUsed+1)
	b.emit(ledger.Event{Kind: ledger.EventAttemptStarted, Round: id, Player: caller, Entry: rec.EntryIndex, Attempt: rec.AttemptsUsed + 1})
	return nil
}

func (b *Book) endAttempt(ctx context.Context, caller ledger.Address, id ledger.RoundID) error {
	if err := b.gate(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.keyedOnce(ctx); ok {
		return nil
	}
	r, err := b.round(id)
	if err != nil {
		return err
	}
	rec := b.record(id, caller, true)
	scored := rec.CurrentAttempt
	if err := ledger.ApplyEndAttempt(*r, rec); err != nil {
		return err
	}
	b.remember(ctx, rec.AttemptsUsed)
	b.emit(ledger.Event{Kind: ledger.EventAttemptEnded, Round: id, Player: caller, Entry: rec.EntryIndex, Attempt: rec.AttemptsUsed, Amount: scored})
	return nil
}

func (b *Book) submitScore(ctx context.Context, caller ledger.Address, id ledger.RoundID, amount uint64) error {
	if err := b.gate(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.keyedOnce(ctx); ok {
		return nil
	}
	r, err := b.round(id)
	if err != nil {
		return err
	}
	rec := b.record(id, caller, true)
	if err := ledger.ApplySubmitScore(*r, rec, amount, b.limits, b.now()); err != nil {
		return err
	}
	b.remember(ctx, 0)
	b.emit(ledger.Event{Kind: ledger.EventScoreSubmitted, Round: id, Player: caller, Entry: rec.EntryIndex, Amount: amount})
	return nil
}

func (b *Book) obstaclePassed(ctx context.Context, caller ledger.Address, id ledger.RoundID, player ledger.Address, entry, count uint32, delta uint64) error {
	if err := b.gate(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.keyedOnce(ctx); ok {
		return nil
	}
	if err := ledger.Authorized(caller, player, b.operators[player][caller]); err != nil {
		return err
	}
	r, err := b.round(id)
	if err != nil {
		return err
	}
	rec := b.record(id, player, true)
	if err := ledger.ApplyObstaclePassed(*r, rec, entry, count, delta, b.limits, b.now()); err != nil {
		return err
	}
	b.remember(ctx, count)
	b.emit(ledger.Event{Kind: ledger.EventObstaclePassed, Round: id, Player: player, Entry: entry, Obstacles: count, Amount: delta})
	return nil
}

func (b *Book) setOperator(ctx context.Context, caller, operator ledger.Address, allowed bool) error {
	if err := b.gate(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ops := b.operators[caller]
	if ops == nil {
		ops = make(map[ledger.Address]bool)
		b.operators[caller] = ops
	}
	if allowed {
		ops[operator] = true
	} else {
		delete(ops, operator)
	}
	b.emit(ledger.Event{Kind: ledger.EventOperatorSet, Player: caller})
	return nil
}

func (b *Book) readRecord(ctx context.Context, id ledger.RoundID, player ledger.Address) (ledger.PlayerRecord, error) {
	if err := b.gate(ctx); err != nil {
		return ledger.PlayerRecord{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.round(id); err != nil {
		return ledger.PlayerRecord{}, err
	}
	return *b.record(id, player, false), nil
}

func (b *Book) readRound(ctx context.Context, id ledger.RoundID) (ledger.Round, error) {
	if err := b.gate(ctx); err != nil {
		return ledger.Round{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r, err := b.round(id)
	if err != nil {
		return ledger.Round{}, err
	}
	return *r, nil
}

func (b *Book) latestRound(ctx context.Context) (ledger.RoundID, bool, error) {
	if err := b.gate(ctx); err != nil {
		return 0, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nextRound == 1 {
		return 0, false, nil
	}
	return b.nextRound - 1, true, nil
}

func (b *Book) standings(ctx context.Context, id ledger.RoundID) ([]ledger.Standing, error) {
	if err := b.gate(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.round(id); err != nil {
		return nil, err
	}
	rows := make([]ledger.Standing, 0, len(b.joined[id]))
	for _, p := range b.joined[id] {
		rows = append(rows, ledger.Standing{Player: p, Score: b.record(id, p, false).Score()})
	}
	ledger.SortStandings(rows)
	return rows, nil
}

func (b *Book) players(ctx context.Context, id ledger.RoundID) ([]ledger.Address, error) {
	if err := b.gate(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.round(id); err != nil {
		return nil, err
	}
	return append([]ledger.Address(nil), b.joined[id]...), nil
}
