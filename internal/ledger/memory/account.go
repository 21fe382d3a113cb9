package memory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

// Account is a Book seen by one caller.
type Account struct {
	book *Book
	addr ledger.Address
}

var (
	_ ledger.Ledger          = (*Account)(nil)
	_ ledger.CountersReader  = (*Account)(nil)
	_ ledger.StandingsReader = (*Account)(nil)
)

func (a *Account) Account() ledger.Address { return a.addr }

func (a *Account) StartEntry(ctx context.Context, round ledger.RoundID, payment decimal.Decimal) (uint32, error) {
	return a.book.startEntry(ctx, a.addr, round, payment)
}

func (a *Account) StartAttempt(ctx context.Context, round ledger.RoundID) error {
	return a.book.startAttempt(ctx, a.addr, round)
}

func (a *Account) EndAttempt(ctx context.Context, round ledger.RoundID) error {
	return a.book.endAttempt(ctx, a.addr, round)
}

func (a *Account) SubmitScoreBatch(ctx context.Context, round ledger.RoundID, amount uint64) error {
	return a.book.submitScore(ctx, a.addr, round, amount)
}

func (a *Account) ObstaclePassed(ctx context.Context, round ledger.RoundID, player ledger.Address, entry, obstacleCount uint32, delta uint64) error {
	return a.book.obstaclePassed(ctx, a.addr, round, player, entry, obstacleCount, delta)
}

func (a *Account) SetOperator(ctx context.Context, operator ledger.Address, allowed bool) error {
	return a.book.setOperator(ctx, a.addr, operator, allowed)
}

func (a *Account) CreateRound(ctx context.Context, entryFee decimal.Decimal, duration time.Duration) (ledger.RoundID, error) {
	return a.book.createRound(ctx, a.addr, entryFee, duration)
}

func (a *Account) FinalizeRound(ctx context.Context, round ledger.RoundID) error {
	return a.book.finalizeRound(ctx, a.addr, round)
}

// Counters reads every counter under one lock.
func (a *Account) Counters(ctx context.Context, round ledger.RoundID, player ledger.Address) (ledger.Counters, error) {
	rec, err := a.book.readRecord(ctx, round, player)
	if err != nil {
		return ledger.Counters{}, err
	}
	return rec.Counters(), nil
}

func (a *Account) AttemptsUsed(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint32, error) {
	rec, err := a.book.readRecord(ctx, round, player)
	return rec.AttemptsUsed, err
}

func (a *Account) CurrentAttemptScore(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint64, error) {
	rec, err := a.book.readRecord(ctx, round, player)
	return rec.CurrentAttempt, err
}

func (a *Account) TotalScore(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint64, error) {
	rec, err := a.book.readRecord(ctx, round, player)
	return rec.EntryTotal, err
}

func (a *Account) EntryIndex(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint32, error) {
	rec, err := a.book.readRecord(ctx, round, player)
	return rec.EntryIndex, err
}

func (a *Account) AttemptActive(ctx context.Context, round ledger.RoundID, player ledger.Address) (bool, error) {
	rec, err := a.book.readRecord(ctx, round, player)
	return rec.AttemptActive, err
}

func (a *Account) Score(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint64, error) {
	rec, err := a.book.readRecord(ctx, round, player)
	return rec.Score(), err
}

func (a *Account) Round(ctx context.Context, round ledger.RoundID) (ledger.Round, error) {
	return a.book.readRound(ctx, round)
}

func (a *Account) LatestRound(ctx context.Context) (ledger.RoundID, bool, error) {
	return a.book.latestRound(ctx)
}

func (a *Account) Players(ctx context.Context, round ledger.RoundID) ([]ledger.Address, error) {
	return a.book.players(ctx, round)
}

func (a *Account) Standings(ctx context.Context, round ledger.RoundID) ([]ledger.Standing, error) {
	return a.book.standings(ctx, round)
}

func (a *Account) Subscribe() (<-chan ledger.Event, func()) {
	return a.book.hub.Subscribe()
}
