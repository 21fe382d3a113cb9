package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

// Account is a Store seen by one caller.
type Account struct {
	store *Store
	addr  ledger.Address
}

var (
	_ ledger.Ledger          = (*Account)(nil)
	_ ledger.CountersReader  = (*Account)(nil)
	_ ledger.StandingsReader = (*Account)(nil)
)

func (a *Account) Account() ledger.Address { return a.addr }

func (a *Account) StartEntry(ctx context.Context, round ledger.RoundID, payment decimal.Decimal) (uint32, error) {
	return a.store.startEntry(ctx, a.addr, round, payment)
}

func (a *Account) StartAttempt(ctx context.Context, round ledger.RoundID) error {
	return a.store.startAttempt(ctx, a.addr, round)
}

func (a *Account) EndAttempt(ctx context.Context, round ledger.RoundID) error {
	return a.store.endAttempt(ctx, a.addr, round)
}

func (a *Account) SubmitScoreBatch(ctx context.Context, round ledger.RoundID, amount uint64) error {
	return a.store.submitScore(ctx, a.addr, round, amount)
}

func (a *Account) ObstaclePassed(ctx context.Context, round ledger.RoundID, player ledger.Address, entry, obstacleCount uint32, delta uint64) error {
	return a.store.obstaclePassed(ctx, a.addr, round, player, entry, obstacleCount, delta)
}

func (a *Account) SetOperator(ctx context.Context, operator ledger.Address, allowed bool) error {
	return a.store.setOperator(ctx, a.addr, operator, allowed)
}

func (a *Account) CreateRound(ctx context.Context, entryFee decimal.Decimal, duration time.Duration) (ledger.RoundID, error) {
	return a.store.createRound(ctx, a.addr, entryFee, duration)
}

func (a *Account) FinalizeRound(ctx context.Context, round ledger.RoundID) error {
	return a.store.finalizeRound(ctx, a.addr, round)
}

// Counters reads every counter under one lock.
func (a *Account) Counters(ctx context.Context, round ledger.RoundID, player ledger.Address) (ledger.Counters, error) {
	rec, err := a.store.readRecord(ctx, round, player)
	if err != nil {
		return ledger.Counters{}, err
	}
	return rec.Counters(), nil
}

func (a *Account) AttemptsUsed(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint32, error) {
	rec, err := a.store.readRecord(ctx, round, player)
	return rec.AttemptsUsed, err
}

func (a *Account) CurrentAttemptScore(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint64, error) {
	rec, err := a.store.readRecord(ctx, round, player)
	return rec.CurrentAttempt, err
}

func (a *Account) TotalScore(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint64, error) {
	rec, err := a.store.readRecord(ctx, round, player)
	return rec.EntryTotal, err
}

func (a *Account) EntryIndex(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint32, error) {
	rec, err := a.store.readRecord(ctx, round, player)
	return rec.EntryIndex, err
}

func (a *Account) AttemptActive(ctx context.Context, round ledger.RoundID, player ledger.Address) (bool, error) {
	rec, err := a.store.readRecord(ctx, round, player)
	return rec.AttemptActive, err
}

func (a *Account) Score(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint64, error) {
	rec, err := a.store.readRecord(ctx, round, player)
	return rec.Score(), err
}

func (a *Account) Round(ctx context.Context, round ledger.RoundID) (ledger.Round, error) {
	return loadRound(ctx, a.store.db, round)
}

func (a *Account) LatestRound(ctx context.Context) (ledger.RoundID, bool, error) {
	return a.store.latestRound(ctx)
}

func (a *Account) Players(ctx context.Context, round ledger.RoundID) ([]ledger.Address, error) {
	recs, err := a.store.records(ctx, round)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Address, len(recs))
	for i, rec := range recs {
		out[i] = rec.Player
	}
	return out, nil
}

// Standings ranks the round's players from one pass over the table.
func (a *Account) Standings(ctx context.Context, round ledger.RoundID) ([]ledger.Standing, error) {
	recs, err := a.store.records(ctx, round)
	if err != nil {
		return nil, err
	}
	rows := make([]ledger.Standing, len(recs))
	for i, rec := range recs {
		rows[i] = ledger.Standing{Player: rec.Player, Score: rec.Score()}
	}
	ledger.SortStandings(rows)
	return rows, nil
}

// Subscribe streams events written through this process. Other processes
// sharing the database are seen via EventsSince.
func (a *Account) Subscribe() (<-chan ledger.Event, func()) {
	return a.store.hub.Subscribe()
}
