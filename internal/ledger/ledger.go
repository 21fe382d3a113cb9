// Package ledger defines the round ledger the game scores against.
//
// The ledger is an external authority: it owns rounds, entries, attempts
// and scores. Clients hold optimistic mirrors and always prefer ledger
// reads for gating. Backends live in the memory, storage and remote
// packages; the shared accounting rules live in rules.go.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RoundID identifies a round.
type RoundID uint64

// Round is the ledger's round metadata.
type Round struct {
	ID          RoundID         `json:"id"`
	Creator     Address         `json:"creator"`
	EntryFee    decimal.Decimal `json:"entryFee"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     time.Time       `json:"endTime"`
	Pool        decimal.Decimal `json:"pool"`
	Finalized   bool            `json:"finalized"`
	PlayerCount int             `json:"playerCount"`
}

// Active reports whether scored play is open at now.
func (r Round) Active(now time.Time) bool {
	return !r.Finalized && !now.Before(r.StartTime) && now.Before(r.EndTime)
}

// Remaining returns the time left in the round, never negative.
func (r Round) Remaining(now time.Time) time.Duration {
	if d := r.EndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Counters are the authoritative per-player figures for a round.
type Counters struct {
	EntryIndex          uint32 `json:"entryIndex"` // 0 means no entry yet
	AttemptsUsed        uint32 `json:"attemptsUsed"`
	AttemptActive       bool   `json:"attemptActive"`
	CurrentAttemptScore uint64 `json:"currentAttemptScore"`
	TotalScore          uint64 `json:"totalScore"` // locked score of the current entry
}

// Standing is one row of a round's leaderboard.
type Standing struct {
	Player Address `json:"player"`
	Score  uint64  `json:"score"`
}

// Ledger is the ledger as seen by one caller account. Writes act as that
// account; reads may ask about any player.
type Ledger interface {
	Account() Address

	StartEntry(ctx context.Context, round RoundID, payment decimal.Decimal) (uint32, error)
	StartAttempt(ctx context.Context, round RoundID) error
	EndAttempt(ctx context.Context, round RoundID) error
	SubmitScoreBatch(ctx context.Context, round RoundID, amount uint64) error
	ObstaclePassed(ctx context.Context, round RoundID, player Address, entry, obstacleCount uint32, delta uint64) error
	SetOperator(ctx context.Context, operator Address, allowed bool) error

	CreateRound(ctx context.Context, entryFee decimal.Decimal, duration time.Duration) (RoundID, error)
	FinalizeRound(ctx context.Context, round RoundID) error

	AttemptsUsed(ctx context.Context, round RoundID, player Address) (uint32, error)
	CurrentAttemptScore(ctx context.Context, round RoundID, player Address) (uint64, error)
	TotalScore(ctx context.Context, round RoundID, player Address) (uint64, error)
	EntryIndex(ctx context.Context, round RoundID, player Address) (uint32, error)
	AttemptActive(ctx context.Context, round RoundID, player Address) (bool, error)
	Round(ctx context.Context, round RoundID) (Round, error)
	LatestRound(ctx context.Context) (RoundID, bool, error)
	Players(ctx context.Context, round RoundID) ([]Address, error)
	Score(ctx context.Context, round RoundID, player Address) (uint64, error)

	// Subscribe streams ledger events until the returned cancel is called.
	Subscribe() (<-chan Event, func())
}

// Book is a multi-account ledger backend.
type Book interface {
	// Account returns a Ledger acting as addr.
	Account(addr Address) Ledger
	// EventsSince returns up to limit events with Seq greater than after.
	EventsSince(ctx context.Context, after uint64, limit int) ([]Event, error)
	// Subscribe streams events for every account.
	Subscribe() (<-chan Event, func())
	Close() error
}

// CountersReader is implemented by ledgers that can read all counters at once.
type CountersReader interface {
	Counters(ctx context.Context, round RoundID, player Address) (Counters, error)
}

// StandingsReader is implemented by ledgers that can rank players directly.
type StandingsReader interface {
	Standings(ctx context.Context, round RoundID) ([]Standing, error)
}
