package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Limits mirror the contract's constants.
type Limits struct {
	MaxAttempts           uint32
	MaxScorePerObstacle   uint64
	MaxObstaclesPerSecond float64
	ObstacleBurst         uint32 // passes allowed ahead of the rate
	MaxBatch              uint64 // largest single SubmitScoreBatch amount
}

// DefaultLimits returns the limits used by every backend.
func DefaultLimits() Limits {
	return Limits{
		MaxAttempts:           3,
		MaxScorePerObstacle:   200,
		MaxObstaclesPerSecond: 4,
		ObstacleBurst:         2,
		MaxBatch:              10000,
	}
}

// PlayerRecord is one player's state in one round.
type PlayerRecord struct {
	Round            RoundID
	Player           Address
	EntryIndex       uint32
	AttemptsUsed     uint32
	AttemptActive    bool
	CurrentAttempt   uint64
	EntryTotal       uint64
	Best             uint64
	LastObstacle     uint32
	AttemptStartedAt time.Time
}

// Counters returns the record's authoritative counters.
func (p PlayerRecord) Counters() Counters {
	return Counters{
		EntryIndex:          p.EntryIndex,
		AttemptsUsed:        p.AttemptsUsed,
		AttemptActive:       p.AttemptActive,
		CurrentAttemptScore: p.CurrentAttempt,
		TotalScore:          p.EntryTotal,
	}
}

// Score is the player's round score: the best entry, counting the live one.
func (p PlayerRecord) Score() uint64 {
	live := p.EntryTotal + p.CurrentAttempt
	if live > p.Best {
		return live
	}
	return p.Best
}

// NewRound builds a round opened at now.
func NewRound(id RoundID, creator Address, fee decimal.Decimal, duration time.Duration, now time.Time) (Round, error) {
	if fee.IsNegative() {
		return Round{}, fmt.Errorf("%w: negative entry fee", ErrInvalidAmount)
	}
	if duration <= 0 {
		return Round{}, fmt.Errorf("%w: round duration must be positive", ErrInvalidAmount)
	}
	return Round{
		ID:        id,
		Creator:   creator,
		EntryFee:  fee,
		StartTime: now,
		EndTime:   now.Add(duration),
		Pool:      decimal.Zero,
	}, nil
}

// ApplyStartEntry opens a new entry for rec and credits the payment to the
// round pool. It returns the new entry index.
func ApplyStartEntry(round *Round, rec *PlayerRecord, payment decimal.Decimal, now time.Time) (uint32, error) {
	if !round.Active(now) {
		return 0, ErrRoundInactive
	}
	if payment.LessThan(round.EntryFee) {
		return 0, ErrInsufficientFee
	}
	if rec.AttemptActive {
		return 0, ErrAttemptActive
	}
	if rec.EntryIndex == 0 {
		round.PlayerCount++
	}
	round.Pool = round.Pool.Add(payment)

	rec.EntryIndex++
	rec.AttemptsUsed = 0
	rec.EntryTotal = 0
	rec.CurrentAttempt = 0
	rec.LastObstacle = 0
	return rec.EntryIndex, nil
}

// ApplyStartAttempt opens the next attempt of the current entry.
func ApplyStartAttempt(round Round, rec *PlayerRecord, limits Limits, now time.Time) error {
	if !round.Active(now) {
		return ErrRoundInactive
	}
	if rec.EntryIndex == 0 {
		return ErrNoEntry
	}
	if rec.AttemptActive {
		return ErrAttemptActive
	}
	if rec.AttemptsUsed >= limits.MaxAttempts {
		return ErrAttemptsExhausted
	}
	rec.AttemptActive = true
	rec.CurrentAttempt = 0
	rec.LastObstacle = 0
	rec.AttemptStartedAt = now
	return nil
}

// ApplySubmitScore adds a batch to the active attempt.
func ApplySubmitScore(round Round, rec *PlayerRecord, amount uint64, limits Limits, now time.Time) error {
	if !round.Active(now) {
		return ErrRoundInactive
	}
	if !rec.AttemptActive {
		return ErrNoAttempt
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if limits.MaxBatch > 0 && amount > limits.MaxBatch {
		return ErrScoreCap
	}
	rec.CurrentAttempt += amount
	return nil
}

// ApplyObstaclePassed credits delta for passes up to obstacleCount.
// The count must increase, delta is capped per obstacle, and passes may
// not outrun MaxObstaclesPerSecond since the attempt started.
func ApplyObstaclePassed(round Round, rec *PlayerRecord, entry, obstacleCount uint32, delta uint64, limits Limits, now time.Time) error {
	if !round.Active(now) {
		return ErrRoundInactive
	}
	if rec.EntryIndex == 0 || entry != rec.EntryIndex {
		return ErrNoEntry
	}
	if !rec.AttemptActive {
		return ErrNoAttempt
	}
	if obstacleCount <= rec.LastObstacle {
		return ErrObstacleOrder
	}
	passes := uint64(obstacleCount - rec.LastObstacle)
	if delta > limits.MaxScorePerObstacle*passes {
		return ErrScoreCap
	}
	if limits.MaxObstaclesPerSecond > 0 {
		elapsed := now.Sub(rec.AttemptStartedAt).Seconds()
		allowed := limits.MaxObstaclesPerSecond*elapsed + float64(limits.ObstacleBurst)
		if float64(obstacleCount) > allowed {
			return ErrScoreCap
		}
	}
	rec.CurrentAttempt += delta
	rec.LastObstacle = obstacleCount
	return nil
}

// ApplyEndAttempt locks the active attempt into the entry total.
// Ending stays possible after the round closes so scores are not stranded;
// only finalization blocks it.
func ApplyEndAttempt(round Round, rec *PlayerRecord) error {
	if round.Finalized {
		return ErrRoundInactive
	}
	if !rec.AttemptActive {
		return ErrNoAttempt
	}
	rec.EntryTotal += rec.CurrentAttempt
	rec.CurrentAttempt = 0
	rec.AttemptActive = false
	rec.AttemptsUsed++
	if rec.EntryTotal > rec.Best {
		rec.Best = rec.EntryTotal
	}
	return nil
}

// ApplyFinalize closes a round once it has ended. Only the creator may.
func ApplyFinalize(round *Round, caller Address, now time.Time) error {
	if !round.Creator.Equal(caller) {
		return ErrNotCreator
	}
	if round.Finalized {
		return ErrRoundInactive
	}
	if now.Before(round.EndTime) {
		return ErrRoundNotEnded
	}
	round.Finalized = true
	return nil
}

// Authorized reports whether caller may submit for player: the player
// itself or an operator the player approved.
func Authorized(caller, player Address, approved bool) error {
	if caller.Equal(player) || approved {
		return nil
	}
	return ErrNotOperator
}
