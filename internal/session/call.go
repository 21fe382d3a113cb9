package session

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

// CallKind names a ledger operation the machine wants performed.
type CallKind int

const (
	CallStartEntry CallKind = iota
	CallStartAttempt
	CallSubmit
	CallObstacle
	CallEndAttempt
	CallRefresh
)

func (k CallKind) String() string {
	switch k {
	case CallStartEntry:
		return "start_entry"
	case CallStartAttempt:
		return "start_attempt"
	case CallSubmit:
		return "submit"
	case CallObstacle:
		return "obstacle"
	case CallEndAttempt:
		return "end_attempt"
	case CallRefresh:
		return "refresh"
	default:
		return fmt.Sprintf("call(%d)", int(k))
	}
}

// Call is an asynchronous ledger operation. The host runs Do off the loop
// and hands the Result back to Machine.Apply.
type Call struct {
	ID      uint64
	Kind    CallKind
	Round   ledger.RoundID
	Player  ledger.Address
	Payment decimal.Decimal

	// Score commits.
	Seq       uint64
	Amount    uint64
	Key       string
	Entry     uint32
	Obstacles uint32

	// Refreshes carry the write generation they were issued at.
	Gen uint64
}

// Result is the outcome of a Call.
type Result struct {
	Call     Call
	Err      error
	Entry    uint32
	Counters ledger.Counters
	Round    ledger.Round
}

// Do performs the call against l. Commits carry their key so a resend is
// applied at most once.
func (c Call) Do(ctx context.Context, l ledger.Ledger) Result {
	res := Result{Call: c}
	if c.Key != "" {
		ctx = ledger.WithBatchKey(ctx, c.Key)
	}
	switch c.Kind {
	case CallStartEntry:
		res.Entry, res.Err = l.StartEntry(ctx, c.Round, c.Payment)
	case CallStartAttempt:
		res.Err = l.StartAttempt(ctx, c.Round)
	case CallSubmit:
		res.Err = l.SubmitScoreBatch(ctx, c.Round, c.Amount)
	case CallObstacle:
		res.Err = l.ObstaclePassed(ctx, c.Round, c.Player, c.Entry, c.Obstacles, c.Amount)
	case CallEndAttempt:
		res.Err = l.EndAttempt(ctx, c.Round)
	case CallRefresh:
		if res.Round, res.Err = l.Round(ctx, c.Round); res.Err != nil {
			return res
		}
		res.Counters, res.Err = ledger.ReadCounters(ctx, l, c.Round, c.Player)
	default:
		res.Err = fmt.Errorf("session: unknown call kind %v", c.Kind)
	}
	return res
}
