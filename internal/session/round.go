package session

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

// CurrentRound returns the latest round if it is still open at now.
// Otherwise, when create is set, l opens a new one with the given fee and
// duration.
func CurrentRound(ctx context.Context, l ledger.Ledger, fee decimal.Decimal, duration time.Duration, create bool, now time.Time) (ledger.RoundID, error) {
	id, ok, err := l.LatestRound(ctx)
	if err != nil {
		return 0, fmt.Errorf("session: cannot read latest round: %w", err)
	}
	if ok {
		r, err := l.Round(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("session: cannot read round %d: %w", id, err)
		}
		if r.Active(now) {
			return id, nil
		}
	}
	if !create {
		if ok {
			return id, nil
		}
		return 0, ledger.ErrUnknownRound
	}
	id, err = l.CreateRound(ctx, fee, duration)
	if err != nil {
		return 0, fmt.Errorf("session: cannot create round: %w", err)
	}
	return id, nil
}
