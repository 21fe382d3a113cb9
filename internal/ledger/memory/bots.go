package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/vovakirdan/dash-rally/internal/ledger"
	"github.com/vovakirdan/dash-rally/internal/rng"
)

// Bot tuning for demo rounds.
const (
	BotInterval    = 2500 * time.Millisecond
	botGainChance  = 0.55
	botEndChance   = 0.04
	botLabelPrefix = "demo-bot-"
)

// BotAddresses returns the addresses RunBots plays as.
func BotAddresses(n int) []ledger.Address {
	out := make([]ledger.Address, n)
	for i := range out {
		out[i] = ledger.AddressFromName(fmt.Sprintf("%s%d", botLabelPrefix, i+1))
	}
	return out
}

// RunBots keeps n simulated players scoring in round until ctx is done.
// Each interval every bot gains a point with probability 0.55, and
// occasionally locks its attempt in and starts the next one.
func (b *Book) RunBots(ctx context.Context, round ledger.RoundID, n int, interval time.Duration) {
	if n <= 0 {
		return
	}
	if interval <= 0 {
		interval = BotInterval
	}
	bots := BotAddresses(n)
	stream := rng.New(fmt.Sprintf("bots|%d", round))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, addr := range bots {
				b.botTurn(ctx, round, addr, stream)
			}
		}
	}
}

// botTurn advances one bot. Errors only mean the round moved on.
func (b *Book) botTurn(ctx context.Context, round ledger.RoundID, addr ledger.Address, stream *rng.Stream) {
	acct := b.Account(addr)
	c, err := ledger.ReadCounters(ctx, acct, round, addr)
	if err != nil {
		return
	}
	if !c.AttemptActive {
		if c.EntryIndex == 0 || c.AttemptsUsed >= b.limits.MaxAttempts {
			r, err := acct.Round(ctx, round)
			if err != nil {
				return
			}
			if _, err := acct.StartEntry(ctx, round, r.EntryFee); err != nil {
				b.logger.Debug("bot entry refused", "bot", addr.Short(), "error", err)
				return
			}
		}
		if err := acct.StartAttempt(ctx, round); err != nil {
			b.logger.Debug("bot attempt refused", "bot", addr.Short(), "error", err)
			return
		}
	}

	if stream.Next() < botGainChance {
		if err := acct.SubmitScoreBatch(ctx, round, 1); err != nil {
			b.logger.Debug("bot score refused", "bot", addr.Short(), "error", err)
			return
		}
	}
	if stream.Next() < botEndChance {
		if err := acct.EndAttempt(ctx, round); err == nil {
			b.logger.Info("bot locked attempt", "bot", addr.Short(), "round", round)
		}
	}
}
