package ledger

import (
	"context"
	"sort"
)

// ReadCounters reads every per-player counter. Ledgers implementing
// CountersReader answer in one call; others are read field by field.
func ReadCounters(ctx context.Context, l Ledger, round RoundID, player Address) (Counters, error) {
	if r, ok := l.(CountersReader); ok {
		return r.Counters(ctx, round, player)
	}

	var c Counters
	var err error
	if c.EntryIndex, err = l.EntryIndex(ctx, round, player); err != nil {
		return Counters{}, err
	}
	if c.AttemptsUsed, err = l.AttemptsUsed(ctx, round, player); err != nil {
		return Counters{}, err
	}
	if c.AttemptActive, err = l.AttemptActive(ctx, round, player); err != nil {
		return Counters{}, err
	}
	if c.CurrentAttemptScore, err = l.CurrentAttemptScore(ctx, round, player); err != nil {
		return Counters{}, err
	}
	if c.TotalScore, err = l.TotalScore(ctx, round, player); err != nil {
		return Counters{}, err
	}
	return c, nil
}

// Standings ranks a round's players by score, highest first. Ties keep
// address order so the table is stable between refreshes.
func Standings(ctx context.Context, l Ledger, round RoundID) ([]Standing, error) {
	if r, ok := l.(StandingsReader); ok {
		return r.Standings(ctx, round)
	}

	players, err := l.Players(ctx, round)
	if err != nil {
		return nil, err
	}
	out := make([]Standing, 0, len(players))
	for _, p := range players {
		s, err := l.Score(ctx, round, p)
		if err != nil {
			return nil, err
		}
		out = append(out, Standing{Player: p, Score: s})
	}
	SortStandings(out)
	return out, nil
}

// SortStandings orders rows by score descending, then by address.
func SortStandings(rows []Standing) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Player < rows[j].Player
	})
}
