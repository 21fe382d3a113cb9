package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// mutation runs inside a write transaction at now. It returns the call's
// numeric result and the events to record.
type mutation func(tx *sql.Tx, now time.Time) (uint32, []ledger.Event, error)

// write runs fn in a transaction. Writes carrying a batch key are applied
// at most once; a repeat returns the first result.
func (s *Store) write(ctx context.Context, op string, fn mutation) (uint32, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage: cannot begin %s: %w", op, err)
	}
	defer tx.Rollback()

	key := ledger.BatchKey(ctx)
	if key != "" {
		var prior int64
		err := tx.QueryRowContext(ctx, "SELECT result FROM score_batches WHERE batch_key = ?", key).Scan(&prior)
		if err == nil {
			s.logger.Debug("duplicate batch ignored", "op", op, "key", key)
			return uint32(prior), nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("storage: cannot check batch key: %w", err)
		}
	}

	now := s.now()
	result, events, err := fn(tx, now)
	if err != nil {
		return 0, err
	}

	if key != "" {
		if _, err := tx.ExecContext(ctx, "INSERT INTO score_batches (batch_key, result) VALUES (?, ?)", key, result); err != nil {
			return 0, fmt.Errorf("storage: cannot record batch key: %w", err)
		}
	}
	for i := range events {
		events[i].At = now
		res, err := tx.ExecContext(ctx,
			`INSERT INTO events (kind, round_id, player, entry, attempt, amount, obstacles, value, at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(events[i].Kind), int64(events[i].Round), string(events[i].Player),
			events[i].Entry, events[i].Attempt, int64(events[i].Amount), events[i].Obstacles,
			events[i].Value.String(), unixNano(now),
		)
		if err != nil {
			return 0, fmt.Errorf("storage: cannot record event: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("storage: cannot get event seq: %w", err)
		}
		events[i].Seq = uint64(seq)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: cannot commit %s: %w", op, err)
	}
	for _, e := range events {
		s.hub.Publish(e)
	}
	return result, nil
}

func loadRound(ctx context.Context, q querier, id ledger.RoundID) (ledger.Round, error) {
	var (
		r                ledger.Round
		creator, fee, pl string
		start, end       int64
		finalized        bool
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, creator, entry_fee, start_time, end_time, pool, finalized, player_count
		 FROM rounds WHERE id = ?`, int64(id),
	).Scan(&r.ID, &creator, &fee, &start, &end, &pl, &finalized, &r.PlayerCount)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Round{}, fmt.Errorf("storage: round %d: %w", id, ledger.ErrUnknownRound)
	}
	if err != nil {
		return ledger.Round{}, fmt.Errorf("storage: cannot query round: %w", err)
	}
	r.Creator = ledger.Address(creator)
	r.StartTime = fromUnixNano(start)
	r.EndTime = fromUnixNano(end)
	r.Finalized = finalized
	if r.EntryFee, err = decimal.NewFromString(fee); err != nil {
		return ledger.Round{}, fmt.Errorf("storage: bad entry fee %q: %w", fee, err)
	}
	if r.Pool, err = decimal.NewFromString(pl); err != nil {
		return ledger.Round{}, fmt.Errorf("storage: bad pool %q: %w", pl, err)
	}
	return r, nil
}

func saveRound(ctx context.Context, tx *sql.Tx, r ledger.Round) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE rounds SET pool = ?, finalized = ?, player_count = ? WHERE id = ?`,
		r.Pool.String(), r.Finalized, r.PlayerCount, int64(r.ID),
	)
	if err != nil {
		return fmt.Errorf("storage: cannot update round: %w", err)
	}
	return nil
}

// loadRecord returns the player's record, or a zero record if the player
// has not entered the round.
func loadRecord(ctx context.Context, q querier, id ledger.RoundID, player ledger.Address) (ledger.PlayerRecord, error) {
	rec := ledger.PlayerRecord{Round: id, Player: player}
	var (
		current, total, best int64
		startedAt            int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT entry_index, attempts_used, attempt_active, current_attempt, entry_total,
		        best, last_obstacle, attempt_started_at
		 FROM players WHERE round_id = ? AND player = ?`, int64(id), string(player),
	).Scan(&rec.EntryIndex, &rec.AttemptsUsed, &rec.AttemptActive, &current, &total,
		&best, &rec.LastObstacle, &startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("storage: cannot query player: %w", err)
	}
	rec.CurrentAttempt = uint64(current)
	rec.EntryTotal = uint64(total)
	rec.Best = uint64(best)
	rec.AttemptStartedAt = fromUnixNano(startedAt)
	return rec, nil
}

func saveRecord(ctx context.Context, tx *sql.Tx, rec ledger.PlayerRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO players (round_id, player, entry_index, attempts_used, attempt_active,
		                      current_attempt, entry_total, best, last_obstacle, attempt_started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(round_id, player) DO UPDATE SET
		   entry_index = excluded.entry_index,
		   attempts_used = excluded.attempts_used,
		   attempt_active = excluded.attempt_active,
		   current_attempt = excluded.current_attempt,
		   entry_total = excluded.entry_total,
		   best = excluded.best,
		   last_obstacle = excluded.last_obstacle,
		   attempt_started_at = excluded.attempt_started_at`,
		int64(rec.Round), string(rec.Player), rec.EntryIndex, rec.AttemptsUsed, rec.AttemptActive,
		int64(rec.CurrentAttempt), int64(rec.EntryTotal), int64(rec.Best), rec.LastObstacle,
		unixNano(rec.AttemptStartedAt),
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save player: %w", err)
	}
	return nil
}

func (s *Store) createRound(ctx context.Context, caller ledger.Address, fee decimal.Decimal, d time.Duration) (ledger.RoundID, error) {
	id, err := s.write(ctx, "create round", func(tx *sql.Tx, now time.Time) (uint32, []ledger.Event, error) {
		r, err := ledger.NewRound(0, caller, fee, d, now)
		if err != nil {
			return 0, nil, err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO rounds (creator, entry_fee, start_time, end_time, pool)
			 VALUES (?, ?, ?, ?, ?)`,
			string(caller), fee.String(), unixNano(r.StartTime), unixNano(r.EndTime), r.Pool.String(),
		)
		if err != nil {
			return 0, nil, fmt.Errorf("storage: cannot create round: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, nil, fmt.Errorf("storage: cannot get inserted ID: %w", err)
		}
		ev := ledger.Event{Kind: ledger.EventRoundCreated, Round: ledger.RoundID(id), Player: caller, Value: fee}
		return uint32(id), []ledger.Event{ev}, nil
	})
	return ledger.RoundID(id), err
}

func (s *Store) finalizeRound(ctx context.Context, caller ledger.Address, id ledger.RoundID) error {
	_, err := s.write(ctx, "finalize round", func(tx *sql.Tx, now time.Time) (uint32, []ledger.Event, error) {
		r, err := loadRound(ctx, tx, id)
		if err != nil {
			return 0, nil, err
		}
		if err := ledger.ApplyFinalize(&r, caller, now); err != nil {
			return 0, nil, err
		}
		if err := saveRound(ctx, tx, r); err != nil {
			return 0, nil, err
		}
		return 0, []ledger.Event{{Kind: ledger.EventRoundFinalized, Round: id, Value: r.Pool}}, nil
	})
	return err
}

func (s *Store) startEntry(ctx context.Context, caller ledger.Address, id ledger.RoundID, payment decimal.Decimal) (uint32, error) {
	return s.write(ctx, "start entry", func(tx *sql.Tx, now time.Time) (uint32, []ledger.Event, error) {
		r, err := loadRound(ctx, tx, id)
		if err != nil {
			return 0, nil, err
		}
		rec, err := loadRecord(ctx, tx, id, caller)
		if err != nil {
			return 0, nil, err
		}
		entry, err := ledger.ApplyStartEntry(&r, &rec, payment, now)
		if err != nil {
			return 0, nil, err
		}
		if err := saveRound(ctx, tx, r); err != nil {
			return 0, nil, err
		}
		if err := saveRecord(ctx, tx, rec); err != nil {
			return 0, nil, err
		}
		ev := ledger.Event{Kind: ledger.EventEntryStarted, Round: id, Player: caller, Entry: entry, Value: payment}
		return entry, []ledger.Event{ev}, nil
	})
}

// recordMutation loads the round and a player record, applies fn and saves
// the record.
func (s *Store) recordMutation(ctx context.Context, op string, id ledger.RoundID, player ledger.Address,
	fn func(r ledger.Round, rec *ledger.PlayerRecord, now time.Time) (ledger.Event, error)) error {
	_, err := s.write(ctx, op, func(tx *sql.Tx, now time.Time) (uint32, []ledger.Event, error) {
		r, err := loadRound(ctx, tx, id)
		if err != nil {
			return 0, nil, err
		}
		rec, err := loadRecord(ctx, tx, id, player)
		if err != nil {
			return 0, nil, err
		}
		ev, err := fn(r, &rec, now)
		if err != nil {
			return 0, nil, err
		}
		if err := saveRecord(ctx, tx, rec); err != nil {
			return 0, nil, err
		}
		return 0, []ledger.Event{ev}, nil
	})
	return err
}

func (s *Store) startAttempt(ctx context.Context, caller ledger.Address, id ledger.RoundID) error {
	return s.recordMutation(ctx, "start attempt", id, caller, func(r ledger.Round, rec *ledger.PlayerRecord, now time.Time) (ledger.Event, error) {
		if err := ledger.ApplyStartAttempt(r, rec, s.limits, now); err != nil {
			return ledger.Event{}, err
		}
		return ledger.Event{Kind: ledger.EventAttemptStarted, Round: id, Player: caller, Entry: rec.EntryIndex, Attempt: rec.AttemptsUsed + 1}, nil
	})
}

func (s *Store) endAttempt(ctx context.Context, caller ledger.Address, id ledger.RoundID) error {
	return s.recordMutation(ctx, "end attempt", id, caller, func(r ledger.Round, rec *ledger.PlayerRecord, _ time.Time) (ledger.Event, error) {
		scored := rec.CurrentAttempt
		if err := ledger.ApplyEndAttempt(r, rec); err != nil {
			return ledger.Event{}, err
		}
		return ledger.Event{Kind: ledger.EventAttemptEnded, Round: id, Player: caller, Entry: rec.EntryIndex, Attempt: rec.AttemptsUsed, Amount: scored}, nil
	})
}

func (s *Store) submitScore(ctx context.Context, caller ledger.Address, id ledger.RoundID, amount uint64) error {
	return s.recordMutation(ctx, "submit score", id, caller, func(r ledger.Round, rec *ledger.PlayerRecord, now time.Time) (ledger.Event, error) {
		if err := ledger.ApplySubmitScore(r, rec, amount, s.limits, now); err != nil {
			return ledger.Event{}, err
		}
		return ledger.Event{Kind: ledger.EventScoreSubmitted, Round: id, Player: caller, Entry: rec.EntryIndex, Amount: amount}, nil
	})
}

func (s *Store) obstaclePassed(ctx context.Context, caller ledger.Address, id ledger.RoundID, player ledger.Address, entry, count uint32, delta uint64) error {
	approved := false
	if !caller.Equal(player) {
		var n int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM operators WHERE player = ? AND operator = ?",
			string(player), string(caller),
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("storage: cannot query operators: %w", err)
		}
		approved = n > 0
	}
	if err := ledger.Authorized(caller, player, approved); err != nil {
		return err
	}
	return s.recordMutation(ctx, "obstacle passed", id, player, func(r ledger.Round, rec *ledger.PlayerRecord, now time.Time) (ledger.Event, error) {
		if err := ledger.ApplyObstaclePassed(r, rec, entry, count, delta, s.limits, now); err != nil {
			return ledger.Event{}, err
		}
		return ledger.Event{Kind: ledger.EventObstaclePassed, Round: id, Player: player, Entry: entry, Obstacles: count, Amount: delta}, nil
	})
}

func (s *Store) setOperator(ctx context.Context, caller, operator ledger.Address, allowed bool) error {
	_, err := s.write(ctx, "set operator", func(tx *sql.Tx, _ time.Time) (uint32, []ledger.Event, error) {
		query := "DELETE FROM operators WHERE player = ? AND operator = ?"
		if allowed {
			query = "INSERT OR IGNORE INTO operators (player, operator) VALUES (?, ?)"
		}
		if _, err := tx.ExecContext(ctx, query, string(caller), string(operator)); err != nil {
			return 0, nil, fmt.Errorf("storage: cannot set operator: %w", err)
		}
		return 0, []ledger.Event{{Kind: ledger.EventOperatorSet, Player: caller}}, nil
	})
	return err
}

func (s *Store) readRecord(ctx context.Context, id ledger.RoundID, player ledger.Address) (ledger.PlayerRecord, error) {
	if _, err := loadRound(ctx, s.db, id); err != nil {
		return ledger.PlayerRecord{}, err
	}
	return loadRecord(ctx, s.db, id, player)
}

// Rounds lists rounds newest first.
func (s *Store) Rounds(ctx context.Context, limit int) ([]ledger.Round, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM rounds ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query rounds: %w", err)
	}
	var ids []ledger.RoundID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		ids = append(ids, ledger.RoundID(id))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	out := make([]ledger.Round, 0, len(ids))
	for _, id := range ids {
		r, err := loadRound(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) latestRound(ctx context.Context) (ledger.RoundID, bool, error) {
	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(id) FROM rounds").Scan(&id); err != nil {
		return 0, false, fmt.Errorf("storage: cannot query latest round: %w", err)
	}
	if !id.Valid {
		return 0, false, nil
	}
	return ledger.RoundID(id.Int64), true, nil
}

func (s *Store) records(ctx context.Context, id ledger.RoundID) ([]ledger.PlayerRecord, error) {
	if _, err := loadRound(ctx, s.db, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT player FROM players WHERE round_id = ? ORDER BY rowid", int64(id))
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query players: %w", err)
	}
	var players []ledger.Address
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		players = append(players, ledger.Address(p))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	out := make([]ledger.PlayerRecord, 0, len(players))
	for _, p := range players {
		rec, err := loadRecord(ctx, s.db, id, p)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// EventsSince returns up to limit events with Seq greater than after.
func (s *Store) EventsSince(ctx context.Context, after uint64, limit int) ([]ledger.Event, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, kind, round_id, player, entry, attempt, amount, obstacles, value, at
		 FROM events WHERE seq > ? ORDER BY seq LIMIT ?`, int64(after), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query events: %w", err)
	}
	defer rows.Close()

	var out []ledger.Event
	for rows.Next() {
		var (
			e                 ledger.Event
			kind, player, val string
			round, amount, at int64
		)
		if err := rows.Scan(&e.Seq, &kind, &round, &player, &e.Entry, &e.Attempt, &amount, &e.Obstacles, &val, &at); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		e.Kind = ledger.EventKind(kind)
		e.Round = ledger.RoundID(round)
		e.Player = ledger.Address(player)
		e.Amount = uint64(amount)
		e.At = fromUnixNano(at)
		if e.Value, err = decimal.NewFromString(val); err != nil {
			return nil, fmt.Errorf("storage: bad event value %q: %w", val, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return out, nil
}
