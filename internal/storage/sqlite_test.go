package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

var (
	host   = ledger.MustAddress("0x01")
	player = ledger.MustAddress("0xabc")
	fee    = decimal.RequireFromString("0.001")
	start  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func openStore(t *testing.T, now *time.Time) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"), WithClock(func() time.Time { return *now }))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreOpenClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	// Check that the file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestStoreAttemptFlow(t *testing.T) {
	ctx := context.Background()
	now := start
	store := openStore(t, &now)

	round, err := store.Account(host).CreateRound(ctx, fee, time.Hour)
	if err != nil {
		t.Fatalf("CreateRound() failed: %v", err)
	}
	acct := store.Account(player)
	entry, err := acct.StartEntry(ctx, round, fee)
	if err != nil || entry != 1 {
		t.Fatalf("StartEntry() = %d, %v", entry, err)
	}
	if err := acct.StartAttempt(ctx, round); err != nil {
		t.Fatalf("StartAttempt() failed: %v", err)
	}
	if err := acct.SubmitScoreBatch(ctx, round, 25); err != nil {
		t.Fatalf("SubmitScoreBatch() failed: %v", err)
	}
	if err := acct.SubmitScoreBatch(ctx, round, 3); err != nil {
		t.Fatalf("SubmitScoreBatch() failed: %v", err)
	}

	c, err := ledger.ReadCounters(ctx, acct, round, player)
	if err != nil {
		t.Fatal(err)
	}
	if !c.AttemptActive || c.CurrentAttemptScore != 28 {
		t.Errorf("mid-attempt counters = %+v", c)
	}

	if err := acct.EndAttempt(ctx, round); err != nil {
		t.Fatalf("EndAttempt() failed: %v", err)
	}
	c, _ = ledger.ReadCounters(ctx, acct, round, player)
	want := ledger.Counters{EntryIndex: 1, AttemptsUsed: 1, TotalScore: 28}
	if c != want {
		t.Errorf("counters = %+v, expected %+v", c, want)
	}

	r, err := acct.Round(ctx, round)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Pool.Equal(fee) || r.PlayerCount != 1 || !r.EndTime.Equal(start.Add(time.Hour)) {
		t.Errorf("round = %+v", r)
	}
}

func TestStoreRejections(t *testing.T) {
	ctx := context.Background()
	now := start
	store := openStore(t, &now)
	round, _ := store.Account(host).CreateRound(ctx, fee, time.Hour)
	acct := store.Account(player)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"unknown round", func() error { return acct.StartAttempt(ctx, round+5) }, ledger.ErrUnknownRound},
		{"attempt before entry", func() error { return acct.StartAttempt(ctx, round) }, ledger.ErrNoEntry},
		{"underpaid", func() error {
			_, err := acct.StartEntry(ctx, round, decimal.RequireFromString("0.0001"))
			return err
		}, ledger.ErrInsufficientFee},
		{"submit without attempt", func() error { return acct.SubmitScoreBatch(ctx, round, 1) }, ledger.ErrNoAttempt},
	}
	for _, tc := range tests {
		if err := tc.call(); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, expected %v", tc.name, err, tc.want)
		}
	}
}

func TestStoreAttemptsExhausted(t *testing.T) {
	ctx := context.Background()
	now := start
	store := openStore(t, &now)
	round, _ := store.Account(host).CreateRound(ctx, fee, time.Hour)
	acct := store.Account(player)
	if _, err := acct.StartEntry(ctx, round, fee); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := acct.StartAttempt(ctx, round); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if err := acct.EndAttempt(ctx, round); err != nil {
			t.Fatal(err)
		}
	}
	if err := acct.StartAttempt(ctx, round); !errors.Is(err, ledger.ErrAttemptsExhausted) {
		t.Errorf("fourth attempt: got %v", err)
	}
}

func TestStoreBatchKeyDedupe(t *testing.T) {
	ctx := context.Background()
	now := start
	store := openStore(t, &now)
	round, _ := store.Account(host).CreateRound(ctx, fee, time.Hour)
	acct := store.Account(player)
	acct.StartEntry(ctx, round, fee)
	acct.StartAttempt(ctx, round)

	keyed := ledger.WithBatchKey(ctx, "4b1f0c2e")
	for i := 0; i < 2; i++ {
		if err := acct.SubmitScoreBatch(keyed, round, 25); err != nil {
			t.Fatalf("keyed submit %d: %v", i, err)
		}
	}
	if s, _ := acct.CurrentAttemptScore(ctx, round, player); s != 25 {
		t.Errorf("CurrentAttemptScore = %d, expected 25", s)
	}
}

func TestStoreOperatorAndStandings(t *testing.T) {
	ctx := context.Background()
	now := start
	store := openStore(t, &now)
	round, _ := store.Account(host).CreateRound(ctx, fee, time.Hour)

	relay := store.Account(ledger.MustAddress("0x0e"))
	acct := store.Account(player)
	entry, _ := acct.StartEntry(ctx, round, fee)
	acct.StartAttempt(ctx, round)
	now = now.Add(5 * time.Second)

	if err := relay.ObstaclePassed(ctx, round, player, entry, 1, 40); !errors.Is(err, ledger.ErrNotOperator) {
		t.Fatalf("unapproved relay: got %v", err)
	}
	if err := acct.SetOperator(ctx, relay.Account(), true); err != nil {
		t.Fatal(err)
	}
	if err := relay.ObstaclePassed(ctx, round, player, entry, 2, 90); err != nil {
		t.Fatalf("approved relay: %v", err)
	}

	other := store.Account(ledger.MustAddress("0xdef"))
	other.StartEntry(ctx, round, fee)
	other.StartAttempt(ctx, round)
	other.SubmitScoreBatch(ctx, round, 12)

	rows, err := ledger.Standings(ctx, acct, round)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Player != player || rows[0].Score != 90 || rows[1].Score != 12 {
		t.Errorf("standings = %+v", rows)
	}
}

func TestStoreFinalizeAndLatest(t *testing.T) {
	ctx := context.Background()
	now := start
	store := openStore(t, &now)

	if _, ok, err := store.Account(host).LatestRound(ctx); err != nil || ok {
		t.Fatalf("LatestRound on empty store = %v, %v", ok, err)
	}
	first, _ := store.Account(host).CreateRound(ctx, fee, time.Hour)
	second, _ := store.Account(host).CreateRound(ctx, fee, 2*time.Hour)
	if id, ok, _ := store.Account(player).LatestRound(ctx); !ok || id != second {
		t.Errorf("LatestRound = %d, expected %d", id, second)
	}

	if err := store.Account(host).FinalizeRound(ctx, first); !errors.Is(err, ledger.ErrRoundNotEnded) {
		t.Errorf("early finalize: got %v", err)
	}
	now = now.Add(time.Hour)
	if err := store.Account(host).FinalizeRound(ctx, first); err != nil {
		t.Fatal(err)
	}

	rounds, err := store.Rounds(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rounds) != 2 || rounds[0].ID != second || !rounds[1].Finalized {
		t.Errorf("rounds = %+v", rounds)
	}
}

func TestStoreEventsSinceAndSubscribe(t *testing.T) {
	ctx := context.Background()
	now := start
	store := openStore(t, &now)
	events, cancel := store.Account(player).Subscribe()
	defer cancel()

	round, _ := store.Account(host).CreateRound(ctx, fee, time.Hour)
	store.Account(player).StartEntry(ctx, round, fee)

	select {
	case e := <-events:
		if e.Kind != ledger.EventRoundCreated || e.Seq != 1 {
			t.Errorf("first event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	all, err := store.EventsSince(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[1].Kind != ledger.EventEntryStarted || !all[1].Value.Equal(fee) {
		t.Fatalf("events = %+v", all)
	}
	tail, _ := store.EventsSince(ctx, 1, 10)
	if len(tail) != 1 || tail[0].Player != player {
		t.Errorf("tail = %+v", tail)
	}
}

func TestStoreReopenKeepsLedger(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	round, _ := store.Account(host).CreateRound(ctx, fee, time.Hour)
	store.Account(player).StartEntry(ctx, round, fee)
	store.Close()

	store, err = Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if idx, err := store.Account(player).EntryIndex(ctx, round, player); err != nil || idx != 1 {
		t.Errorf("EntryIndex after reopen = %d, %v", idx, err)
	}
}

func TestStoreRuns(t *testing.T) {
	now := start
	store := openStore(t, &now)

	for _, s := range []int{100, 50, 200} {
		if _, err := store.SaveRun("dash_practice", s, s/10, "local"); err != nil {
			t.Fatalf("SaveRun() failed: %v", err)
		}
	}
	store.SaveRun("dash", 500, 50, "chain")

	runs, err := store.TopRuns("dash_practice", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Score != 200 || runs[1].Score != 100 {
		t.Errorf("TopRuns = %+v", runs)
	}
	if best, _ := store.BestRun("dash_practice"); best != 200 {
		t.Errorf("BestRun = %d, expected 200", best)
	}
	if best, _ := store.BestRun("missing"); best != 0 {
		t.Errorf("BestRun(missing) = %d, expected 0", best)
	}

	stats, err := store.AllRunStats()
	if err != nil {
		t.Fatal(err)
	}
	if st := stats["dash_practice"]; st == nil || st.Runs != 3 || st.Best != 200 {
		t.Errorf("stats = %+v", st)
	}

	if err := store.ClearRuns("dash_practice"); err != nil {
		t.Fatal(err)
	}
	if runs, _ := store.TopRuns("dash_practice", 10); len(runs) != 0 {
		t.Errorf("runs after clear = %d", len(runs))
	}
}

func TestStoreExpandHomePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := Open("~/.rally/test.db")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Join(home, ".rally", "test.db")); err != nil {
		t.Errorf("expected database under HOME: %v", err)
	}
}
