package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/ledger"
	"github.com/vovakirdan/dash-rally/internal/rng"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var (
	host   = ledger.MustAddress("0x01")
	player = ledger.MustAddress("0xabc")
	fee    = decimal.RequireFromString("0.001")
)

func newBook(t *testing.T) (*Book, *fakeClock, ledger.RoundID) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := New(WithClock(clock.Now))
	id, err := b.Account(host).CreateRound(context.Background(), fee, time.Hour)
	if err != nil {
		t.Fatalf("CreateRound: %v", err)
	}
	return b, clock, id
}

func TestFullAttemptFlow(t *testing.T) {
	ctx := context.Background()
	b, _, round := newBook(t)
	acct := b.Account(player)

	entry, err := acct.StartEntry(ctx, round, fee)
	if err != nil || entry != 1 {
		t.Fatalf("StartEntry = %d, %v", entry, err)
	}
	if err := acct.StartAttempt(ctx, round); err != nil {
		t.Fatal(err)
	}
	for _, amt := range []uint64{25, 25, 7} {
		if err := acct.SubmitScoreBatch(ctx, round, amt); err != nil {
			t.Fatal(err)
		}
	}
	if s, _ := acct.CurrentAttemptScore(ctx, round, player); s != 57 {
		t.Errorf("CurrentAttemptScore = %d, expected 57", s)
	}
	if err := acct.EndAttempt(ctx, round); err != nil {
		t.Fatal(err)
	}

	c, err := ledger.ReadCounters(ctx, acct, round, player)
	if err != nil {
		t.Fatal(err)
	}
	want := ledger.Counters{EntryIndex: 1, AttemptsUsed: 1, TotalScore: 57}
	if c != want {
		t.Errorf("counters = %+v, expected %+v", c, want)
	}

	r, _ := acct.Round(ctx, round)
	if r.PlayerCount != 1 || !r.Pool.Equal(fee) {
		t.Errorf("round = %+v", r)
	}
}

func TestUnknownRound(t *testing.T) {
	b, _, _ := newBook(t)
	_, err := b.Account(player).StartEntry(context.Background(), 99, fee)
	if !errors.Is(err, ledger.ErrUnknownRound) {
		t.Errorf("got %v, expected ErrUnknownRound", err)
	}
}

func TestBatchKeyAppliesOnce(t *testing.T) {
	ctx := context.Background()
	b, _, round := newBook(t)
	acct := b.Account(player)
	if _, err := acct.StartEntry(ctx, round, fee); err != nil {
		t.Fatal(err)
	}
	if err := acct.StartAttempt(ctx, round); err != nil {
		t.Fatal(err)
	}

	keyed := ledger.WithBatchKey(ctx, "batch-1")
	for i := 0; i < 3; i++ {
		if err := acct.SubmitScoreBatch(keyed, round, 25); err != nil {
			t.Fatal(err)
		}
	}
	if s, _ := acct.CurrentAttemptScore(ctx, round, player); s != 25 {
		t.Errorf("retried batch counted %d, expected 25", s)
	}
}

func TestBatchKeysBounded(t *testing.T) {
	b := New()
	ctx := context.Background()
	for i := range maxKeys + 10 {
		b.remember(ledger.WithBatchKey(ctx, fmt.Sprintf("k-%d", i)), uint32(i))
	}
	if len(b.keyed) != maxKeys || len(b.keyOrder) != maxKeys {
		t.Fatalf("keys = %d, order = %d, expected %d", len(b.keyed), len(b.keyOrder), maxKeys)
	}
	if _, ok := b.keyedOnce(ledger.WithBatchKey(ctx, "k-0")); ok {
		t.Error("oldest key kept")
	}
	if v, ok := b.keyedOnce(ledger.WithBatchKey(ctx, fmt.Sprintf("k-%d", maxKeys+9))); !ok || v != uint32(maxKeys+9) {
		t.Errorf("newest key = %d, %v", v, ok)
	}

	// Remembering a key again does not grow the order.
	b.remember(ledger.WithBatchKey(ctx, fmt.Sprintf("k-%d", maxKeys+9)), 1)
	if len(b.keyOrder) != maxKeys {
		t.Errorf("order grew to %d", len(b.keyOrder))
	}
}

func TestOperatorRelay(t *testing.T) {
	ctx := context.Background()
	b, clock, round := newBook(t)
	acct := b.Account(player)
	relay := b.Account(ledger.MustAddress("0x0e"))

	entry, _ := acct.StartEntry(ctx, round, fee)
	if err := acct.StartAttempt(ctx, round); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Second)

	err := relay.ObstaclePassed(ctx, round, player, entry, 1, 50)
	if !errors.Is(err, ledger.ErrNotOperator) {
		t.Fatalf("unapproved relay: got %v", err)
	}
	if err := acct.SetOperator(ctx, relay.Account(), true); err != nil {
		t.Fatal(err)
	}
	if err := relay.ObstaclePassed(ctx, round, player, entry, 1, 50); err != nil {
		t.Fatalf("approved relay: %v", err)
	}
	if err := relay.ObstaclePassed(ctx, round, player, entry, 1, 50); !errors.Is(err, ledger.ErrObstacleOrder) {
		t.Errorf("repeat count: got %v", err)
	}
	if s, _ := acct.Score(ctx, round, player); s != 50 {
		t.Errorf("Score = %d, expected 50", s)
	}
}

func TestRoundEndsAndFinalizes(t *testing.T) {
	ctx := context.Background()
	b, clock, round := newBook(t)
	acct := b.Account(player)
	if _, err := acct.StartEntry(ctx, round, fee); err != nil {
		t.Fatal(err)
	}
	if err := acct.StartAttempt(ctx, round); err != nil {
		t.Fatal(err)
	}
	if err := acct.SubmitScoreBatch(ctx, round, 10); err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Hour)
	if err := acct.SubmitScoreBatch(ctx, round, 10); !errors.Is(err, ledger.ErrRoundInactive) {
		t.Errorf("late submit: got %v", err)
	}
	if err := acct.EndAttempt(ctx, round); err != nil {
		t.Errorf("late end should still lock the attempt: %v", err)
	}
	if err := acct.FinalizeRound(ctx, round); !errors.Is(err, ledger.ErrNotCreator) {
		t.Errorf("player finalize: got %v", err)
	}
	if err := b.Account(host).FinalizeRound(ctx, round); err != nil {
		t.Fatal(err)
	}
	if r, _ := acct.Round(ctx, round); !r.Finalized {
		t.Error("round not finalized")
	}
}

func TestStandingsAndLatest(t *testing.T) {
	ctx := context.Background()
	b, _, round := newBook(t)
	scores := map[ledger.Address]uint64{"0xa1": 5, "0xa2": 40, "0xa3": 12}
	for addr, s := range scores {
		acct := b.Account(addr)
		if _, err := acct.StartEntry(ctx, round, fee); err != nil {
			t.Fatal(err)
		}
		if err := acct.StartAttempt(ctx, round); err != nil {
			t.Fatal(err)
		}
		if err := acct.SubmitScoreBatch(ctx, round, s); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := ledger.Standings(ctx, b.Account(player), round)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0].Player != "0xa2" || rows[2].Player != "0xa1" {
		t.Errorf("standings = %+v", rows)
	}

	id, ok, err := b.Account(player).LatestRound(ctx)
	if err != nil || !ok || id != round {
		t.Errorf("LatestRound = %d, %v, %v", id, ok, err)
	}
	if _, ok, _ := New().Account(player).LatestRound(ctx); ok {
		t.Error("empty book reports a round")
	}
}

func TestEventsPublishedAndRetained(t *testing.T) {
	ctx := context.Background()
	b, _, round := newBook(t)
	acct := b.Account(player)
	events, cancel := acct.Subscribe()
	defer cancel()

	if _, err := acct.StartEntry(ctx, round, fee); err != nil {
		t.Fatal(err)
	}
	select {
	case e := <-events:
		if e.Kind != ledger.EventEntryStarted || !e.Concerns(round, player) {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	all, _ := b.EventsSince(ctx, 0, 0)
	if len(all) != 2 || all[0].Kind != ledger.EventRoundCreated {
		t.Fatalf("retained events = %+v", all)
	}
	tail, _ := b.EventsSince(ctx, all[0].Seq, 10)
	if len(tail) != 1 || tail[0].Seq != all[1].Seq {
		t.Errorf("EventsSince(after first) = %+v", tail)
	}
}

func TestInjectedFailures(t *testing.T) {
	ctx := context.Background()
	b, _, round := newBook(t)
	acct := b.Account(player)

	b.FailNext(1)
	if _, err := acct.StartEntry(ctx, round, fee); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, expected ErrUnavailable", err)
	}
	if ledger.IsRejection(ErrUnavailable) {
		t.Error("injected failure must not look like a rule rejection")
	}
	if _, err := acct.StartEntry(ctx, round, fee); err != nil {
		t.Fatalf("call after injected failure: %v", err)
	}

	b.SetFaults(Faults{Latency: time.Second})
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := acct.StartAttempt(short, round); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("slow call: got %v", err)
	}
}

func TestBotsScore(t *testing.T) {
	ctx := context.Background()
	b, _, round := newBook(t)
	bots := BotAddresses(2)
	stream := rng.New("bots-test")

	for i := 0; i < 20; i++ {
		for _, addr := range bots {
			b.botTurn(ctx, round, addr, stream)
		}
	}

	rows, err := ledger.Standings(ctx, b.Account(player), round)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("standings = %+v, expected both bots", rows)
	}
	var total uint64
	for _, r := range rows {
		total += r.Score
	}
	if total == 0 {
		t.Error("bots never scored in 40 turns")
	}
}

func TestRunBotsStopsOnCancel(t *testing.T) {
	b, _, round := newBook(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.RunBots(ctx, round, 1, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunBots did not stop")
	}
}
