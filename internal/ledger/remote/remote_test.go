package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/ledger"
	"github.com/vovakirdan/dash-rally/internal/ledger/memory"
)

var (
	host   = ledger.MustAddress("0x01")
	player = ledger.MustAddress("0xabc")
	fee    = decimal.RequireFromString("0.001")
)

func newRelay(t *testing.T) (*memory.Book, *httptest.Server) {
	t.Helper()
	book := memory.New()
	srv := httptest.NewServer(NewServer(book, nil).Routes())
	t.Cleanup(srv.Close)
	return book, srv
}

func newClient(srv *httptest.Server, addr ledger.Address) *Client {
	return NewClient(Config{
		BaseURL:        srv.URL,
		Player:         addr,
		BaseRetryDelay: time.Millisecond,
		MaxRetryDelay:  5 * time.Millisecond,
	})
}

func TestClientAttemptFlow(t *testing.T) {
	ctx := context.Background()
	_, srv := newRelay(t)

	round, err := newClient(srv, host).CreateRound(ctx, fee, time.Hour)
	if err != nil {
		t.Fatalf("CreateRound: %v", err)
	}
	c := newClient(srv, player)
	entry, err := c.StartEntry(ctx, round, fee)
	if err != nil || entry != 1 {
		t.Fatalf("StartEntry = %d, %v", entry, err)
	}
	if err := c.StartAttempt(ctx, round); err != nil {
		t.Fatal(err)
	}
	if err := c.SubmitScoreBatch(ctx, round, 25); err != nil {
		t.Fatal(err)
	}
	if err := c.EndAttempt(ctx, round); err != nil {
		t.Fatal(err)
	}

	counters, err := ledger.ReadCounters(ctx, c, round, player)
	if err != nil {
		t.Fatal(err)
	}
	want := ledger.Counters{EntryIndex: 1, AttemptsUsed: 1, TotalScore: 25}
	if counters != want {
		t.Errorf("counters = %+v, expected %+v", counters, want)
	}

	r, err := c.Round(ctx, round)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Pool.Equal(fee) || !r.Creator.Equal(host) {
		t.Errorf("round = %+v", r)
	}
	if id, ok, err := c.LatestRound(ctx); err != nil || !ok || id != round {
		t.Errorf("LatestRound = %d, %v, %v", id, ok, err)
	}
	if s, _ := c.Score(ctx, round, player); s != 25 {
		t.Errorf("Score = %d", s)
	}
	rows, err := ledger.Standings(ctx, c, round)
	if err != nil || len(rows) != 1 || rows[0].Score != 25 {
		t.Errorf("Standings = %+v, %v", rows, err)
	}
}

func TestClientMapsRejections(t *testing.T) {
	ctx := context.Background()
	_, srv := newRelay(t)
	round, _ := newClient(srv, host).CreateRound(ctx, fee, time.Hour)
	c := newClient(srv, player)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"unknown round", func() error { return c.StartAttempt(ctx, round+9) }, ledger.ErrUnknownRound},
		{"no entry", func() error { return c.StartAttempt(ctx, round) }, ledger.ErrNoEntry},
		{"not creator", func() error { return c.FinalizeRound(ctx, round) }, ledger.ErrNotCreator},
		{"not operator", func() error { return c.ObstaclePassed(ctx, round, host, 1, 1, 1) }, ledger.ErrNotOperator},
	}
	for _, tc := range tests {
		err := tc.call()
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, expected %v", tc.name, err, tc.want)
		}
		if !ledger.IsRejection(err) {
			t.Errorf("%s: rejection lost its code", tc.name)
		}
	}
}

func TestServerRequiresCaller(t *testing.T) {
	_, srv := newRelay(t)
	c := newClient(srv, "")
	_, err := c.CreateRound(context.Background(), fee, time.Hour)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got %v, expected 401", err)
	}
	if httpErr.IsRetryable() {
		t.Error("401 should not be retryable")
	}
}

func TestClientRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	book, srv := newRelay(t)
	round, _ := newClient(srv, host).CreateRound(ctx, fee, time.Hour)

	book.FailNext(2)
	c := newClient(srv, player)
	if _, err := c.StartEntry(ctx, round, fee); err != nil {
		t.Fatalf("StartEntry after two failures: %v", err)
	}

	book.FailNext(10)
	_, err := c.EntryIndex(ctx, round, player)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || !httpErr.IsRetryable() {
		t.Errorf("exhausted retries: got %v", err)
	}
}

func TestRetriedWriteAppliesOnce(t *testing.T) {
	ctx := context.Background()
	book := memory.New()
	relay := NewServer(book, nil).Routes()

	// Swallow the first successful score response so the client retries a
	// write that already reached the ledger.
	var dropped atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == roundPath(1, "/scores") && dropped.CompareAndSwap(false, true) {
			rec := httptest.NewRecorder()
			relay.ServeHTTP(rec, r)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		relay.ServeHTTP(w, r)
	}))
	defer srv.Close()

	round, _ := newClient(srv, host).CreateRound(ctx, fee, time.Hour)
	c := newClient(srv, player)
	c.StartEntry(ctx, round, fee)
	c.StartAttempt(ctx, round)

	if err := c.SubmitScoreBatch(ctx, round, 25); err != nil {
		t.Fatalf("SubmitScoreBatch: %v", err)
	}
	if s, _ := c.CurrentAttemptScore(ctx, round, player); s != 25 {
		t.Errorf("CurrentAttemptScore = %d, expected 25", s)
	}
}

func TestEventsEndpoint(t *testing.T) {
	ctx := context.Background()
	_, srv := newRelay(t)
	round, _ := newClient(srv, host).CreateRound(ctx, fee, time.Hour)
	newClient(srv, player).StartEntry(ctx, round, fee)

	events, err := newClient(srv, player).EventsSince(ctx, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Kind != ledger.EventEntryStarted || !events[0].Player.Equal(player) {
		t.Errorf("events = %+v", events)
	}
}

func TestSubscribeStreamsLiveEvents(t *testing.T) {
	ctx := context.Background()
	_, srv := newRelay(t)
	round, _ := newClient(srv, host).CreateRound(ctx, fee, time.Hour)

	c := newClient(srv, player)
	c.StartEntry(ctx, round, fee)
	c.StartAttempt(ctx, round)
	events, cancel := c.Subscribe()
	defer cancel()

	// The stream skips history; keep writing until a live event arrives.
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case e := <-events:
			if e.Kind != ledger.EventScoreSubmitted || e.Round != round {
				t.Fatalf("unexpected event %+v", e)
			}
			return
		case <-tick.C:
			c.SubmitScoreBatch(ctx, round, 1)
		case <-deadline:
			t.Fatal("no event streamed")
		}
	}
}

func TestHealth(t *testing.T) {
	_, srv := newRelay(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
