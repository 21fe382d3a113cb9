package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/dash-rally/internal/ledger"
	"github.com/vovakirdan/dash-rally/internal/ledger/memory"
)

func TestCurrentRound(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	book := memory.New(memory.WithClock(func() time.Time { return now }))
	l := book.Account(host)

	if _, err := CurrentRound(ctx, l, fee, time.Hour, false, now); !errors.Is(err, ledger.ErrUnknownRound) {
		t.Fatalf("no rounds, create=false: %v", err)
	}

	first, err := CurrentRound(ctx, l, fee, time.Hour, true, now)
	if err != nil {
		t.Fatal(err)
	}
	again, err := CurrentRound(ctx, l, fee, time.Hour, true, now)
	if err != nil || again != first {
		t.Fatalf("open round not reused: %d vs %d, %v", again, first, err)
	}

	now = now.Add(2 * time.Hour)
	stale, err := CurrentRound(ctx, l, fee, time.Hour, false, now)
	if err != nil || stale != first {
		t.Errorf("create=false after end = %d, %v; want %d", stale, err, first)
	}
	next, err := CurrentRound(ctx, l, fee, time.Hour, true, now)
	if err != nil || next == first {
		t.Errorf("expired round not replaced: %d, %v", next, err)
	}
}
