package session

import (
	"context"
	"testing"
)

func TestCallDo(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res := Call{Kind: CallStartEntry, Round: h.round, Player: player, Payment: fee}.Do(ctx, h.acct)
	if res.Err != nil || res.Entry != 1 {
		t.Fatalf("start entry = %d, %v", res.Entry, res.Err)
	}
	if res := (Call{Kind: CallStartAttempt, Round: h.round}).Do(ctx, h.acct); res.Err != nil {
		t.Fatal(res.Err)
	}

	submit := Call{Kind: CallSubmit, Round: h.round, Amount: 12, Key: "batch-1"}
	for range 2 {
		if res := submit.Do(ctx, h.acct); res.Err != nil {
			t.Fatal(res.Err)
		}
	}

	res = Call{Kind: CallRefresh, Round: h.round, Player: player}.Do(ctx, h.acct)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Round.ID != h.round || res.Counters.CurrentAttemptScore != 12 {
		t.Errorf("refresh = %+v / %+v, want keyed submit applied once", res.Round, res.Counters)
	}

	if res := (Call{Kind: CallKind(99)}).Do(ctx, h.acct); res.Err == nil {
		t.Error("unknown call kind succeeded")
	}
}

func TestCallKindString(t *testing.T) {
	tests := []struct {
		kind CallKind
		want string
	}{
		{CallStartEntry, "start_entry"},
		{CallObstacle, "obstacle"},
		{CallRefresh, "refresh"},
		{CallKind(42), "call(42)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
