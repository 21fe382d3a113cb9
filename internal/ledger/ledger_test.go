package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    Address
		wantErr bool
	}{
		{"0xABC", "0xabc", false},
		{" 0XdeadBEEF ", "0xdeadbeef", false},
		{"0x" + strings.Repeat("a", 40), Address("0x" + strings.Repeat("a", 40)), false},
		{"0x" + strings.Repeat("a", 41), "", true},
		{"abc", "", true},
		{"0xzz", "", true},
		{"0x", "", true},
	}
	for _, tc := range tests {
		got, err := ParseAddress(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseAddress(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseAddress(%q) = %q, expected %q", tc.in, got, tc.want)
		}
	}
}

func TestAddressFromNameStable(t *testing.T) {
	a := AddressFromName("Alice")
	if a != AddressFromName("alice") {
		t.Error("name derivation should ignore case")
	}
	if a == AddressFromName("bob") {
		t.Error("different names produced the same address")
	}
	if _, err := ParseAddress(string(a)); err != nil || len(a) != 42 {
		t.Errorf("derived address %q is not a valid 20-byte address", a)
	}
	if s := a.Short(); len([]rune(s)) != 11 {
		t.Errorf("Short() = %q", s)
	}
}

func TestErrorCodesRoundTrip(t *testing.T) {
	for sentinel, code := range codes {
		wrapped := fmt.Errorf("memory: start attempt: %w", sentinel)
		if got := Code(wrapped); got != code {
			t.Errorf("Code(%v) = %q, expected %q", sentinel, got, code)
		}
		if got := FromCode(code); got != sentinel {
			t.Errorf("FromCode(%q) = %v", code, got)
		}
	}
	if IsRejection(errors.New("connection refused")) {
		t.Error("transport error classified as rejection")
	}
	if FromCode("nope") != nil {
		t.Error("unknown code should map to nil")
	}
}

func TestBatchKey(t *testing.T) {
	ctx := context.Background()
	if BatchKey(ctx) != "" {
		t.Error("empty context carries a key")
	}
	if BatchKey(WithBatchKey(ctx, "")) != "" {
		t.Error("empty key should not be stored")
	}
	if got := BatchKey(WithBatchKey(ctx, "k1")); got != "k1" {
		t.Errorf("BatchKey = %q", got)
	}
}

func TestEventConcerns(t *testing.T) {
	p := MustAddress("0xabc")
	tests := []struct {
		name string
		ev   Event
		want bool
	}{
		{"own score", Event{Round: 1, Player: p}, true},
		{"case differs", Event{Round: 1, Player: "0xABC"}, true},
		{"round-wide", Event{Round: 1, Kind: EventRoundFinalized}, true},
		{"other player", Event{Round: 1, Player: "0xdef"}, false},
		{"other round", Event{Round: 2, Player: p}, false},
	}
	for _, tc := range tests {
		if got := tc.ev.Concerns(1, p); got != tc.want {
			t.Errorf("%s: Concerns = %v", tc.name, got)
		}
	}
}

func TestHubFanOut(t *testing.T) {
	h := NewHub(4)
	a, cancelA := h.Subscribe()
	b, cancelB := h.Subscribe()
	defer cancelB()

	h.Publish(Event{Seq: 1})
	for _, ch := range []<-chan Event{a, b} {
		select {
		case e := <-ch:
			if e.Seq != 1 {
				t.Errorf("Seq = %d", e.Seq)
			}
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Error("cancelled channel still open")
	}
	if h.Len() != 1 {
		t.Errorf("Len = %d, expected 1", h.Len())
	}
	h.Publish(Event{Seq: 2})
}

func TestHubDropsOldest(t *testing.T) {
	h := NewHub(2)
	ch, cancel := h.Subscribe()
	defer cancel()

	for i := uint64(1); i <= 5; i++ {
		h.Publish(Event{Seq: i})
	}
	first := <-ch
	second := <-ch
	if first.Seq != 4 || second.Seq != 5 {
		t.Errorf("got %d, %d; expected 4, 5", first.Seq, second.Seq)
	}
}

type fieldLedger struct {
	Ledger
	counters map[Address]Counters
	scores   map[Address]uint64
}

func (f fieldLedger) EntryIndex(context.Context, RoundID, Address) (uint32, error) { return 2, nil }
func (f fieldLedger) AttemptsUsed(context.Context, RoundID, Address) (uint32, error) {
	return 1, nil
}
func (f fieldLedger) AttemptActive(context.Context, RoundID, Address) (bool, error) {
	return true, nil
}
func (f fieldLedger) CurrentAttemptScore(context.Context, RoundID, Address) (uint64, error) {
	return 7, nil
}
func (f fieldLedger) TotalScore(context.Context, RoundID, Address) (uint64, error) {
	return 40, nil
}
func (f fieldLedger) Players(context.Context, RoundID) ([]Address, error) {
	out := make([]Address, 0, len(f.scores))
	for a := range f.scores {
		out = append(out, a)
	}
	return out, nil
}
func (f fieldLedger) Score(_ context.Context, _ RoundID, p Address) (uint64, error) {
	return f.scores[p], nil
}

func TestReadCountersFieldByField(t *testing.T) {
	c, err := ReadCounters(context.Background(), fieldLedger{}, 1, "0xabc")
	if err != nil {
		t.Fatal(err)
	}
	want := Counters{EntryIndex: 2, AttemptsUsed: 1, AttemptActive: true, CurrentAttemptScore: 7, TotalScore: 40}
	if c != want {
		t.Errorf("ReadCounters = %+v, expected %+v", c, want)
	}
}

func TestStandingsSorted(t *testing.T) {
	l := fieldLedger{scores: map[Address]uint64{"0x01": 5, "0x02": 90, "0x03": 5, "0x04": 12}}
	rows, err := Standings(context.Background(), l, 1)
	if err != nil {
		t.Fatal(err)
	}
	order := []Address{"0x02", "0x04", "0x01", "0x03"}
	for i, want := range order {
		if rows[i].Player != want {
			t.Errorf("row %d = %s, expected %s", i, rows[i].Player, want)
		}
	}
}
