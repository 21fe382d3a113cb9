package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind names a ledger event.
type EventKind string

const (
	EventRoundCreated   EventKind = "round_created"
	EventRoundFinalized EventKind = "round_finalized"
	EventEntryStarted   EventKind = "entry_started"
	EventAttemptStarted EventKind = "attempt_started"
	EventAttemptEnded   EventKind = "attempt_ended"
	EventScoreSubmitted EventKind = "score_submitted"
	EventObstaclePassed EventKind = "obstacle_passed"
	EventOperatorSet    EventKind = "operator_set"
)

// Event is emitted after every successful write.
type Event struct {
	Seq       uint64          `json:"seq"`
	Kind      EventKind       `json:"kind"`
	Round     RoundID         `json:"round"`
	Player    Address         `json:"player,omitempty"`
	Entry     uint32          `json:"entry,omitempty"`
	Attempt   uint32          `json:"attempt,omitempty"`
	Amount    uint64          `json:"amount,omitempty"`
	Obstacles uint32          `json:"obstacles,omitempty"`
	Value     decimal.Decimal `json:"value"`
	At        time.Time       `json:"at"`
}

// Concerns reports whether e affects the given player's view of round.
func (e Event) Concerns(round RoundID, player Address) bool {
	if e.Round != round {
		return false
	}
	return e.Player == "" || e.Player.Equal(player)
}

// Hub fans events out to subscribers. Publishing never blocks: when a
// subscriber's buffer is full its oldest event is dropped.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	buffer int
}

type subscription struct {
	ch       chan Event
	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 64
	}
	return &Hub{subs: make(map[int]*subscription), buffer: buffer}
}

// Subscribe registers a subscriber. Cancel closes the channel and is safe
// to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	s := &subscription{
		ch:   make(chan Event, h.buffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = s
	h.mu.Unlock()

	cancel := func() {
		s.doneOnce.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(s.done)
			close(s.ch)
			h.mu.Unlock()
		})
	}
	return s.ch, cancel
}

// Publish delivers e to every subscriber.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		s.send(e)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (s *subscription) send(e Event) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.ch <- e:
	default:
		// Buffer full, drop oldest and retry
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}
