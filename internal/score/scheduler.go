package score

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInFlight is returned when a reset is attempted with a commit outstanding.
var ErrInFlight = errors.New("score: commit in flight")

// Policy decides when buffered score is worth flushing.
type Policy struct {
	Threshold    uint64        // flush once this many whole units are buffered
	MaxInterval  time.Duration // or once this long has passed since the last success
	RetryBackoff time.Duration // wait after a failure, doubled per consecutive failure
}

// DefaultPolicy is 25 units or 3 s, with a 1 s retry backoff.
func DefaultPolicy() Policy {
	return Policy{Threshold: 25, MaxInterval: 3 * time.Second, RetryBackoff: time.Second}
}

// PendingCommit is an amount in flight to the ledger.
type PendingCommit struct {
	Seq    uint64
	Amount uint64
	At     time.Time
	Forced bool
	// Key is the idempotency key; a resend of this commit reuses it.
	Key string
	// Resend marks a retry of a commit whose outcome was unknown.
	Resend bool
}

// Scheduler owns the accumulator and the single in-flight commit. A commit
// that failed without a definite answer is held for resend under its
// original key ahead of any newer units, so a ledger that did apply it
// recognises the retry.
type Scheduler struct {
	policy      Policy
	acc         Accumulator
	pending     *PendingCommit
	resend      *PendingCommit
	seq         uint64
	ledgered    uint64
	lastSuccess time.Time
	failures    int
	retryAt     time.Time
}

// NewScheduler creates a scheduler whose flush interval counts from start.
func NewScheduler(policy Policy, start time.Time) *Scheduler {
	return &Scheduler{policy: policy, lastSuccess: start}
}

// Credit adds earned units to the buffer.
func (s *Scheduler) Credit(units float64) { s.acc.Add(units) }

// Buffer returns the uncommitted fractional amount.
func (s *Scheduler) Buffer() float64 { return s.acc.Buffer() }

// Ledgered returns the amount confirmed by the ledger this attempt.
func (s *Scheduler) Ledgered() uint64 { return s.ledgered }

// Credited returns every unit earned this attempt.
func (s *Scheduler) Credited() float64 { return s.acc.Credited() }

// Pending returns the amount sent but not confirmed: in flight or waiting
// for resend.
func (s *Scheduler) Pending() uint64 {
	switch {
	case s.pending != nil:
		return s.pending.Amount
	case s.resend != nil:
		return s.resend.Amount
	}
	return 0
}

// Resending reports whether the next dispatch repeats a failed commit.
func (s *Scheduler) Resending() bool { return s.resend != nil }

// InFlight returns the outstanding commit, if any.
func (s *Scheduler) InFlight() (PendingCommit, bool) {
	if s.pending == nil {
		return PendingCommit{}, false
	}
	return *s.pending, true
}

// LastSuccess returns when the last commit was confirmed.
func (s *Scheduler) LastSuccess() time.Time { return s.lastSuccess }

// Failures returns the number of consecutive failed commits.
func (s *Scheduler) Failures() int { return s.failures }

// Due reports whether a non-forced Dispatch at now would send something.
func (s *Scheduler) Due(now time.Time) bool {
	if s.pending != nil || now.Before(s.retryAt) {
		return false
	}
	if s.resend != nil {
		return true
	}
	amount := s.acc.Floor()
	if amount == 0 {
		return false
	}
	return amount >= s.policy.Threshold || now.Sub(s.lastSuccess) >= s.policy.MaxInterval
}

// Dispatch starts a commit of the whole buffered amount when policy allows.
// A forced dispatch ignores threshold, interval and backoff but still needs
// a whole unit buffered. Nothing is dispatched while a commit is in flight.
func (s *Scheduler) Dispatch(now time.Time, force bool) (PendingCommit, bool) {
	return s.DispatchAtMost(now, force, 0)
}

// DispatchAtMost is Dispatch with the amount capped at limit; 0 means no cap.
// The remainder stays buffered for the next commit. A held resend goes out
// first, unchanged and uncapped.
func (s *Scheduler) DispatchAtMost(now time.Time, force bool, limit uint64) (PendingCommit, bool) {
	if s.pending != nil {
		return PendingCommit{}, false
	}
	if s.resend != nil {
		if !force && !s.Due(now) {
			return PendingCommit{}, false
		}
		c := *s.resend
		s.resend = nil
		s.seq++
		c.Seq = s.seq
		c.At = now
		c.Forced = force
		c.Resend = true
		s.pending = &c
		return c, true
	}
	amount := s.acc.Floor()
	if amount == 0 {
		return PendingCommit{}, false
	}
	if !force && !s.Due(now) {
		return PendingCommit{}, false
	}
	if limit > 0 && amount > limit {
		amount = limit
	}

	s.acc.take(amount)
	s.seq++
	s.pending = &PendingCommit{
		Seq:    s.seq,
		Amount: amount,
		At:     now,
		Forced: force,
		Key:    uuid.NewString(),
	}
	return *s.pending, true
}

// Confirm settles the commit with the given seq. Unknown or stale seqs are
// ignored.
func (s *Scheduler) Confirm(seq uint64, now time.Time) bool {
	if s.pending == nil || s.pending.Seq != seq {
		return false
	}
	s.ledgered += s.pending.Amount
	s.pending = nil
	s.lastSuccess = now
	s.failures = 0
	s.retryAt = time.Time{}
	return true
}

// Fail holds the commit for resend under the same key and backs off. Use
// it when the ledger may have applied the commit, e.g. on a timeout.
// Unknown or stale seqs are ignored.
func (s *Scheduler) Fail(seq uint64, now time.Time) bool {
	if s.pending == nil || s.pending.Seq != seq {
		return false
	}
	s.resend = s.pending
	s.pending = nil
	s.failures++
	s.retryAt = now.Add(s.backoff())
	return true
}

// Reject returns the commit's amount to the buffer and backs off. Use it
// when the ledger definitely refused the commit. Unknown or stale seqs are
// ignored.
func (s *Scheduler) Reject(seq uint64, now time.Time) bool {
	if s.pending == nil || s.pending.Seq != seq {
		return false
	}
	s.acc.restore(s.pending.Amount)
	s.pending = nil
	s.failures++
	s.retryAt = now.Add(s.backoff())
	return true
}

// Discard gives up on everything not yet confirmed and not in flight: the
// held resend and the whole buffer. It returns the units dropped.
func (s *Scheduler) Discard() float64 {
	dropped := s.acc.discard()
	if s.resend != nil {
		dropped += float64(s.resend.Amount)
		s.acc.uncredit(s.resend.Amount)
		s.resend = nil
	}
	return dropped
}

func (s *Scheduler) backoff() time.Duration {
	if s.policy.RetryBackoff <= 0 || s.failures == 0 {
		return 0
	}
	d := s.policy.RetryBackoff
	for i := 1; i < s.failures; i++ {
		d *= 2
		if s.policy.MaxInterval > 0 && d >= s.policy.MaxInterval {
			return s.policy.MaxInterval
		}
	}
	return d
}

// DropFraction discards the sub-unit remainder at attempt end.
func (s *Scheduler) DropFraction() float64 { return s.acc.DropFraction() }

// Reset prepares the scheduler for a new attempt. It is refused while a
// commit is in flight so the outstanding amount cannot be orphaned. A held
// resend belongs to the old attempt and is dropped.
func (s *Scheduler) Reset(now time.Time) error {
	if s.pending != nil {
		return ErrInFlight
	}
	s.resend = nil
	s.acc.Reset()
	s.ledgered = 0
	s.lastSuccess = now
	s.failures = 0
	s.retryAt = time.Time{}
	return nil
}
