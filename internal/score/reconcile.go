package score

import "math"

// Remote is the authoritative view read from the ledger.
type Remote struct {
	AttemptScore uint64 // current attempt score
	EntryTotal   uint64 // locked score of the current entry
}

// Local is the client's optimistic view of the live attempt.
type Local struct {
	Ledgered uint64  // confirmed by this client since the attempt began
	Pending  uint64  // in flight
	Buffer   float64 // not yet sent
}

// LocalOf captures the scheduler's current local view.
func LocalOf(s *Scheduler) Local {
	return Local{Ledgered: s.Ledgered(), Pending: s.Pending(), Buffer: s.Buffer()}
}

// Display is what the player is shown.
type Display struct {
	Attempt uint64
	Total   uint64
}

// Reconcile combines both views. The sent score is whichever of the ledger
// read and the local confirmed plus in-flight total is further along: a
// read may predate our last confirmation, may already include a commit
// whose confirmation has not arrived, or may include writes made
// elsewhere. Buffered units are added on top.
func Reconcile(remote Remote, local Local) Display {
	sent := max(remote.AttemptScore, local.Ledgered+local.Pending)
	buffered := uint64(0)
	if local.Buffer > 0 {
		buffered = uint64(math.Floor(local.Buffer))
	}
	attempt := sent + buffered
	return Display{Attempt: attempt, Total: remote.EntryTotal + attempt}
}

// Mirror keeps the displayed figures from regressing within an attempt.
type Mirror struct {
	key  uint64
	last Display
}

// Observe clamps d against what was shown before for the same attempt key.
// A new key starts a fresh attempt and accepts d as is.
func (m *Mirror) Observe(key uint64, d Display) Display {
	if key != m.key {
		m.key = key
		m.last = d
		return d
	}
	if d.Attempt < m.last.Attempt {
		d.Attempt = m.last.Attempt
	}
	if d.Total < m.last.Total {
		d.Total = m.last.Total
	}
	m.last = d
	return d
}

// Last returns the most recently displayed figures.
func (m *Mirror) Last() Display { return m.last }
