// Package score buffers locally earned score, decides when to flush it to
// the ledger and reconciles the optimistic local view against ledger reads.
// Everything here is single-threaded and owned by the host loop.
package score

import "math"

// Accumulator holds the uncommitted, fractional score buffer of one attempt.
type Accumulator struct {
	buffer   float64
	credited float64
}

// Add credits units to the buffer. Non-positive and non-finite deltas are
// ignored.
func (a *Accumulator) Add(units float64) {
	if !(units > 0) || math.IsInf(units, 0) {
		return
	}
	a.buffer += units
	a.credited += units
}

// Buffer returns the uncommitted amount.
func (a *Accumulator) Buffer() float64 { return a.buffer }

// Floor returns the integral part of the buffer, the largest flushable amount.
func (a *Accumulator) Floor() uint64 {
	return uint64(math.Floor(a.buffer))
}

// Credited returns the sum of every accepted delta since the last reset.
func (a *Accumulator) Credited() float64 { return a.credited }

// take removes n whole units; n must not exceed Floor.
func (a *Accumulator) take(n uint64) {
	a.buffer -= float64(n)
	if a.buffer < 0 {
		a.buffer = 0
	}
}

// restore puts n units back after a failed flush.
func (a *Accumulator) restore(n uint64) {
	a.buffer += float64(n)
}

// DropFraction discards the sub-unit remainder, returning it. The ledger is
// integral, so what is left below one unit at attempt end cannot be sent.
func (a *Accumulator) DropFraction() float64 {
	rem := a.buffer - math.Floor(a.buffer)
	a.buffer -= rem
	a.credited -= rem
	return rem
}

// discard empties the buffer, uncrediting it, and returns what it held.
func (a *Accumulator) discard() float64 {
	n := a.buffer
	a.buffer = 0
	a.credited -= n
	return n
}

// uncredit removes n units that left the buffer but will never be ledgered.
func (a *Accumulator) uncredit(n uint64) {
	a.credited -= float64(n)
}

// Reset clears the buffer for a new attempt.
func (a *Accumulator) Reset() {
	a.buffer = 0
	a.credited = 0
}
