// Package rng provides the deterministic random stream that lays out courses.
//
// A stream is seeded from a string key by a 32-bit FNV-1a hash and advanced
// with xorshift32. The same key always yields the same infinite sequence.
package rng

import "fmt"

const (
	fnvOffset = 0x811c9dc5
	fnvPrime  = 0x01000193

	// zeroState replaces a zero hash; xorshift never leaves zero.
	zeroState = 0x9e3779b9
)

// Hash32 returns the 32-bit FNV-1a hash of key.
func Hash32(key string) uint32 {
	h := uint32(fnvOffset)
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= fnvPrime
	}
	return h
}

// Stream is a xorshift32 generator. Not safe for concurrent use.
type Stream struct {
	state uint32
	draws int
}

// New seeds a stream from key.
func New(key string) *Stream {
	s := Hash32(key)
	if s == 0 {
		s = zeroState
	}
	return &Stream{state: s}
}

// Uint32 advances the stream and returns the raw state.
func (s *Stream) Uint32() uint32 {
	x := s.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	s.state = x
	s.draws++
	return x
}

// Next returns a value in [0,1).
func (s *Stream) Next() float64 {
	return float64(s.Uint32()) / 4294967296.0
}

// Pick returns an index in [0,n). n <= 0 returns 0 without advancing.
func (s *Stream) Pick(n int) int {
	if n <= 0 {
		return 0
	}
	i := int(s.Next() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Draws returns how many values have been drawn.
func (s *Stream) Draws() int {
	return s.draws
}

// LocalBase is the seed base used when no entry identity exists (practice).
const LocalBase = "local"

// SeedBase identifies one paid entry. Its string form is unique per entry.
type SeedBase struct {
	ChainID    uint64
	Contract   string
	RoundID    uint64
	Player     string
	EntryIndex uint32
}

// String renders chain:contract:round:player:entry.
func (b SeedBase) String() string {
	return fmt.Sprintf("%d:%s:%d:%s:%d", b.ChainID, b.Contract, b.RoundID, b.Player, b.EntryIndex)
}

// CourseKey combines a seed base with a 1-based attempt number.
func CourseKey(base string, attempt int) string {
	if base == "" {
		base = LocalBase
	}
	if attempt < 1 {
		attempt = 1
	}
	return fmt.Sprintf("%s|%d", base, attempt)
}

// ForCourse returns the stream for an attempt of an entry.
func ForCourse(base string, attempt int) *Stream {
	return New(CourseKey(base, attempt))
}
