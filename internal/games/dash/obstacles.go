package dash

import (
	"github.com/vovakirdan/dash-rally/internal/config"
	"github.com/vovakirdan/dash-rally/internal/core"
	"github.com/vovakirdan/dash-rally/internal/rng"
)

// Kind distinguishes obstacle heights.
type Kind string

const (
	KindLow  Kind = "low"
	KindHigh Kind = "high"
)

// Obstacle is a ground-anchored block the runner must clear.
type Obstacle struct {
	Seq    int     // spawn order within the attempt, from 1
	X      float64 // left edge in world pixels
	W, H   float64
	Kind   Kind
	Skin   string // visual only; never affects collision
	Passed bool
}

// Box returns the collision box for this obstacle.
func (o Obstacle) Box() core.Box {
	return core.Box{X: o.X, Y: 0, W: o.W, H: o.H}
}

// Spawn records where and what the spawner placed, for audits.
type Spawn struct {
	Seq    int     `yaml:"seq"`
	Travel float64 `yaml:"travel"`
	Kind   Kind    `yaml:"kind"`
	Height float64 `yaml:"height"`
	Skin   string  `yaml:"skin"`
	Gap    float64 `yaml:"gap"`
}

// Spawner places obstacles at distance-based watermarks.
// It is the only consumer of the course RNG.
type Spawner struct {
	rng        *rng.Stream
	next       float64
	seq        int
	cfg        config.ObstacleConfig
	difficulty *config.DifficultyManager
}

// NewSpawner creates a spawner whose first watermark is the grace distance.
func NewSpawner(stream *rng.Stream, grace float64, cfg config.ObstacleConfig, diff *config.DifficultyManager) *Spawner {
	return &Spawner{
		rng:        stream,
		next:       grace,
		cfg:        cfg,
		difficulty: diff,
	}
}

// NextAt returns the travel distance at which the next obstacle spawns.
func (s *Spawner) NextAt() float64 {
	return s.next
}

// Check spawns one obstacle at x if travel has reached the watermark.
// The RNG is drawn in a fixed order: kind, skin, gap jitter.
func (s *Spawner) Check(travel, t, x float64) (Obstacle, Spawn, bool) {
	if travel < s.next {
		return Obstacle{}, Spawn{}, false
	}

	kind := KindLow
	if s.rng.Next() >= 1-s.difficulty.HighChance(t) {
		kind = KindHigh
	}

	height := s.cfg.LowHeight
	skins := s.cfg.LowSkins
	if kind == KindHigh {
		height = s.difficulty.HighHeight(t)
		skins = s.cfg.HighSkins
	}
	skin := ""
	if len(skins) > 0 {
		skin = skins[s.rng.Pick(len(skins))]
	} else {
		s.rng.Next() // keep the draw order stable
	}

	gap := s.difficulty.Gap(t, s.rng.Next())
	s.next = travel + gap
	s.seq++

	o := Obstacle{
		Seq:  s.seq,
		X:    x,
		W:    s.cfg.Width,
		H:    height,
		Kind: kind,
		Skin: skin,
	}
	sp := Spawn{
		Seq:    s.seq,
		Travel: travel,
		Kind:   kind,
		Height: height,
		Skin:   skin,
		Gap:    gap,
	}
	return o, sp, true
}
