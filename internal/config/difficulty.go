package config

import (
	"math"

	"github.com/vovakirdan/dash-rally/internal/core"
)

// Breakpoint maps an obstacles-passed count to a difficulty level.
type Breakpoint struct {
	Passed int     `yaml:"passed"`
	Level  float64 `yaml:"level"`
}

// Curve is a piecewise-smoothstep difficulty curve over obstacles passed.
// Breakpoints must be sorted by Passed with non-decreasing Level.
type Curve []Breakpoint

// DefaultCurve returns the canonical scored-run curve.
func DefaultCurve() Curve {
	return Curve{
		{Passed: 0, Level: 0},
		{Passed: 8, Level: 0.30},
		{Passed: 24, Level: 0.65},
		{Passed: 70, Level: 1.0},
	}
}

// Level returns the difficulty in [0,1] for the given obstacles passed.
// Negative counts are treated as zero; the curve plateaus after its last point.
func (c Curve) Level(passed int) float64 {
	if len(c) == 0 {
		return 0
	}
	if passed < 0 {
		passed = 0
	}
	if passed <= c[0].Passed {
		return core.ClampF(c[0].Level, 0, 1)
	}
	for i := 1; i < len(c); i++ {
		lo, hi := c[i-1], c[i]
		if passed > hi.Passed {
			continue
		}
		span := float64(hi.Passed - lo.Passed)
		if span <= 0 {
			return core.ClampF(hi.Level, 0, 1)
		}
		x := core.Smoothstep01(float64(passed-lo.Passed) / span)
		return core.ClampF(core.Lerp(lo.Level, hi.Level, x), 0, 1)
	}
	return core.ClampF(c[len(c)-1].Level, 0, 1)
}

// Valid reports whether the curve is usable: sorted, starting at zero and
// non-decreasing within [0,1].
func (c Curve) Valid() bool {
	if len(c) == 0 || c[0].Passed != 0 {
		return false
	}
	for i, bp := range c {
		if bp.Level < 0 || bp.Level > 1 {
			return false
		}
		if i > 0 && (bp.Passed <= c[i-1].Passed || bp.Level < c[i-1].Level) {
			return false
		}
	}
	return true
}

// Range is a tunable interpolated linearly by difficulty.
type Range struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// At returns the tunable value at difficulty t.
func (r Range) At(t float64) float64 {
	return core.Lerp(r.Start, r.End, t)
}

// DifficultyManager computes per-frame tunables from the obstacles-passed count.
type DifficultyManager struct {
	cfg    DifficultyConfig
	offset int
}

// NewDifficultyManager creates a new difficulty manager.
func NewDifficultyManager(cfg DifficultyConfig) *DifficultyManager {
	if !cfg.Curve.Valid() {
		cfg.Curve = DefaultCurve()
	}
	return &DifficultyManager{cfg: cfg}
}

// SetOffset shifts the passed count used for lookups. Practice mode only.
func (d *DifficultyManager) SetOffset(passed int) {
	d.offset = core.Max(0, passed)
}

// Level returns the difficulty for the given obstacles passed.
func (d *DifficultyManager) Level(passed int) float64 {
	return d.cfg.Curve.Level(passed + d.offset)
}

// Speed returns world speed in px/s.
func (d *DifficultyManager) Speed(t float64, dashing bool) float64 {
	s := d.cfg.Speed.At(t)
	if dashing {
		s += d.cfg.DashBonus
	}
	return s
}

// Gap returns the distance to the next spawn given a jitter draw r in [0,1).
func (d *DifficultyManager) Gap(t, r float64) float64 {
	jitter := (float64(r*2) - 1) * d.cfg.Jitter
	base := d.cfg.SpawnGap.At(t)
	return maxF(d.cfg.MinGap, base*(1+jitter))
}

// HitboxPad returns the collision forgiveness in px, rounded.
func (d *DifficultyManager) HitboxPad(t float64, dashing bool) float64 {
	p := d.cfg.HitboxPad.At(t)
	if dashing {
		p += d.cfg.DashPad
	}
	return roundHalfUp(p)
}

// HighHeight returns the height of a high obstacle, rounded.
func (d *DifficultyManager) HighHeight(t float64) float64 {
	return roundHalfUp(d.cfg.HighHeight.At(t))
}

// HighChance returns the probability that a spawn is a high obstacle.
func (d *DifficultyManager) HighChance(t float64) float64 {
	return core.ClampF(d.cfg.HighChance.At(t), 0, 1)
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// roundHalfUp rounds to the nearest integer with halves toward +Inf.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
