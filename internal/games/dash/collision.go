package dash

import (
	"github.com/vovakirdan/dash-rally/internal/config"
	"github.com/vovakirdan/dash-rally/internal/core"
)

// Resolver tests the runner against live obstacles. It holds only
// immutable geometry, so Collides is a pure function of its arguments.
type Resolver struct {
	runner     config.RunnerConfig
	difficulty *config.DifficultyManager
}

// NewResolver creates a collision resolver.
func NewResolver(runner config.RunnerConfig, diff *config.DifficultyManager) Resolver {
	return Resolver{runner: runner, difficulty: diff}
}

// RunnerBox returns the runner hitbox at now. Sliding lowers its height.
func (c Resolver) RunnerBox(r Runner, now float64) core.Box {
	h := c.runner.Height
	if r.Sliding(now) {
		h = c.runner.SlideHeight
	}
	return core.Box{X: c.runner.X, Y: r.Y, W: c.runner.Width, H: h}
}

// Pad returns the hitbox forgiveness at difficulty t.
func (c Resolver) Pad(r Runner, t, now float64) float64 {
	return c.difficulty.HitboxPad(t, r.Dashing(now))
}

// Collides reports whether the runner, inset by the difficulty padding,
// overlaps any obstacle.
func (c Resolver) Collides(r Runner, obstacles []Obstacle, t, now float64) bool {
	_, hit := c.Hit(r, obstacles, t, now)
	return hit
}

// Hit returns the index of the first obstacle the runner overlaps.
func (c Resolver) Hit(r Runner, obstacles []Obstacle, t, now float64) (int, bool) {
	box := c.RunnerBox(r, now)
	pad := c.Pad(r, t, now)
	for i, o := range obstacles {
		if box.Overlaps(o.Box(), pad) {
			return i, true
		}
	}
	return -1, false
}
