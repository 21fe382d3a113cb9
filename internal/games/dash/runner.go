package dash

import (
	"math"

	"github.com/vovakirdan/dash-rally/internal/config"
)

// Runner is the player entity. Y is the height of the runner's feet above
// the ground plane and VY is vertical velocity, both with up positive.
// All timestamps are simulation-clock milliseconds.
type Runner struct {
	Y          float64
	VY         float64
	SlideUntil float64
	DashUntil  float64

	LastGrounded float64
	JumpBuffered float64 // jump stays requested until this time
}

// Sliding reports whether a slide is in effect at now.
func (r Runner) Sliding(now float64) bool {
	return now < r.SlideUntil
}

// Dashing reports whether a dash is in effect at now.
func (r Runner) Dashing(now float64) bool {
	return now < r.DashUntil
}

// Physics integrates and applies input to a Runner.
type Physics struct {
	cfg     config.PhysicsConfig
	epsilon float64
}

// NewPhysics creates runner physics from configuration.
func NewPhysics(cfg config.PhysicsConfig, groundEpsilon float64) Physics {
	return Physics{cfg: cfg, epsilon: groundEpsilon}
}

// Reset returns a runner standing on the ground at now.
func (p Physics) Reset(now float64) Runner {
	return Runner{LastGrounded: now}
}

// Integrate advances the runner by dt seconds.
// Landing zeroes velocity and refreshes the grounded timestamp.
func (p Physics) Integrate(r *Runner, dt, now float64) {
	r.VY = r.VY - float64(p.cfg.Gravity*dt)
	r.Y = r.Y + float64(r.VY*dt)
	switch {
	case r.Y < 0:
		r.Y = 0
		r.VY = 0
		r.LastGrounded = now
	case math.Abs(r.Y) < p.epsilon:
		r.LastGrounded = now
	}
}

// Grounded reports whether the runner is standing on the ground.
func (p Physics) Grounded(r Runner) bool {
	return math.Abs(r.Y) < p.epsilon
}

// CanJump reports whether a jump is legal: on the ground or inside the
// coyote window after leaving it.
func (p Physics) CanJump(r Runner, now float64) bool {
	if p.Grounded(r) {
		return true
	}
	return now-r.LastGrounded <= p.cfg.CoyoteMs
}

// Jump registers a jump request and applies it immediately if legal.
// Returns whether the jump fired.
func (p Physics) Jump(r *Runner, now float64) bool {
	r.JumpBuffered = math.Max(r.JumpBuffered, now+p.cfg.JumpBufferMs)
	return p.ConsumeBuffered(r, now)
}

// ConsumeBuffered fires a live buffered jump the moment it becomes legal.
func (p Physics) ConsumeBuffered(r *Runner, now float64) bool {
	if r.JumpBuffered <= now {
		return false
	}
	if !p.CanJump(*r, now) {
		return false
	}
	r.VY = p.cfg.JumpVelocity
	r.JumpBuffered = 0
	return true
}

// SlideOrDash starts a slide, or grants a dash if already sliding.
func (p Physics) SlideOrDash(r *Runner, now float64) {
	if r.Sliding(now) {
		r.DashUntil = now + p.cfg.DashMs
		return
	}
	r.SlideUntil = now + p.cfg.SlideMs
}
