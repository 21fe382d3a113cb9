// Package dash implements Fluffle Dash, a seeded endless runner.
// The runner jumps low blocks and slides or dashes under pressure while
// a deterministic spawner lays out the course for each attempt.
package dash

import (
	"math"

	"github.com/vovakirdan/dash-rally/internal/assets"
	"github.com/vovakirdan/dash-rally/internal/config"
	"github.com/vovakirdan/dash-rally/internal/core"
	"github.com/vovakirdan/dash-rally/internal/registry"
	"github.com/vovakirdan/dash-rally/internal/rng"
)

// Status is the attempt lifecycle state.
type Status string

const (
	StatusReady   Status = "ready"
	StatusRunning Status = "running"
	StatusCrashed Status = "crashed"
)

// feedbackMs is how long a feedback tag stays in snapshots.
const feedbackMs = 700

// Game implements the Fluffle Dash simulation.
type Game struct {
	practice bool
	cfg      config.RallyConfig
	cfgSet   bool
	runtime  core.RuntimeConfig

	difficulty *config.DifficultyManager
	physics    Physics
	resolver   Resolver
	spawner    *Spawner
	assets     *assets.Registry

	viewW, viewH float64

	status    Status
	active    bool
	seedBase  string
	attempt   int
	runner    Runner
	obstacles []Obstacle
	spawns    []Spawn
	passed    int
	combo     int
	travel    float64
	units     float64
	clock     float64 // sum of simulated frame time, ms
	frame     uint64
	crashSent bool
	ghost     bool
	debug     bool

	feedback      Feedback
	feedbackUntil float64
}

// configPath stores the custom config path set via CLI
var configPath string
var difficultyPreset config.DifficultyPreset

// SetConfigPath sets the custom config path for loading.
func SetConfigPath(path string) {
	configPath = path
}

// SetDifficultyPreset sets the practice difficulty preset.
func SetDifficultyPreset(preset string) {
	switch config.DifficultyPreset(preset) {
	case config.DifficultyEasy, config.DifficultyNormal, config.DifficultyHard, config.DifficultyFixed:
		difficultyPreset = config.DifficultyPreset(preset)
	default:
		difficultyPreset = ""
	}
}

// New creates a scored game. Attempts wait for Activate.
func New() *Game {
	return &Game{}
}

// NewPractice creates a practice game that runs as soon as it is reset.
func NewPractice() *Game {
	return &Game{practice: true}
}

// NewWithConfig creates a scored game with an explicit configuration.
func NewWithConfig(cfg config.RallyConfig) *Game {
	return &Game{cfg: cfg, cfgSet: true}
}

// ID returns the unique identifier for this game.
func (g *Game) ID() string {
	if g.practice {
		return "dash_practice"
	}
	return "dash"
}

// Title returns the display name for this game.
func (g *Game) Title() string {
	if g.practice {
		return "Fluffle Dash (practice)"
	}
	return "Fluffle Dash"
}

// Reset loads configuration and prepares an attempt for runtime.SeedBase.
// Practice games activate immediately; scored games stay ready and inactive.
func (g *Game) Reset(runtime core.RuntimeConfig) {
	g.runtime = runtime

	if !g.cfgSet {
		cfg, err := config.Load(configPath)
		if err != nil {
			cfg = config.DefaultRallyConfig()
		}
		g.cfg = cfg
		g.cfgSet = true
	}
	if g.practice && difficultyPreset != "" {
		config.ApplyPreset(&g.cfg, difficultyPreset)
	}

	g.difficulty = config.NewDifficultyManager(g.cfg.Difficulty)
	if g.practice {
		g.difficulty.SetOffset(g.cfg.Difficulty.PracticeFrom)
	}
	g.physics = NewPhysics(g.cfg.Physics, g.cfg.World.GroundEpsilon)
	g.resolver = NewResolver(g.cfg.Runner, g.difficulty)
	g.viewW = g.cfg.World.ViewW
	g.viewH = g.cfg.World.ViewH
	if g.assets == nil {
		g.assets = assets.Default()
	}

	g.active = false
	g.resetAttempt(runtime.SeedBase, runtime.Attempt)

	if g.practice {
		g.Activate(runtime.SeedBase, runtime.Attempt)
	}
}

// resetAttempt discards runner and obstacle state and reseeds the course.
func (g *Game) resetAttempt(seedBase string, attempt int) {
	if attempt < 1 {
		attempt = 1
	}
	g.seedBase = seedBase
	g.attempt = attempt
	g.clock = 0
	g.frame = 0
	g.runner = g.physics.Reset(g.clock)
	g.obstacles = g.obstacles[:0]
	g.spawns = nil
	g.passed = 0
	g.combo = 0
	g.travel = 0
	g.units = 0
	g.crashSent = false
	g.feedback = FeedbackNone
	g.feedbackUntil = 0
	g.spawner = NewSpawner(rng.ForCourse(seedBase, attempt), g.cfg.World.GraceDistance, g.cfg.Obstacles, g.difficulty)
	g.status = StatusReady
}

// Activate starts a fresh attempt on the course for (seedBase, attempt).
// Attempts auto-run: the status moves straight to running.
func (g *Game) Activate(seedBase string, attempt int) {
	g.resetAttempt(seedBase, attempt)
	g.active = true
	g.status = StatusRunning
}

// Deactivate stops the simulation and discards the attempt's world state.
func (g *Game) Deactivate() {
	g.active = false
	g.resetAttempt(g.seedBase, g.attempt)
}

// startIfNeeded moves an active ready attempt to running.
func (g *Game) startIfNeeded() {
	if g.active && g.status == StatusReady {
		g.status = StatusRunning
	}
}

// Jump requests a jump at the current simulation time.
// Ignored unless the attempt is active and running.
func (g *Game) Jump() bool {
	if !g.active {
		return false
	}
	g.startIfNeeded()
	if g.status != StatusRunning || g.viewH <= 0 {
		return false
	}
	return g.physics.Jump(&g.runner, g.clock)
}

// SlideOrDash requests a slide, or a dash while already sliding.
func (g *Game) SlideOrDash() {
	if !g.active {
		return
	}
	g.startIfNeeded()
	if g.status != StatusRunning {
		return
	}
	g.physics.SlideOrDash(&g.runner, g.clock)
}

// Step advances the game by one fixed tick.
func (g *Game) Step(in core.InputFrame) core.StepResult {
	return g.StepDt(in, g.runtime.TickMillis())
}

// StepDt applies the frame's input and advances the simulation by dtMs.
// Input is applied at the current simulation time, before the frame runs.
func (g *Game) StepDt(in core.InputFrame, dtMs float64) core.StepResult {
	if in.Has(core.ActionDebug) {
		g.debug = !g.debug
	}
	if in.Has(core.ActionJump) {
		g.Jump()
	}
	if in.Has(core.ActionSlide) {
		g.SlideOrDash()
	}

	events := g.advance(dtMs)
	return core.StepResult{State: g.State(), Events: events}
}

// advance runs one frame. Frames with no geometry or no time are skipped
// without touching state.
func (g *Game) advance(dtMs float64) []core.Event {
	if g.status != StatusRunning {
		return nil
	}
	if g.viewW <= 0 || g.viewH <= 0 || !(dtMs > 0) || math.IsInf(dtMs, 0) {
		return nil
	}
	if limit := g.cfg.World.MaxFrameMs; limit > 0 && dtMs > limit {
		dtMs = limit
	}

	var events []core.Event

	g.clock += dtMs
	g.frame++
	now := g.clock
	dt := dtMs / 1000

	t := g.difficulty.Level(g.passed)
	speed := g.difficulty.Speed(t, g.runner.Dashing(now))

	g.physics.Integrate(&g.runner, dt, now)
	g.physics.ConsumeBuffered(&g.runner, now)

	if o, sp, ok := g.spawner.Check(g.travel, t, g.viewW+g.cfg.World.SpawnOffset); ok {
		g.obstacles = append(g.obstacles, o)
		g.spawns = append(g.spawns, sp)
	}

	step := float64(speed * dt)
	for i := range g.obstacles {
		g.obstacles[i].X -= step
	}

	events = g.detectPasses(events, now)

	live := g.obstacles[:0]
	for _, o := range g.obstacles {
		if o.X > -o.W-g.cfg.World.PruneMargin {
			live = append(live, o)
		}
	}
	g.obstacles = live

	g.travel += step
	units := float64(step * g.cfg.Score.UnitsPerPx)
	g.units += units
	events = append(events, DistanceEvent{Pixels: step, Units: units})

	if g.ghost {
		return events
	}
	t = g.difficulty.Level(g.passed)
	if idx, hit := g.resolver.Hit(g.runner, g.obstacles, t, now); hit {
		g.status = StatusCrashed
		g.combo = 0
		events = append(events, ComboEvent{Combo: 0})
		if !g.crashSent {
			g.crashSent = true
			events = append(events, CrashEvent{
				Frame:    g.frame,
				Travel:   g.travel,
				Passed:   g.passed,
				Obstacle: g.obstacles[idx].Seq,
			})
		}
	}
	return events
}

// detectPasses marks obstacles whose trailing edge crossed the runner.
// Each obstacle counts once.
func (g *Game) detectPasses(events []core.Event, now float64) []core.Event {
	runnerX := g.cfg.Runner.X
	for i := range g.obstacles {
		o := &g.obstacles[i]
		if o.Passed || o.X+o.W >= runnerX {
			continue
		}
		o.Passed = true
		g.passed++
		g.combo++
		events = append(events,
			PassEvent{Seq: o.Seq, Kind: o.Kind, Passed: g.passed},
			ComboEvent{Combo: g.combo},
		)

		// Clearance feedback applies to low obstacles only.
		if o.Kind != KindLow {
			continue
		}
		if tag, c := g.clearance(*o); tag != FeedbackNone {
			g.feedback = tag
			g.feedbackUntil = now + feedbackMs
			events = append(events, FeedbackEvent{Tag: tag, Clearance: c})
		}
	}
	return events
}

// clearance grades the gap between the runner's feet and an obstacle top.
func (g *Game) clearance(o Obstacle) (Feedback, float64) {
	c := g.runner.Y - o.H
	switch {
	case c >= 0 && c <= g.cfg.Feedback.Perfect:
		return FeedbackPerfect, c
	case c >= 0 && c <= g.cfg.Feedback.Near:
		return FeedbackNear, c
	default:
		return FeedbackNone, c
	}
}

// State returns the current game state.
func (g *Game) State() core.GameState {
	return core.GameState{
		Score:    int(math.Floor(g.units)),
		Running:  g.status == StatusRunning,
		GameOver: g.status == StatusCrashed,
	}
}

// Status returns the attempt status.
func (g *Game) Status() Status { return g.status }

// Active reports whether an attempt is active.
func (g *Game) Active() bool { return g.active }

// Passed returns obstacles passed this attempt.
func (g *Game) Passed() int { return g.passed }

// Travel returns distance travelled this attempt in world pixels.
func (g *Game) Travel() float64 { return g.travel }

// Clock returns the simulation clock in ms.
func (g *Game) Clock() float64 { return g.clock }

// Frame returns the number of simulated frames this attempt.
func (g *Game) Frame() uint64 { return g.frame }

// Runner returns a copy of the runner state.
func (g *Game) Runner() Runner { return g.runner }

// Config returns the configuration in use.
func (g *Game) Config() config.RallyConfig { return g.cfg }

// Obstacles returns a copy of the live obstacles.
func (g *Game) Obstacles() []Obstacle {
	out := make([]Obstacle, len(g.obstacles))
	copy(out, g.obstacles)
	return out
}

// Spawns returns every spawn placed this attempt.
func (g *Game) Spawns() []Spawn {
	out := make([]Spawn, len(g.spawns))
	copy(out, g.spawns)
	return out
}

// SetGhost disables collisions. Used to survey a course.
func (g *Game) SetGhost(on bool) { g.ghost = on }

// SetView overrides the logical viewport. A zero size pauses the simulation.
func (g *Game) SetView(w, h float64) {
	g.viewW = w
	g.viewH = h
}

// SetAssets sets the sprite registry used by Render.
func (g *Game) SetAssets(r *assets.Registry) { g.assets = r }

// Register the game with the registry
func init() {
	registry.Register("dash", registry.ModeScored, func() registry.Game {
		return New()
	})
	registry.Register("dash_practice", registry.ModePractice, func() registry.Game {
		return NewPractice()
	})
}
