package replay

import (
	"math"

	"github.com/vovakirdan/dash-rally/internal/config"
	"github.com/vovakirdan/dash-rally/internal/core"
	"github.com/vovakirdan/dash-rally/internal/games/dash"
)

// surveyFrameLimit bounds a course survey.
const surveyFrameLimit = 200_000

// Result summarizes a replayed attempt.
type Result struct {
	Frames     int          // frames replayed
	Crashed    bool         // the attempt ended in a crash
	CrashFrame uint64       // simulation frame of the crash, 0 if none
	Distance   float64      // world pixels travelled
	Units      float64      // score units credited
	Score      uint64       // whole units
	Passed     int          // obstacles passed
	Obstacles  []dash.Spawn // every spawn placed, in order
}

func newGame(cfg config.RallyConfig, seedBase string, attempt int, viewW, viewH float64) *dash.Game {
	g := dash.NewWithConfig(cfg)
	g.Reset(core.RuntimeConfig{TickRate: 60, SeedBase: seedBase, Attempt: attempt})
	if viewW > 0 && viewH > 0 {
		g.SetView(viewW, viewH)
	}
	g.Activate(seedBase, attempt)
	return g
}

// Run replays t against a fresh simulation built from cfg. Replay stops
// at the first crash; later frames are not applied.
func Run(t Trace, cfg config.RallyConfig) (Result, error) {
	if err := t.Validate(); err != nil {
		return Result{}, err
	}

	g := newGame(cfg, t.SeedBase, t.Attempt, t.ViewW, t.ViewH)
	var res Result
	for _, f := range t.Frames {
		step := g.StepDt(f.Input(), f.DtMs)
		res.Frames++
		for _, ev := range step.Events {
			switch e := ev.(type) {
			case dash.DistanceEvent:
				res.Units += e.Units
			case dash.CrashEvent:
				res.Crashed = true
				res.CrashFrame = e.Frame
			}
		}
		if step.State.GameOver {
			break
		}
	}

	res.Distance = g.Travel()
	res.Passed = g.Passed()
	res.Score = uint64(math.Floor(res.Units))
	res.Obstacles = g.Spawns()
	return res, nil
}

// Course lists the first n spawns for (seedBase, attempt). The survey runs
// with collisions off, so it reflects the seed alone.
func Course(seedBase string, attempt, n int, cfg config.RallyConfig) []dash.Spawn {
	if n <= 0 {
		return nil
	}
	g := newGame(cfg, seedBase, attempt, 0, 0)
	g.SetGhost(true)
	in := core.NewInputFrame()
	for i := 0; i < surveyFrameLimit && len(g.Spawns()) < n; i++ {
		g.Step(in)
	}
	spawns := g.Spawns()
	if len(spawns) > n {
		spawns = spawns[:n]
	}
	return spawns
}
