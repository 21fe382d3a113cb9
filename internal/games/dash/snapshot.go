package dash

// ObstacleView is the presentation copy of an obstacle.
type ObstacleView struct {
	Seq  int
	X    float64
	W, H float64
	Kind Kind
	Skin string
}

// Snapshot is an immutable copy of the simulation for presentation and
// determinism checks. The presentation layer never writes back into Game.
type Snapshot struct {
	Frame     uint64
	ClockMs   float64
	Status    Status
	Active    bool
	SeedBase  string
	Attempt   int
	Travel    float64
	Units     float64
	Passed    int
	Combo     int
	Level     float64
	Speed     float64
	RunnerY   float64
	Sliding   bool
	Dashing   bool
	Feedback  Feedback
	NextSpawn float64
	Debug     bool
	Obstacles []ObstacleView
}

// Snapshot returns the current simulation snapshot.
func (g *Game) Snapshot() Snapshot {
	now := g.clock
	t := 0.0
	speed := 0.0
	if g.difficulty != nil {
		t = g.difficulty.Level(g.passed)
		speed = g.difficulty.Speed(t, g.runner.Dashing(now))
	}

	fb := FeedbackNone
	if now < g.feedbackUntil {
		fb = g.feedback
	}

	next := 0.0
	if g.spawner != nil {
		next = g.spawner.NextAt()
	}

	obs := make([]ObstacleView, len(g.obstacles))
	for i, o := range g.obstacles {
		obs[i] = ObstacleView{Seq: o.Seq, X: o.X, W: o.W, H: o.H, Kind: o.Kind, Skin: o.Skin}
	}

	return Snapshot{
		Frame:     g.frame,
		ClockMs:   now,
		Status:    g.status,
		Active:    g.active,
		SeedBase:  g.seedBase,
		Attempt:   g.attempt,
		Travel:    g.travel,
		Units:     g.units,
		Passed:    g.passed,
		Combo:     g.combo,
		Level:     t,
		Speed:     speed,
		RunnerY:   g.runner.Y,
		Sliding:   g.runner.Sliding(now),
		Dashing:   g.runner.Dashing(now),
		Feedback:  fb,
		NextSpawn: next,
		Debug:     g.debug,
		Obstacles: obs,
	}
}
