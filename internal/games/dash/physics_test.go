package dash

import (
	"testing"

	"github.com/vovakirdan/dash-rally/internal/config"
	"github.com/vovakirdan/dash-rally/internal/rng"
)

func testPhysics() Physics {
	cfg := config.DefaultRallyConfig()
	return NewPhysics(cfg.Physics, cfg.World.GroundEpsilon)
}

func TestJumpFromGround(t *testing.T) {
	p := testPhysics()
	r := p.Reset(0)
	if !p.Jump(&r, 0) {
		t.Fatal("grounded jump should fire")
	}
	if r.VY != 820 || r.JumpBuffered != 0 {
		t.Errorf("after jump VY=%v buffered=%v", r.VY, r.JumpBuffered)
	}
}

func TestCoyoteWindow(t *testing.T) {
	p := testPhysics()

	r := Runner{Y: 5, LastGrounded: 100}
	if !p.Jump(&r, 150) {
		t.Error("jump 50ms after leaving ground should fire")
	}

	r = Runner{Y: 5, LastGrounded: 100}
	if p.Jump(&r, 200) {
		t.Error("jump 100ms after leaving ground should not fire")
	}
}

func TestJumpBuffer(t *testing.T) {
	p := testPhysics()

	r := Runner{Y: 50, VY: -100}
	if p.Jump(&r, 200) {
		t.Fatal("airborne jump should be buffered, not fired")
	}
	if r.JumpBuffered != 310 {
		t.Fatalf("buffered until %v, expected 310", r.JumpBuffered)
	}

	landed := r
	landed.Y = 0
	if !p.ConsumeBuffered(&landed, 300) {
		t.Error("buffered jump should fire on landing inside the window")
	}

	late := r
	late.Y = 0
	if p.ConsumeBuffered(&late, 311) {
		t.Error("expired buffer should not fire")
	}
}

func TestIntegrateLands(t *testing.T) {
	p := testPhysics()
	r := Runner{Y: 1, VY: -200}
	p.Integrate(&r, 0.016, 500)
	if r.Y != 0 || r.VY != 0 || r.LastGrounded != 500 {
		t.Errorf("runner should land: %+v", r)
	}

	up := Runner{VY: 820}
	p.Integrate(&up, 0.016, 600)
	if up.Y <= 0 || up.LastGrounded != 0 {
		t.Errorf("runner should rise: %+v", up)
	}
}

func TestSlideThenDash(t *testing.T) {
	p := testPhysics()
	r := p.Reset(0)

	p.SlideOrDash(&r, 0)
	if r.SlideUntil != 420 || r.Dashing(0) {
		t.Fatalf("slide = %+v", r)
	}
	p.SlideOrDash(&r, 100)
	if r.DashUntil != 320 || r.SlideUntil != 420 {
		t.Errorf("re-press while sliding should dash: %+v", r)
	}
	p.SlideOrDash(&r, 500)
	if r.SlideUntil != 920 {
		t.Errorf("press after slide should start a new slide: %+v", r)
	}
}

func TestResolver(t *testing.T) {
	cfg := config.DefaultRallyConfig()
	res := NewResolver(cfg.Runner, config.NewDifficultyManager(cfg.Difficulty))
	low := Obstacle{X: 82, W: 34, H: 26, Kind: KindLow}

	tests := []struct {
		name      string
		runner    Runner
		obstacles []Obstacle
		now       float64
		expected  bool
	}{
		{"standing into low", Runner{}, []Obstacle{low}, 0, true},
		{"above low", Runner{Y: 30}, []Obstacle{low}, 0, false},
		{"edge overlap absorbed by pad", Runner{}, []Obstacle{{X: 97, W: 34, H: 26}}, 0, false},
		{"edge overlap hits", Runner{}, []Obstacle{{X: 95, W: 34, H: 26}}, 0, true},
		{"dash widens forgiveness", Runner{DashUntil: 100}, []Obstacle{{X: 95, W: 34, H: 26}}, 0, false},
		{"no obstacles", Runner{}, nil, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := res.Collides(tc.runner, tc.obstacles, 0, tc.now); got != tc.expected {
				t.Errorf("Collides() = %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestSpawnerWatermark(t *testing.T) {
	cfg := config.DefaultRallyConfig()
	stream := rng.ForCourse(testSeed, 1)
	s := NewSpawner(stream, 520, cfg.Obstacles, config.NewDifficultyManager(cfg.Difficulty))

	if _, _, ok := s.Check(519.9, 0, 680); ok {
		t.Fatal("spawned before grace distance")
	}
	if stream.Draws() != 0 {
		t.Fatal("no draws expected before the first spawn")
	}

	o, sp, ok := s.Check(520, 0, 680)
	if !ok {
		t.Fatal("expected spawn at grace distance")
	}
	if stream.Draws() != 3 {
		t.Errorf("draws = %d, expected kind, skin and jitter", stream.Draws())
	}
	if o.X != 680 || o.W != 34 || o.Seq != 1 {
		t.Errorf("obstacle = %+v", o)
	}
	if o.Kind == KindLow && o.H != 26 {
		t.Errorf("low obstacle height = %v", o.H)
	}
	if o.Kind == KindHigh && o.H != 40 {
		t.Errorf("high obstacle height at t=0 = %v", o.H)
	}
	next := s.NextAt()
	if next < 520+175 || next > 520+520*1.18+1e-9 || next != 520+sp.Gap {
		t.Errorf("next watermark = %v, gap = %v", next, sp.Gap)
	}
}
