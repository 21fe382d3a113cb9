package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCurveBreakpoints(t *testing.T) {
	c := DefaultCurve()
	tests := []struct {
		passed   int
		expected float64
	}{
		{-5, 0},
		{0, 0},
		{8, 0.30},
		{24, 0.65},
		{70, 1.0},
		{500, 1.0},
	}
	for _, tc := range tests {
		got := c.Level(tc.passed)
		if diff := got - tc.expected; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Level(%d) = %v, expected %v", tc.passed, got, tc.expected)
		}
	}
}

func TestCurveMonotonicAndBounded(t *testing.T) {
	c := DefaultCurve()
	prev := c.Level(0)
	for n := 1; n <= 200; n++ {
		cur := c.Level(n)
		if cur < prev {
			t.Fatalf("Level(%d) = %v < Level(%d) = %v", n, cur, n-1, prev)
		}
		if cur < 0 || cur > 1 {
			t.Fatalf("Level(%d) = %v out of [0,1]", n, cur)
		}
		prev = cur
	}
}

func TestCurveSmoothMidpoint(t *testing.T) {
	// Smoothstep of 0.5 is 0.5, so the midpoint of 0..8 is 0.15.
	if got := DefaultCurve().Level(4); got < 0.1499 || got > 0.1501 {
		t.Errorf("Level(4) = %v, expected 0.15", got)
	}
}

func TestCurveValid(t *testing.T) {
	tests := []struct {
		name  string
		curve Curve
		valid bool
	}{
		{"default", DefaultCurve(), true},
		{"empty", Curve{}, false},
		{"not from zero", Curve{{Passed: 2, Level: 0}}, false},
		{"decreasing", Curve{{0, 0.5}, {10, 0.2}}, false},
		{"out of range", Curve{{0, 0}, {10, 1.5}}, false},
		{"duplicate", Curve{{0, 0}, {0, 0.5}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.curve.Valid(); got != tc.valid {
				t.Errorf("Valid() = %v, expected %v", got, tc.valid)
			}
		})
	}
}

func TestDifficultyManagerTunables(t *testing.T) {
	d := NewDifficultyManager(DefaultRallyConfig().Difficulty)

	if got := d.Speed(0, false); got != 280 {
		t.Errorf("Speed(0) = %v, expected 280", got)
	}
	if got := d.Speed(1, true); got != 600 {
		t.Errorf("Speed(1, dash) = %v, expected 600", got)
	}
	if got := d.HitboxPad(0, false); got != 8 {
		t.Errorf("HitboxPad(0) = %v, expected 8", got)
	}
	if got := d.HitboxPad(1, true); got != 5 {
		t.Errorf("HitboxPad(1, dash) = %v, expected 5", got)
	}
	if got := d.HighHeight(0.5); got != 46 {
		t.Errorf("HighHeight(0.5) = %v, expected 46", got)
	}
	// jitter draw of 0.5 is neutral
	if got := d.Gap(0, 0.5); got != 520 {
		t.Errorf("Gap(0, 0.5) = %v, expected 520", got)
	}
	// minimum gap wins at full difficulty with negative jitter
	if got := d.Gap(1, 0); got != 175 {
		t.Errorf("Gap(1, 0) = %v, expected 175", got)
	}
}

func TestDifficultyManagerOffset(t *testing.T) {
	d := NewDifficultyManager(DefaultRallyConfig().Difficulty)
	d.SetOffset(PracticeOffsetForPreset(DifficultyHard))
	if got := d.Level(0); got < 0.6499 || got > 0.6501 {
		t.Errorf("Level(0) with hard offset = %v, expected 0.65", got)
	}
}

func TestEmbeddedDefaultsMatchHardcoded(t *testing.T) {
	cfg, err := parse(GetDefaultYAML())
	if err != nil {
		t.Fatalf("parse embedded: %v", err)
	}
	def := DefaultRallyConfig()
	if cfg.World != def.World || cfg.Physics != def.Physics || cfg.Runner != def.Runner {
		t.Errorf("embedded world/physics/runner differ from defaults")
	}
	if cfg.Commit != def.Commit || cfg.Score != def.Score || cfg.HUD != def.HUD {
		t.Errorf("embedded commit/score/hud differ from defaults")
	}
	if len(cfg.Difficulty.Curve) != len(def.Difficulty.Curve) {
		t.Errorf("embedded curve has %d points", len(cfg.Difficulty.Curve))
	}
}

func TestLoadCustomPathPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rally.yaml")
	data := []byte("commit:\n  threshold: 40\n  mode: obstacle\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Commit.Threshold != 40 || cfg.Commit.Mode != CommitObstacle {
		t.Errorf("commit = %+v", cfg.Commit)
	}
	if cfg.Commit.MaxIntervalMs != 3000 {
		t.Errorf("unspecified fields should keep defaults, got interval %d", cfg.Commit.MaxIntervalMs)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rally.yaml")
	if err := os.WriteFile(path, []byte("commit:\n  mode: turbo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown commit mode")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing custom path")
	}
}

func TestIsChainSupported(t *testing.T) {
	s := DefaultRallyConfig().Session
	if !s.IsChainSupported(31337) {
		t.Error("31337 should be supported")
	}
	if s.IsChainSupported(1) {
		t.Error("1 should not be supported")
	}
	if !(SessionConfig{}).IsChainSupported(1) {
		t.Error("empty set should accept any chain")
	}
}
