package config

import (
	_ "embed"
)

//go:embed defaults/rally.yaml
var defaultRallyYAML []byte

// DefaultRallyConfig returns the default Dash Rally configuration.
func DefaultRallyConfig() RallyConfig {
	return RallyConfig{
		World: WorldConfig{
			ViewW:         640,
			ViewH:         288,
			GroundPad:     24,
			CellW:         8,
			CellH:         12,
			MaxFrameMs:    33,
			GraceDistance: 520,
			SpawnOffset:   40,
			PruneMargin:   20,
			GroundEpsilon: 0.01,
		},
		Physics: PhysicsConfig{
			Gravity:      2400,
			JumpVelocity: 820,
			CoyoteMs:     90,
			JumpBufferMs: 110,
			SlideMs:      420,
			DashMs:       220,
		},
		Runner: RunnerConfig{
			X:           82,
			Width:       22,
			Height:      34,
			SlideHeight: 18,
		},
		Obstacles: ObstacleConfig{
			Width:     34,
			LowHeight: 26,
			LowSkins:  []string{"ob_shard", "ob_pylon", "ob_tree"},
			HighSkins: []string{"ob_drone"},
		},
		Difficulty: DifficultyConfig{
			Curve:      DefaultCurve(),
			Speed:      Range{Start: 280, End: 520},
			DashBonus:  80,
			SpawnGap:   Range{Start: 520, End: 190},
			MinGap:     175,
			Jitter:     0.18,
			HitboxPad:  Range{Start: 8, End: 2},
			DashPad:    3,
			HighHeight: Range{Start: 40, End: 52},
			HighChance: Range{Start: 0.18, End: 0.48},
		},
		Feedback: FeedbackConfig{
			Perfect: 3,
			Near:    8,
		},
		Score: ScoreConfig{
			UnitsPerPx: 0.1,
		},
		Commit: CommitConfig{
			Mode:          CommitBatch,
			Threshold:     25,
			MaxIntervalMs: 3000,
			PollMs:        500,
			RetryBackoff:  1000,
			CallTimeoutMs: 15000,
		},
		Session: SessionConfig{
			MaxAttempts:     3,
			RefreshMs:       3000,
			SupportedChains: []uint64{31337, 6343},
			AutoEndOnCrash:  true,
		},
		Ledger: LedgerConfig{
			Backend:       "memory",
			DBPath:        "~/.rally/ledger.db",
			RelayURL:      "http://127.0.0.1:8787",
			ChainID:       31337,
			Contract:      "0xRALLY",
			EntryFee:      "0.001",
			RoundMinutes:  60,
			DemoBots:      3,
			MaxRetries:    3,
			RetryDelayMs:  250,
			MaxRetryDelay: 4000,
		},
		HUD: HUDConfig{
			PublishMs: 50,
		},
	}
}

// GetDefaultYAML returns the embedded default YAML.
func GetDefaultYAML() []byte {
	return defaultRallyYAML
}
