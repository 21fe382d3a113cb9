// Package config provides YAML-based configuration loading and the
// difficulty curve for Dash Rally.
package config

// RallyConfig contains all configuration for the game and its ledger plumbing.
type RallyConfig struct {
	World      WorldConfig      `yaml:"world"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Runner     RunnerConfig     `yaml:"runner"`
	Obstacles  ObstacleConfig   `yaml:"obstacles"`
	Difficulty DifficultyConfig `yaml:"difficulty"`
	Feedback   FeedbackConfig   `yaml:"feedback"`
	Score      ScoreConfig      `yaml:"score"`
	Commit     CommitConfig     `yaml:"commit"`
	Session    SessionConfig    `yaml:"session"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	HUD        HUDConfig        `yaml:"hud"`
}

// WorldConfig defines the logical viewport in world pixels.
// The viewport is fixed so that courses do not depend on terminal size.
type WorldConfig struct {
	ViewW         float64 `yaml:"view_w"`
	ViewH         float64 `yaml:"view_h"`
	GroundPad     float64 `yaml:"ground_pad"`
	CellW         float64 `yaml:"cell_w"` // world pixels per terminal column
	CellH         float64 `yaml:"cell_h"` // world pixels per terminal row
	MaxFrameMs    float64 `yaml:"max_frame_ms"`
	GraceDistance float64 `yaml:"grace_distance"`
	SpawnOffset   float64 `yaml:"spawn_offset"`
	PruneMargin   float64 `yaml:"prune_margin"`
	GroundEpsilon float64 `yaml:"ground_epsilon"`
}

// PhysicsConfig defines runner physics. Velocities are px/s, up positive.
type PhysicsConfig struct {
	Gravity      float64 `yaml:"gravity"`
	JumpVelocity float64 `yaml:"jump_velocity"`
	CoyoteMs     float64 `yaml:"coyote_ms"`
	JumpBufferMs float64 `yaml:"jump_buffer_ms"`
	SlideMs      float64 `yaml:"slide_ms"`
	DashMs       float64 `yaml:"dash_ms"`
}

// RunnerConfig defines the runner hitbox.
type RunnerConfig struct {
	X           float64 `yaml:"x"`
	Width       float64 `yaml:"width"`
	Height      float64 `yaml:"height"`
	SlideHeight float64 `yaml:"slide_height"`
}

// ObstacleConfig defines obstacle geometry and skin sets.
type ObstacleConfig struct {
	Width     float64  `yaml:"width"`
	LowHeight float64  `yaml:"low_height"`
	LowSkins  []string `yaml:"low_skins"`
	HighSkins []string `yaml:"high_skins"`
}

// DifficultyConfig defines the difficulty curve and every tunable keyed by it.
type DifficultyConfig struct {
	Curve        Curve   `yaml:"curve"`
	Speed        Range   `yaml:"speed"`
	DashBonus    float64 `yaml:"dash_bonus"`
	SpawnGap     Range   `yaml:"spawn_gap"`
	MinGap       float64 `yaml:"min_gap"`
	Jitter       float64 `yaml:"jitter"`
	HitboxPad    Range   `yaml:"hitbox_pad"`
	DashPad      float64 `yaml:"dash_pad"`
	HighHeight   Range   `yaml:"high_height"`
	HighChance   Range   `yaml:"high_chance"`
	PracticeFrom int     `yaml:"practice_from"` // passed-count offset for practice presets
}

// FeedbackConfig defines clearance bands for pass feedback on low obstacles.
type FeedbackConfig struct {
	Perfect float64 `yaml:"perfect"`
	Near    float64 `yaml:"near"`
}

// ScoreConfig converts travel distance to score units.
type ScoreConfig struct {
	UnitsPerPx float64 `yaml:"units_per_px"`
}

// Commit modes.
const (
	CommitBatch    = "batch"
	CommitObstacle = "obstacle"
)

// CommitConfig defines the score flush policy.
type CommitConfig struct {
	Mode          string `yaml:"mode"` // "batch" or "obstacle"
	Threshold     int    `yaml:"threshold"`
	MaxIntervalMs int64  `yaml:"max_interval_ms"`
	PollMs        int64  `yaml:"poll_ms"`
	RetryBackoff  int64  `yaml:"retry_backoff_ms"`
	CallTimeoutMs int64  `yaml:"call_timeout_ms"`
}

// SessionConfig defines attempt gating and refresh cadence.
type SessionConfig struct {
	MaxAttempts     int      `yaml:"max_attempts"`
	RefreshMs       int64    `yaml:"refresh_ms"`
	SupportedChains []uint64 `yaml:"supported_chains"`
	AutoEndOnCrash  bool     `yaml:"auto_end_on_crash"`
}

// LedgerConfig selects and configures the ledger backend.
type LedgerConfig struct {
	Backend       string `yaml:"backend"` // "memory", "sqlite" or "remote"
	DBPath        string `yaml:"db_path"`
	RelayURL      string `yaml:"relay_url"`
	ChainID       uint64 `yaml:"chain_id"`
	Contract      string `yaml:"contract"`
	Operator      string `yaml:"operator"`
	EntryFee      string `yaml:"entry_fee"` // decimal ETH amount
	RoundMinutes  int    `yaml:"round_minutes"`
	DemoBots      int    `yaml:"demo_bots"`
	MaxRetries    int    `yaml:"max_retries"`
	RetryDelayMs  int64  `yaml:"retry_delay_ms"`
	MaxRetryDelay int64  `yaml:"max_retry_delay_ms"`
}

// HUDConfig defines how often the presentation snapshot is published.
type HUDConfig struct {
	PublishMs int64 `yaml:"publish_ms"`
}

// DifficultyPreset represents a named practice difficulty.
type DifficultyPreset string

const (
	DifficultyEasy   DifficultyPreset = "easy"
	DifficultyNormal DifficultyPreset = "normal"
	DifficultyHard   DifficultyPreset = "hard"
	DifficultyFixed  DifficultyPreset = "fixed"
)

// PracticeOffsetForPreset returns the passed-count offset a practice run
// starts from. Scored runs always start at zero.
func PracticeOffsetForPreset(preset DifficultyPreset) int {
	switch preset {
	case DifficultyNormal:
		return 8
	case DifficultyHard:
		return 24
	case DifficultyFixed:
		return 70
	default:
		return 0
	}
}

// IsChainSupported reports whether chainID is in the supported set.
// An empty set accepts every chain.
func (c SessionConfig) IsChainSupported(chainID uint64) bool {
	if len(c.SupportedChains) == 0 {
		return true
	}
	for _, id := range c.SupportedChains {
		if id == chainID {
			return true
		}
	}
	return false
}
