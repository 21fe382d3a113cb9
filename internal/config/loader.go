package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load loads the Dash Rally configuration.
// Search order: customPath -> ~/.rally/configs/rally.yaml -> ./configs/rally.yaml -> embedded default.
// Files are decoded over the defaults, so a partial file only overrides what it names.
func Load(customPath string) (RallyConfig, error) {
	// Try custom path first
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return DefaultRallyConfig(), fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		cfg, err := parse(data)
		if err != nil {
			return DefaultRallyConfig(), fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
		return cfg, nil
	}

	// Try user config directory
	if userCfgPath := userConfigPath("rally.yaml"); userCfgPath != "" {
		if data, err := os.ReadFile(userCfgPath); err == nil {
			if cfg, err := parse(data); err == nil {
				return cfg, nil
			}
		}
	}

	// Try local configs directory
	if data, err := os.ReadFile("configs/rally.yaml"); err == nil {
		if cfg, err := parse(data); err == nil {
			return cfg, nil
		}
	}

	// Use embedded default YAML
	cfg, err := parse(defaultRallyYAML)
	if err != nil {
		return DefaultRallyConfig(), nil // Fallback to hardcoded if embed fails
	}
	return cfg, nil
}

func parse(data []byte) (RallyConfig, error) {
	cfg := DefaultRallyConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations that would break scoring or simulation.
func (c RallyConfig) Validate() error {
	switch {
	case c.World.ViewW <= 0 || c.World.ViewH <= c.World.GroundPad:
		return fmt.Errorf("world: invalid viewport %vx%v", c.World.ViewW, c.World.ViewH)
	case !c.Difficulty.Curve.Valid():
		return fmt.Errorf("difficulty: curve must start at 0 and be non-decreasing in [0,1]")
	case c.Difficulty.MinGap <= 0:
		return fmt.Errorf("difficulty: min_gap must be positive")
	case len(c.Obstacles.LowSkins) == 0 || len(c.Obstacles.HighSkins) == 0:
		return fmt.Errorf("obstacles: skin sets must not be empty")
	case c.Commit.Mode != CommitBatch && c.Commit.Mode != CommitObstacle:
		return fmt.Errorf("commit: unknown mode %q", c.Commit.Mode)
	case c.Commit.Threshold <= 0:
		return fmt.Errorf("commit: threshold must be positive")
	case c.Session.MaxAttempts <= 0:
		return fmt.Errorf("session: max_attempts must be positive")
	}
	return nil
}

// userConfigPath returns the path to user config file, or empty if home is unavailable.
func userConfigPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".rally", "configs", filename)
}

// ApplyPreset sets the practice difficulty offset for a preset.
func ApplyPreset(cfg *RallyConfig, preset DifficultyPreset) {
	cfg.Difficulty.PracticeFrom = PracticeOffsetForPreset(preset)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
