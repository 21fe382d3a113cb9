package core

// RuntimeConfig contains configuration passed to games at initialization.
// Games use this to adapt to screen size and for deterministic simulation.
type RuntimeConfig struct {
	ScreenW  int    // Screen width in characters
	ScreenH  int    // Screen height in characters
	TickRate int    // Simulation ticks per second (default 60)
	SeedBase string // Per-entry course seed; empty means a local practice seed
	Attempt  int    // 1-based attempt number within the entry
}

// DefaultConfig returns a RuntimeConfig with sensible defaults.
func DefaultConfig() RuntimeConfig {
	return RuntimeConfig{
		ScreenW:  80,
		ScreenH:  24,
		TickRate: 60,
		Attempt:  1,
	}
}

// TickMillis returns the fixed tick duration in milliseconds.
func (c RuntimeConfig) TickMillis() float64 {
	if c.TickRate <= 0 {
		return 1000.0 / 60.0
	}
	return 1000.0 / float64(c.TickRate)
}

// GameState represents the current state of a game.
// Returned by Game.State() to communicate status to the platform.
type GameState struct {
	Score    int  // Whole score units earned in the current attempt
	Running  bool // Whether the simulation is advancing
	GameOver bool // Whether the attempt has crashed
}

// Event is emitted by a game during a tick. Concrete event types live
// in the game packages.
type Event interface {
	GameEvent()
}

// StepResult is returned by Game.Step() after each simulation tick.
// Contains the updated game state and any events that occurred, in order.
type StepResult struct {
	State  GameState
	Events []Event
}
