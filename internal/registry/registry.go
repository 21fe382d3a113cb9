// Package registry maps game mode IDs to factories. Modes register themselves
// in init() so the menu and the CLI can list them without importing each game.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vovakirdan/dash-rally/internal/core"
)

// Mode says whether a game's attempts count against the ledger.
type Mode int

const (
	ModePractice Mode = iota
	ModeScored
)

func (m Mode) String() string {
	if m == ModeScored {
		return "scored"
	}
	return "practice"
}

// Game is the interface the platform drives.
// Games contain pure logic with no external dependencies (especially no Bubble Tea).
// The platform handles input mapping, timing, rendering and the ledger.
type Game interface {
	// ID returns the mode identifier (e.g., "dash").
	ID() string

	// Title returns a human-readable name for display.
	Title() string

	// Reset initializes the game for the runtime's seed base and attempt.
	Reset(cfg core.RuntimeConfig)

	// Step advances the simulation by one fixed tick and returns the
	// state plus the events emitted during the tick.
	Step(in core.InputFrame) core.StepResult

	// Render draws the current game state into the provided screen buffer.
	Render(dst *core.Screen)

	State() core.GameState
}

// GameInfo describes a registered mode.
type GameInfo struct {
	ID    string
	Title string
	Mode  Mode
}

// Factory creates a new game instance.
type Factory func() Game

type entry struct {
	info    GameInfo
	factory Factory
}

var (
	mu    sync.RWMutex
	modes = make(map[string]entry)
)

// Register adds a mode. It panics on a duplicate ID or when the factory
// builds a game reporting a different ID.
func Register(id string, mode Mode, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := modes[id]; exists {
		panic(fmt.Sprintf("registry: game %q already registered", id))
	}
	g := f()
	if g.ID() != id {
		panic(fmt.Sprintf("registry: factory for %q builds %q", id, g.ID()))
	}
	modes[id] = entry{
		info:    GameInfo{ID: id, Title: g.Title(), Mode: mode},
		factory: f,
	}
}

// List returns every registered mode, scored modes first, then by ID.
func List() []GameInfo {
	mu.RLock()
	defer mu.RUnlock()

	result := make([]GameInfo, 0, len(modes))
	for _, e := range modes {
		result = append(result, e.info)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Mode != result[j].Mode {
			return result[i].Mode > result[j].Mode
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Create instantiates a mode by ID.
func Create(id string) (Game, error) {
	mu.RLock()
	defer mu.RUnlock()

	e, ok := modes[id]
	if !ok {
		return nil, fmt.Errorf("registry: unknown game %q", id)
	}
	return e.factory(), nil
}

// Lookup returns the metadata for id.
func Lookup(id string) (GameInfo, bool) {
	mu.RLock()
	defer mu.RUnlock()

	e, ok := modes[id]
	return e.info, ok
}
