package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/vovakirdan/dash-rally/internal/config"
	"github.com/vovakirdan/dash-rally/internal/core"
	"github.com/vovakirdan/dash-rally/internal/games/dash"
	"github.com/vovakirdan/dash-rally/internal/ledger"
	"github.com/vovakirdan/dash-rally/internal/ledger/memory"
	"github.com/vovakirdan/dash-rally/internal/ledger/remote"
	"github.com/vovakirdan/dash-rally/internal/platform/tui"
	"github.com/vovakirdan/dash-rally/internal/session"
	"github.com/vovakirdan/dash-rally/internal/storage"
)

// loadConfig loads the rally config and applies the global flag overrides.
func loadConfig() (config.RallyConfig, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagBackend != "" {
		cfg.Ledger.Backend = flagBackend
	}
	if flagRelayURL != "" {
		cfg.Ledger.RelayURL = flagRelayURL
	}
	if flagDBPath != "" {
		cfg.Ledger.DBPath = flagDBPath
	}
	dash.SetConfigPath(flagConfig)
	dash.SetDifficultyPreset(flagDifficulty)
	return cfg, nil
}

func logLevel() log.Level {
	if flagDebug {
		return log.DebugLevel
	}
	return log.InfoLevel
}

// stderrLogger is used by the long-running servers.
func stderrLogger(prefix string) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
		Level:           logLevel(),
	})
}

// playerAddress resolves --player, falling back to the login name.
func playerAddress() ledger.Address {
	name := flagPlayer
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		name = "player"
	}
	if addr, err := ledger.ParseAddress(name); err == nil {
		return addr
	}
	return ledger.AddressFromName(name)
}

func runtimeConfig() core.RuntimeConfig {
	width, height := 80, 24
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width = w
		height = h
	}
	return core.RuntimeConfig{
		ScreenW:  width,
		ScreenH:  height,
		TickRate: flagFPS,
	}
}

// backend is an opened ledger plus whatever owns it.
type backend struct {
	book  ledger.Book    // nil for the remote backend
	store *storage.Store // set for the sqlite backend
	mem   *memory.Book   // set for the memory backend
	cfg   config.LedgerConfig
	log   *log.Logger
}

// openBook opens a local multi-account backend.
func openBook(cfg config.LedgerConfig, logger *log.Logger) (*backend, error) {
	b := &backend{cfg: cfg, log: logger}
	switch cfg.Backend {
	case "", "memory":
		b.mem = memory.New(memory.WithLogger(logger))
		b.book = b.mem
	case "sqlite":
		store, err := storage.Open(cfg.DBPath, storage.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("cannot open ledger database: %w", err)
		}
		b.store = store
		b.book = store
	case "remote":
		return nil, fmt.Errorf("the remote backend has no local book; use memory or sqlite")
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
	return b, nil
}

// openBackend opens any backend, including a relay client.
func openBackend(cfg config.LedgerConfig, logger *log.Logger) (*backend, error) {
	if cfg.Backend != "remote" {
		return openBook(cfg, logger)
	}
	if cfg.RelayURL == "" {
		return nil, fmt.Errorf("the remote backend needs --relay-url")
	}
	return &backend{cfg: cfg, log: logger}, nil
}

// account returns the ledger acting as addr.
func (b *backend) account(addr ledger.Address) ledger.Ledger {
	if b.book != nil {
		return b.book.Account(addr)
	}
	return remote.NewClient(remote.Config{
		BaseURL:        b.cfg.RelayURL,
		Player:         addr,
		MaxRetries:     b.cfg.MaxRetries,
		BaseRetryDelay: time.Duration(b.cfg.RetryDelayMs) * time.Millisecond,
		MaxRetryDelay:  time.Duration(b.cfg.MaxRetryDelay) * time.Millisecond,
		Logger:         b.log,
	})
}

// operator is the account that opens rounds. Remote rounds are opened by
// the player, so the relay's creator check applies to them.
func (b *backend) operator(player ledger.Address) ledger.Ledger {
	if b.book == nil {
		return b.account(player)
	}
	return b.account(tui.OperatorAddress(b.cfg))
}

// round resolves the round to play, opening one when none is active.
func (b *backend) round(ctx context.Context, player ledger.Address, create bool) (ledger.RoundID, error) {
	fee, err := decimal.NewFromString(b.cfg.EntryFee)
	if err != nil {
		return 0, fmt.Errorf("invalid entry fee %q: %w", b.cfg.EntryFee, err)
	}
	d := time.Duration(b.cfg.RoundMinutes) * time.Minute
	return session.CurrentRound(ctx, b.operator(player), fee, d, create, time.Now())
}

// runs returns a practice run store. The sqlite ledger shares its database.
func (b *backend) runs() (*storage.Store, func() error) {
	if b != nil && b.store != nil {
		return b.store, func() error { return nil }
	}
	path := config.DefaultRallyConfig().Ledger.DBPath
	if b != nil && b.cfg.DBPath != "" {
		path = b.cfg.DBPath
	}
	store, err := storage.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open runs database: %v\n", err)
		return nil, func() error { return nil }
	}
	return store, store.Close
}

func (b *backend) Close() error {
	if b.book != nil {
		return b.book.Close()
	}
	return nil
}
