// Package storage provides SQLite persistence for the round ledger and
// local practice runs. Uses the pure-Go modernc.org/sqlite driver to avoid
// CGO dependencies.
package storage

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

// Store manages the SQLite database and implements ledger.Book.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	limits ledger.Limits
	hub    *ledger.Hub
	logger *log.Logger
}

var _ ledger.Book = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLimits overrides the ledger limits.
func WithLimits(l ledger.Limits) Option {
	return func(s *Store) { s.limits = l }
}

// WithLogger sets the logger for store diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string, opts ...Option) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	// One writer keeps read-modify-write transactions serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{
		db:     db,
		now:    time.Now,
		limits: ledger.DefaultLimits(),
		hub:    ledger.NewHub(64),
	}
	for _, opt := range opts {
		opt(store)
	}
	if store.logger == nil {
		store.logger = log.New(io.Discard)
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
// Times are unix nanoseconds; amounts in ETH are decimal strings.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS rounds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			creator TEXT NOT NULL,
			entry_fee TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			pool TEXT NOT NULL DEFAULT '0',
			finalized INTEGER NOT NULL DEFAULT 0,
			player_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS players (
			round_id INTEGER NOT NULL REFERENCES rounds(id),
			player TEXT NOT NULL,
			entry_index INTEGER NOT NULL DEFAULT 0,
			attempts_used INTEGER NOT NULL DEFAULT 0,
			attempt_active INTEGER NOT NULL DEFAULT 0,
			current_attempt INTEGER NOT NULL DEFAULT 0,
			entry_total INTEGER NOT NULL DEFAULT 0,
			best INTEGER NOT NULL DEFAULT 0,
			last_obstacle INTEGER NOT NULL DEFAULT 0,
			attempt_started_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (round_id, player)
		);

		CREATE TABLE IF NOT EXISTS score_batches (
			batch_key TEXT PRIMARY KEY,
			result INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS operators (
			player TEXT NOT NULL,
			operator TEXT NOT NULL,
			PRIMARY KEY (player, operator)
		);

		CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			round_id INTEGER NOT NULL DEFAULT 0,
			player TEXT NOT NULL DEFAULT '',
			entry INTEGER NOT NULL DEFAULT 0,
			attempt INTEGER NOT NULL DEFAULT 0,
			amount INTEGER NOT NULL DEFAULT 0,
			obstacles INTEGER NOT NULL DEFAULT 0,
			value TEXT NOT NULL DEFAULT '0',
			at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_round ON events(round_id);

		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id TEXT NOT NULL,
			score INTEGER NOT NULL,
			passed INTEGER NOT NULL DEFAULT 0,
			seed TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_runs_top ON runs(game_id, score DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Subscribe streams events written through this store.
func (s *Store) Subscribe() (<-chan ledger.Event, func()) {
	return s.hub.Subscribe()
}

// Account returns a Ledger acting as addr.
func (s *Store) Account(addr ledger.Address) ledger.Ledger {
	return &Account{store: s, addr: addr}
}

func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
