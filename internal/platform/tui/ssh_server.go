package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/config"
	"github.com/vovakirdan/dash-rally/internal/core"
	"github.com/vovakirdan/dash-rally/internal/ledger"
	"github.com/vovakirdan/dash-rally/internal/session"
	"github.com/vovakirdan/dash-rally/internal/storage"
)

// SSHServerConfig holds configuration for the SSH server.
type SSHServerConfig struct {
	// Address is the host:port to listen on (e.g., ":23234").
	Address string

	// HostKeyPath is the path to the host key file.
	// If empty, a key will be auto-generated at ~/.rally/host_key.
	HostKeyPath string

	// DBPath is the path to the shared ledger database.
	DBPath string

	// IdleTimeout is how long to wait before closing idle connections.
	IdleTimeout time.Duration

	// Rally is the game and ledger configuration every session uses.
	Rally config.RallyConfig
}

// DefaultSSHServerConfig returns a config with sensible defaults.
func DefaultSSHServerConfig() SSHServerConfig {
	return SSHServerConfig{
		Address:     ":23234",
		DBPath:      "~/.rally/ledger.db",
		IdleTimeout: 30 * time.Minute,
		Rally:       config.DefaultRallyConfig(),
	}
}

// SSHServer wraps a Wish SSH server. Every session plays against the same
// SQLite ledger; the SSH user name determines the player address.
type SSHServer struct {
	config   SSHServerConfig
	server   *ssh.Server
	store    *storage.Store
	operator ledger.Ledger
	fee      decimal.Decimal
	logger   *log.Logger
}

// NewSSHServer creates a new SSH server with the given configuration.
func NewSSHServer(cfg SSHServerConfig) (*SSHServer, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "rally-ssh",
	})

	fee, err := decimal.NewFromString(cfg.Rally.Ledger.EntryFee)
	if err != nil {
		return nil, fmt.Errorf("invalid entry fee %q: %w", cfg.Rally.Ledger.EntryFee, err)
	}

	store, err := storage.Open(cfg.DBPath, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("cannot open ledger database: %w", err)
	}

	srv := &SSHServer{
		config:   cfg,
		store:    store,
		operator: store.Account(OperatorAddress(cfg.Rally.Ledger)),
		fee:      fee,
		logger:   logger,
	}

	// Resolve host key path
	hostKeyPath := cfg.HostKeyPath
	if hostKeyPath == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			store.Close()
			return nil, fmt.Errorf("cannot get home directory: %w", homeErr)
		}
		hostKeyPath = filepath.Join(home, ".rally", "host_key")
	}

	hostKeyDir := filepath.Dir(hostKeyPath)
	if mkdirErr := os.MkdirAll(hostKeyDir, 0o700); mkdirErr != nil {
		store.Close()
		return nil, fmt.Errorf("cannot create host key directory: %w", mkdirErr)
	}

	opts := []ssh.Option{
		wish.WithAddress(cfg.Address),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithIdleTimeout(cfg.IdleTimeout),
		wish.WithMiddleware(
			bubbletea.Middleware(srv.teaHandler),
			srv.loggingMiddleware,
		),
	}

	server, err := wish.NewServer(opts...)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("cannot create SSH server: %w", err)
	}

	srv.server = server
	return srv, nil
}

// OperatorAddress is the account that opens rounds for hosted play.
func OperatorAddress(cfg config.LedgerConfig) ledger.Address {
	if addr, err := ledger.ParseAddress(cfg.Operator); err == nil {
		return addr
	}
	return ledger.AddressFromName("rally-operator")
}

// currentRound returns the open round, creating one when the last has ended.
func (s *SSHServer) currentRound() (ledger.RoundID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d := time.Duration(s.config.Rally.Ledger.RoundMinutes) * time.Minute
	return session.CurrentRound(ctx, s.operator, s.fee, d, true, time.Now())
}

// teaHandler creates a Bubble Tea program for each SSH session.
func (s *SSHServer) teaHandler(sshSession ssh.Session) (tea.Model, []tea.ProgramOption) {
	pty, _, ok := sshSession.Pty()
	if !ok {
		s.logger.Warn("no PTY requested", "user", sshSession.User())
		return nil, nil
	}

	round, err := s.currentRound()
	if err != nil {
		s.logger.Error("no round available", "error", err)
		fmt.Fprintln(sshSession, "rally: no round available, try again later")
		return nil, nil
	}

	player := ledger.AddressFromName(sshSession.User())
	runtime := core.DefaultConfig()
	runtime.ScreenW = pty.Window.Width
	runtime.ScreenH = pty.Window.Height

	model, err := NewModel(Options{
		Config:  s.config.Rally,
		Runtime: runtime,
		Ledger:  s.store.Account(player),
		Round:   round,
		Logger:  s.logger.With("player", player.Short()),
		Runs:    s.store,
	})
	if err != nil {
		s.logger.Error("cannot start session", "user", sshSession.User(), "error", err)
		return nil, nil
	}

	return model, []tea.ProgramOption{
		tea.WithAltScreen(),
	}
}

// loggingMiddleware logs SSH session events.
func (s *SSHServer) loggingMiddleware(next ssh.Handler) ssh.Handler {
	return func(sshSession ssh.Session) {
		s.logger.Info("session started",
			"user", sshSession.User(),
			"player", ledger.AddressFromName(sshSession.User()).Short(),
			"remote", sshSession.RemoteAddr().String(),
		)
		next(sshSession)
		s.logger.Info("session ended",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
	}
}

// ListenAndServe starts the SSH server and blocks until shutdown.
func (s *SSHServer) ListenAndServe() error {
	s.logger.Info("starting SSH server", "address", s.config.Address, "db", s.config.DBPath)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()

	<-done
	s.logger.Info("shutting down...")
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *SSHServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// Addr returns the server's listen address string.
func (s *SSHServer) Addr() string {
	return s.config.Address
}
