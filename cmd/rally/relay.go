package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/dash-rally/internal/ledger/remote"
)

var (
	flagRelayAddr  string
	flagRelayBots  int
	flagRelayRound bool
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Serve a ledger over HTTP",
	Long: `Start an HTTP relay in front of a memory or SQLite ledger so that
'rally play --ledger remote' clients can share it.

Writes act as the account named in the X-Player header. Events are
available by polling /api/v1/events?after=N or live over the
/api/v1/events/ws websocket.

Examples:
  rally relay                         # memory ledger on :8787
  rally relay --ledger sqlite --db ./rally.db
  rally relay --addr 127.0.0.1:9000 --open-round --bots 4`,
	Run: runRelay,
}

func init() {
	relayCmd.Flags().StringVar(&flagRelayAddr, "addr", ":8787", "HTTP listen address")
	relayCmd.Flags().IntVar(&flagRelayBots, "bots", 0, "Demo bots to run in the current round (memory ledger only)")
	relayCmd.Flags().BoolVar(&flagRelayRound, "open-round", false, "Open a round as the operator if none is active")
}

func runRelay(_ *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := stderrLogger("rally-relay")
	b, err := openBook(cfg.Ledger, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagRelayRound || flagRelayBots > 0 {
		roundCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		round, err := b.round(roundCtx, playerAddress(), true)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening round: %v\n", err)
			os.Exit(1)
		}
		logger.Info("round ready", "round", round)
		if b.mem != nil && flagRelayBots > 0 {
			go b.mem.RunBots(ctx, round, flagRelayBots, 0)
		}
	}

	srv := &http.Server{
		Addr:              flagRelayAddr,
		Handler:           remote.NewServer(b.book, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("relay listening", "address", flagRelayAddr, "backend", cfg.Ledger.Backend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
