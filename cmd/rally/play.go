package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/dash-rally/internal/config"
	"github.com/vovakirdan/dash-rally/internal/core"
	"github.com/vovakirdan/dash-rally/internal/ledger/memory"
	"github.com/vovakirdan/dash-rally/internal/platform/tui"
)

var (
	flagPractice bool
	flagTraceDir string
	flagBots     int
	flagNoCreate bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play Dash Rally",
	Long: `Play a scored session against the configured ledger, or a local
practice run with --practice.

Scored play needs a round entry (n) before attempts (a) can start. The
attempt's distance is committed in batches while you run; a crash or (e)
ends the attempt and locks its score in.

Controls:
  Space/Up/W  - Jump
  Down/S      - Slide (dash while airborne)
  N           - Buy an entry
  A/Enter     - Start an attempt
  E           - End the attempt
  R           - Retry a failed end
  Tab         - Toggle standings
  Q           - Quit

Examples:
  rally play
  rally play --practice --difficulty easy
  rally play --ledger sqlite --db ./rally.db
  rally play --ledger remote --relay-url http://127.0.0.1:8787 --player alice
  rally play --trace-dir ./traces`,
	Run: runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&flagPractice, "practice", false, "Play a local practice run with no ledger")
	playCmd.Flags().StringVar(&flagTraceDir, "trace-dir", "", "Record every scored attempt to this directory")
	playCmd.Flags().IntVar(&flagBots, "bots", -1, "Demo bots on the memory ledger (-1 = config)")
	playCmd.Flags().BoolVar(&flagNoCreate, "no-create", false, "Do not open a round when none is active")
}

func runPlay(_ *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if flagPractice {
		err = playPractice(cfg, runtimeConfig())
	} else {
		err = playScored(cfg, runtimeConfig())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// playPractice runs a local practice session.
func playPractice(cfg config.RallyConfig, runtime core.RuntimeConfig) error {
	logger, closeLog, err := tui.OpenLog(flagLogPath, logLevel())
	if err != nil {
		return err
	}
	defer closeLog()

	runs, closeRuns := (&backend{cfg: cfg.Ledger}).runs()
	defer closeRuns()

	return tui.Run(tui.Options{
		Config:  cfg,
		Runtime: runtime,
		Logger:  logger,
		Runs:    runs,
	})
}

// playScored opens the ledger, resolves a round and runs a scored session.
func playScored(cfg config.RallyConfig, runtime core.RuntimeConfig) error {
	logger, closeLog, err := tui.OpenLog(flagLogPath, logLevel())
	if err != nil {
		return err
	}
	defer closeLog()

	b, err := openBackend(cfg.Ledger, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	player := playerAddress()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	round, err := b.round(ctx, player, !flagNoCreate)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("session starting", "backend", cfg.Ledger.Backend, "round", round, "player", player.Short())

	if b.mem != nil {
		bots := cfg.Ledger.DemoBots
		if flagBots >= 0 {
			bots = flagBots
		}
		botCtx, stopBots := context.WithCancel(context.Background())
		defer stopBots()
		go b.mem.RunBots(botCtx, round, bots, memory.BotInterval)
	}

	return tui.Run(tui.Options{
		Config:   cfg,
		Runtime:  runtime,
		Ledger:   b.account(player),
		Round:    round,
		Logger:   logger,
		TraceDir: flagTraceDir,
	})
}
