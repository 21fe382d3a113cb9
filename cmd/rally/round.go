package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

var (
	flagRoundFee     string
	flagRoundMinutes int
)

var roundCmd = &cobra.Command{
	Use:   "round",
	Short: "Create, show or finalize rounds",
	Long: `Manage rounds on the configured ledger.

On the memory and SQLite backends rounds are created by the operator
account from the config; on the remote backend by --player.

Examples:
  rally round create --fee 0.002 --minutes 30
  rally round show
  rally round finalize 3`,
}

var roundCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a new round",
	Args:  cobra.NoArgs,
	Run:   runRoundCreate,
}

var roundShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a round (latest by default)",
	Args:  cobra.MaximumNArgs(1),
	Run:   runRoundShow,
}

var roundFinalizeCmd = &cobra.Command{
	Use:   "finalize <id>",
	Short: "Finalize an ended round",
	Args:  cobra.ExactArgs(1),
	Run:   runRoundFinalize,
}

func init() {
	roundCreateCmd.Flags().StringVar(&flagRoundFee, "fee", "", "Entry fee in ETH (default from config)")
	roundCreateCmd.Flags().IntVar(&flagRoundMinutes, "minutes", 0, "Round length in minutes (default from config)")

	roundCmd.AddCommand(roundCreateCmd)
	roundCmd.AddCommand(roundShowCmd)
	roundCmd.AddCommand(roundFinalizeCmd)
}

// withOperator opens the backend and runs fn as the round operator.
func withOperator(fn func(ctx context.Context, l ledger.Ledger) error) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if flagRoundFee == "" {
		flagRoundFee = cfg.Ledger.EntryFee
	}
	if flagRoundMinutes <= 0 {
		flagRoundMinutes = cfg.Ledger.RoundMinutes
	}

	b, err := openBackend(cfg.Ledger, stderrLogger("rally"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = fn(ctx, b.operator(playerAddress()))
	cancel()
	b.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runRoundCreate(_ *cobra.Command, _ []string) {
	withOperator(func(ctx context.Context, l ledger.Ledger) error {
		fee, err := decimal.NewFromString(flagRoundFee)
		if err != nil {
			return fmt.Errorf("invalid fee %q: %w", flagRoundFee, err)
		}
		id, err := l.CreateRound(ctx, fee, time.Duration(flagRoundMinutes)*time.Minute)
		if err != nil {
			return err
		}
		fmt.Printf("Round %d open for %d minutes, entry %s ETH\n", id, flagRoundMinutes, fee.String())
		return nil
	})
}

func runRoundShow(_ *cobra.Command, args []string) {
	var want uint64
	if len(args) == 1 {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid round id %q\n", args[0])
			os.Exit(1)
		}
		want = id
	}

	withOperator(func(ctx context.Context, l ledger.Ledger) error {
		id, err := resolveRound(ctx, l, want)
		if err != nil {
			return err
		}
		r, err := l.Round(ctx, id)
		if err != nil {
			return err
		}
		now := time.Now()
		fmt.Printf("Round %d\n", r.ID)
		fmt.Printf("  State:    %s\n", roundState(r, now))
		fmt.Printf("  Creator:  %s\n", r.Creator)
		fmt.Printf("  Entry:    %s ETH\n", r.EntryFee.String())
		fmt.Printf("  Pool:     %s ETH\n", r.Pool.String())
		fmt.Printf("  Players:  %d\n", r.PlayerCount)
		fmt.Printf("  Start:    %s\n", r.StartTime.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("  End:      %s\n", r.EndTime.Local().Format("2006-01-02 15:04:05"))
		return nil
	})
}

func runRoundFinalize(_ *cobra.Command, args []string) {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid round id %q\n", args[0])
		os.Exit(1)
	}

	withOperator(func(ctx context.Context, l ledger.Ledger) error {
		if err := l.FinalizeRound(ctx, ledger.RoundID(id)); err != nil {
			return err
		}
		fmt.Printf("Round %d finalized\n", id)
		return nil
	})
}
