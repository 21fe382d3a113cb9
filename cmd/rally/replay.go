package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/dash-rally/internal/replay"
)

var flagReplayVerbose bool

var replayCmd = &cobra.Command{
	Use:   "replay <trace>",
	Short: "Re-simulate a recorded attempt",
	Long: `Replay an attempt trace written by 'rally play --trace-dir'.

The trace holds the seed base, attempt number and per-frame inputs, so the
same course and the same result are reproduced without a ledger.

Examples:
  rally replay ./traces/attempt-1-6f1c.yaml
  rally replay -v ./traces/attempt-2-9ab0.yaml`,
	Args: cobra.ExactArgs(1),
	Run:  runReplay,
}

func init() {
	replayCmd.Flags().BoolVarP(&flagReplayVerbose, "verbose", "v", false, "List every obstacle placed")
}

func runReplay(_ *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	trace, err := replay.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	res, err := replay.Run(trace, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Trace %s\n", trace.ID)
	fmt.Printf("  Seed base:  %s\n", trace.SeedBase)
	fmt.Printf("  Attempt:    %d\n", trace.Attempt)
	fmt.Printf("  Frames:     %d of %d\n", res.Frames, len(trace.Frames))
	fmt.Printf("  Distance:   %.1f\n", res.Distance)
	fmt.Printf("  Units:      %.2f\n", res.Units)
	fmt.Printf("  Score:      %d\n", res.Score)
	fmt.Printf("  Passed:     %d\n", res.Passed)
	if res.Crashed {
		fmt.Printf("  Crashed at frame %d\n", res.CrashFrame)
	} else {
		fmt.Println("  Trace ended before a crash")
	}

	if flagReplayVerbose {
		fmt.Println()
		printSpawns(res.Obstacles)
	}
}
