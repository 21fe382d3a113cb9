package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/dash-rally/internal/games/dash"
	"github.com/vovakirdan/dash-rally/internal/replay"
)

var (
	flagSeedBase string
	flagAttempt  int
	flagCount    int
)

var courseCmd = &cobra.Command{
	Use:   "course",
	Short: "Print the obstacle course for a seed",
	Long: `Print the first obstacles of the course an attempt would run.

Scored courses are seeded from "<chain>:<contract>:<round>:<player>:<entry>"
and the attempt number, so every player can check the course they ran.

Examples:
  rally course --seed-base "31337:0xRALLY:1:0xabc:1" --attempt 2
  rally course --seed-base practice -n 40`,
	Run: runCourse,
}

func init() {
	courseCmd.Flags().StringVar(&flagSeedBase, "seed-base", "", "Seed base string (required)")
	courseCmd.Flags().IntVar(&flagAttempt, "attempt", 1, "Attempt number (1-based)")
	courseCmd.Flags().IntVarP(&flagCount, "count", "n", 20, "Number of obstacles to print")
	_ = courseCmd.MarkFlagRequired("seed-base")
}

func runCourse(_ *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if flagAttempt < 1 {
		fmt.Fprintln(os.Stderr, "Error: --attempt must be at least 1")
		os.Exit(1)
	}

	spawns := replay.Course(flagSeedBase, flagAttempt, flagCount, cfg)
	fmt.Printf("Course %q attempt %d\n", flagSeedBase, flagAttempt)
	fmt.Println()
	printSpawns(spawns)
}

func printSpawns(spawns []dash.Spawn) {
	if len(spawns) == 0 {
		fmt.Println("No obstacles placed.")
		return
	}

	fmt.Printf("  %-4s  %-9s  %-5s  %-7s  %-7s  %s\n", "#", "Travel", "Kind", "Height", "Gap", "Skin")
	fmt.Printf("  %-4s  %-9s  %-5s  %-7s  %-7s  %s\n", "-", "------", "----", "------", "---", "----")
	for _, s := range spawns {
		fmt.Printf("  %-4d  %-9.1f  %-5s  %-7.1f  %-7.1f  %s\n", s.Seq, s.Travel, s.Kind, s.Height, s.Gap, s.Skin)
	}
}
