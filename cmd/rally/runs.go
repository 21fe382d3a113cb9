package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/dash-rally/internal/storage"
)

const practiceGameID = "dash_practice"

var (
	flagRunsLimit int
	flagRunsClear bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show practice run history",
	Long: `Display the best local practice runs. Practice runs never touch the
ledger; they are kept in the local SQLite database.

Examples:
  rally runs
  rally runs --limit 25
  rally runs --clear`,
	Run: runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&flagRunsLimit, "limit", 10, "Number of runs to show")
	runsCmd.Flags().BoolVar(&flagRunsClear, "clear", false, "Delete the practice run history")
}

func runRuns(_ *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.Ledger.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening runs database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if flagRunsClear {
		if err := store.ClearRuns(practiceGameID); err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing runs: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Practice runs cleared.")
		return
	}

	runs, err := store.TopRuns(practiceGameID, flagRunsLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error retrieving runs: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Practice runs")
	fmt.Println()

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		fmt.Println()
		fmt.Println("Play 'rally play --practice' to set the first one!")
		return
	}

	fmt.Printf("  %-4s  %-8s  %-7s  %s\n", "Rank", "Score", "Passed", "Date")
	fmt.Printf("  %-4s  %-8s  %-7s  %s\n", "----", "-----", "------", "----")
	for i, run := range runs {
		fmt.Printf("  %-4d  %-8d  %-7d  %s\n", i+1, run.Score, run.Passed, run.CreatedAt.Format("2006-01-02 15:04"))
	}

	stats, err := store.AllRunStats()
	if err == nil {
		if st, ok := stats[practiceGameID]; ok {
			fmt.Println()
			fmt.Printf("Best: %d  Runs: %d  Average: %.1f\n", st.Best, st.Runs, st.AvgScore)
		}
	}
}
