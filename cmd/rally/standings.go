package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

var flagStandingsRound uint64

var standingsCmd = &cobra.Command{
	Use:   "standings",
	Short: "Show a round's leaderboard",
	Long: `Display every player's locked score in a round, best first.

The latest round is shown unless --round is given.

Examples:
  rally standings
  rally standings --round 3 --ledger sqlite
  rally standings --ledger remote --relay-url http://127.0.0.1:8787`,
	Run: runStandings,
}

func init() {
	standingsCmd.Flags().Uint64Var(&flagStandingsRound, "round", 0, "Round ID (0 = latest)")
}

func runStandings(_ *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	b, err := openBackend(cfg.Ledger, stderrLogger("rally"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	player := playerAddress()
	l := b.account(player)
	id, err := resolveRound(ctx, l, flagStandingsRound)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	round, err := l.Round(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading round: %v\n", err)
		os.Exit(1)
	}
	rows, err := ledger.Standings(ctx, l, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading standings: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Standings - round %d (%s)\n", id, roundState(round, time.Now()))
	fmt.Println()

	if len(rows) == 0 {
		fmt.Println("No players have entered yet.")
		return
	}

	fmt.Printf("  %-4s  %-14s  %s\n", "Rank", "Player", "Score")
	fmt.Printf("  %-4s  %-14s  %s\n", "----", "------", "-----")
	for i, row := range rows {
		name := row.Player.Short()
		if row.Player.Equal(player) {
			name += " (you)"
		}
		fmt.Printf("  %-4d  %-14s  %d\n", i+1, name, row.Score)
	}
	fmt.Println()
	fmt.Printf("Pool: %s ETH\n", round.Pool.String())
}

// resolveRound returns id, or the latest round when id is zero.
func resolveRound(ctx context.Context, l ledger.Ledger, id uint64) (ledger.RoundID, error) {
	if id != 0 {
		return ledger.RoundID(id), nil
	}
	latest, ok, err := l.LatestRound(ctx)
	if err != nil {
		return 0, fmt.Errorf("cannot read latest round: %w", err)
	}
	if !ok {
		return 0, ledger.ErrUnknownRound
	}
	return latest, nil
}

func roundState(r ledger.Round, now time.Time) string {
	switch {
	case r.Finalized:
		return "finalized"
	case r.Active(now):
		return fmt.Sprintf("%s left", r.Remaining(now).Truncate(time.Second))
	case now.Before(r.StartTime):
		return "not started"
	default:
		return "ended"
	}
}
