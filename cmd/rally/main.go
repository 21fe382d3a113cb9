// rally is a terminal endless runner whose scores are committed to a shared ledger.
//
// Usage:
//
//	rally                    - Start the menu
//	rally play               - Play a scored session (or --practice)
//	rally serve              - Start SSH server for remote play
//	rally relay              - Serve a ledger over HTTP for remote clients
//	rally standings          - Show the current round's leaderboard
//	rally round <cmd>        - Create, show or finalize rounds
//	rally replay <trace>     - Re-simulate a recorded attempt
//	rally course             - Print the obstacle course for a seed
//	rally runs               - Show practice run history
//
// Global flags:
//
//	--fps <rate>      - Set tick rate (default: 60)
//	--config <path>   - Load configuration from a YAML file
//	--ledger <name>   - Ledger backend: memory, sqlite or remote
//	--player <addr>   - Player address or name
//	--db <path>       - SQLite database path
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Import games to register them
	_ "github.com/vovakirdan/dash-rally/internal/games/dash"
)

var (
	// Global flags
	flagFPS        int
	flagConfig     string
	flagDifficulty string
	flagBackend    string
	flagRelayURL   string
	flagPlayer     string
	flagDBPath     string
	flagLogPath    string
	flagDebug      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rally",
	Short: "Dash Rally - an endless runner with a shared ledger",
	Long: `Dash Rally is a terminal endless runner. Scored attempts are paid for
with a round entry and their distance is committed to a ledger in batches;
practice runs stay local.

Run without a subcommand to open the menu.

Available commands:
  play       - Play a scored session or a practice run
  serve      - Start SSH server for remote play
  relay      - Serve a ledger over HTTP
  standings  - Show the round leaderboard
  round      - Manage rounds
  replay     - Re-simulate a recorded attempt
  course     - Print the course for a seed
  runs       - Show practice run history
  list       - List game modes

Examples:
  rally
  rally play --practice --difficulty hard
  rally play --ledger remote --relay-url http://127.0.0.1:8787
  rally relay --addr :8787 --ledger sqlite
  rally standings`,
	Run: runMenu,
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().IntVar(&flagFPS, "fps", 60, "Tick rate (frames per second)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a rally.yaml config file")
	rootCmd.PersistentFlags().StringVar(&flagDifficulty, "difficulty", "", "Practice difficulty: easy, normal, hard or fixed")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "ledger", "", "Ledger backend: memory, sqlite or remote (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagRelayURL, "relay-url", "", "Relay URL for the remote backend")
	rootCmd.PersistentFlags().StringVar(&flagPlayer, "player", "", "Player address (0x...) or a name to derive one from")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to the SQLite database (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagLogPath, "log", "~/.rally/rally.log", "Log file used while the TUI is running")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Log at debug level")

	// Add subcommands
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(standingsCmd)
	rootCmd.AddCommand(roundCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(courseCmd)
	rootCmd.AddCommand(runsCmd)
}
