package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/dash-rally/internal/platform/tui"
)

// runMenu shows the mode picker and returns to it after every session.
func runMenu(_ *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	runs, closeRuns := (&backend{cfg: cfg.Ledger}).runs()
	defer closeRuns()

	runtime := runtimeConfig()

	// Menu loop
	for {
		menuResult, err := tui.RunMenu(runtime, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}
		runtime = menuResult.Config

		if menuResult.Quit {
			break
		}

		switch menuResult.GameID {
		case tui.RunsItemID:
			goBack, runsErr := tui.RunRuns(runs, "dash_practice", runtime.ScreenW, runtime.ScreenH)
			if runsErr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", runsErr)
			}
			if !goBack {
				return
			}
		case "dash":
			if err := playScored(cfg, runtime); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return
			}
		case "dash_practice":
			if err := playPractice(cfg, runtime); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return
			}
		default:
			return
		}
	}
}
