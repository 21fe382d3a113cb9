package tui

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/dash-rally/internal/config"
)

// DefaultLogPath is where the TUI logs while the alt screen is up.
const DefaultLogPath = "~/.rally/rally.log"

// OpenLog opens (appending) a log file and returns a logger writing to it.
// The returned close function releases the file.
func OpenLog(path string, level log.Level) (*log.Logger, func() error, error) {
	path = config.ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("cannot create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open log file: %w", err)
	}
	logger := log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		Prefix:          "rally",
		Level:           level,
	})
	return logger, f.Close, nil
}
