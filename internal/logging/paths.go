package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.graphindex/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".graphindex", "logs")
	}
	return filepath.Join(home, ".graphindex", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "graphindex.log")
}
