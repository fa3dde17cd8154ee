package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SessionLogPath returns <logsDir>/<name>.<yyyymmdd_hhmmss>.log.
func SessionLogPath(logsDir, name string, started time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.%s.log", name, started.Format("20060102_150405")))
}

// OpenSessionLog creates logsDir if needed and opens a fresh session log for appending.
func OpenSessionLog(logsDir, name string, started time.Time) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}
	path := SessionLogPath(logsDir, name, started)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening session log %s: %w", path, err)
	}
	return f, nil
}
