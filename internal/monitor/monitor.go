package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/foothold/extension/internal/logging"
	"github.com/foothold/extension/pkg/core"
)

// DebugLines renders the on-screen debug overlay for a status snapshot.
func DebugLines(st core.Status) []string {
	lines := make([]string, 0, len(core.Categories)+3)
	for _, cat := range core.Categories {
		ps := st.Pool(cat)
		lines = append(lines, fmt.Sprintf("%s: %d active, %d pooled", categoryLabels[cat], ps.Active, ps.Pool))
	}
	return append(lines,
		fmt.Sprintf("Alpha: %.2f", st.Alpha),
		fmt.Sprintf("Scanning: %t", st.Scanning),
		fmt.Sprintf("Mode: %s (%s)", st.Mode, st.State),
	)
}

var categoryLabels = map[core.Category]string{
	core.Standable:    "Standable",
	core.NonStandable: "NonStandable",
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	// Status returns the latest published controller snapshot. It is called
	// from the monitor goroutine and must be safe for concurrent use.
	Status     func() core.Status
	LogManager *logging.SlogManager
	Path       string
	Interval   time.Duration
}

// Service periodically writes the controller status to a file
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Render returns the status file content for one snapshot: the debug lines
// followed by the snapshot as indented JSON.
func Render(st core.Status) []string {
	out := DebugLines(st)
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	return append(out, string(raw))
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.deps.Path), 0o755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("creating status directory: %w", err)
	}
	statusFile, err := os.Create(s.deps.Path)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("creating status file: %w", err)
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer statusFile.Close()
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.logger()
		logger.Debug("Starting status monitor goroutine", "path", s.deps.Path, "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := writeStatus(statusFile, Render(s.deps.Status())); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for its last write.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}

func (s *Service) logger() *slog.Logger {
	if s.deps.LogManager != nil {
		return s.deps.LogManager.Logger()
	}
	return slog.Default()
}

func writeStatus(f *os.File, lines []string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}
