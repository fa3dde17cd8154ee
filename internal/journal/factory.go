package journal

import (
	"fmt"

	"github.com/foothold/extension/internal/config"
	"github.com/foothold/extension/internal/database"
	"github.com/rs/zerolog"
)

// NewBackend creates a journal backend based on configuration. A postgres
// journal that cannot connect falls back to SQLite.
func NewBackend(cfg config.JournalConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryBackend(), nil
	case "sqlite":
		db, err := database.GetSqliteDB(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite journal: %w", err)
		}
		b := NewGormBackend(db)
		if cfg.SQLitePath == "" {
			b.DumpPath = cfg.DumpPath
		}
		return b, nil
	case "postgres":
		m := database.NewManager(log)
		if err := m.Connect(cfg); err != nil {
			return nil, err
		}
		b := NewGormBackend(m.DB)
		if m.ShouldSaveLocal && cfg.SQLitePath == "" {
			b.DumpPath = cfg.DumpPath
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}
}
