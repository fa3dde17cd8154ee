package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/foothold/extension/internal/database"
	"gorm.io/gorm"
)

// GormBackend stores entries through gorm; it serves both SQLite and
// Postgres.
type GormBackend struct {
	db *gorm.DB

	// DumpPath, when set, receives a copy of an in-memory SQLite journal on
	// Close.
	DumpPath string
}

// NewGormBackend wraps an open connection. The backend owns db and closes
// it on Close.
func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

// Init migrates the journal table.
func (b *GormBackend) Init() error {
	if err := b.db.AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("failed to migrate journal schema: %w", err)
	}
	return nil
}

func (b *GormBackend) Close() error {
	var dumpErr error
	if b.DumpPath != "" {
		if err := os.MkdirAll(filepath.Dir(b.DumpPath), 0755); err != nil {
			dumpErr = err
		} else {
			dumpErr = database.DumpMemoryDBToDisk(b.db, b.DumpPath)
		}
	}
	return errors.Join(dumpErr, database.Close(b.db))
}

// Write inserts entries in one transaction.
func (b *GormBackend) Write(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entries).Error; err != nil {
			return fmt.Errorf("inserting %d journal entries: %w", len(entries), err)
		}
		return nil
	})
}

func (b *GormBackend) Entries(session string) ([]Entry, error) {
	var out []Entry
	err := b.db.Where("session = ?", session).Order("id ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	return out, nil
}

// DB returns the underlying connection.
func (b *GormBackend) DB() *gorm.DB { return b.db }
