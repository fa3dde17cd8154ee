package journal

import (
	"slices"
	"sync"
	"time"
)

// MemoryBackend keeps entries in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries []Entry
	nextID  uint
}

// NewMemoryBackend creates an empty in-memory journal.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Init initializes the backend
func (b *MemoryBackend) Init() error { return nil }

// Close cleans up resources
func (b *MemoryBackend) Close() error { return nil }

func (b *MemoryBackend) Write(entries []Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	for i := range entries {
		b.nextID++
		entries[i].ID = b.nextID
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
	}
	b.entries = append(b.entries, entries...)
	return nil
}

func (b *MemoryBackend) Entries(session string) ([]Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Entry
	for _, e := range b.entries {
		if e.Session == session {
			out = append(out, e)
		}
	}
	return slices.Clip(out), nil
}
