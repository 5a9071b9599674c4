package cache

import (
	"sync"
	"time"

	"github.com/aristath/macrolens/internal/domain"
)

// Entry is a stored table with its creation time.
type Entry struct {
	Table     *domain.Table
	CreatedAt time.Time
}

// Store persists cache entries. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the entry for key; ok is false when there is none.
	Get(key string) (e Entry, ok bool, err error)
	// Put inserts or replaces the entry for key.
	Put(key string, e Entry) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// DeleteExpired removes entries created at or before cutoff.
	DeleteExpired(cutoff time.Time) (int64, error)
	// Len returns the number of entries.
	Len() (int, error)
}

// MemoryStore keeps entries in a map. Get returns the stored table itself, so
// repeated reads share one immutable table.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) Put(key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) DeleteExpired(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, e := range s.entries {
		if !e.CreatedAt.After(cutoff) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
