package audit

import (
	"context"
	"maps"
	"sync"
)

// MemoryStorage keeps entries in process memory.
// Suitable for tests and single-process development setups.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []Entry
	ids     map[string]struct{}
}

// NewMemoryStorage creates an empty in-memory audit storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{ids: make(map[string]struct{})}
}

// Store appends an entry.
func (s *MemoryStorage) Store(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[entry.ID]; ok {
		return ErrDuplicateEntry
	}
	entry.Metadata = maps.Clone(entry.Metadata)
	s.entries = append(s.entries, entry)
	s.ids[entry.ID] = struct{}{}
	return nil
}

// Query returns matching entries in insertion order.
func (s *MemoryStorage) Query(_ context.Context, c Criteria) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0)
	skipped := 0
	for _, e := range s.entries {
		if !c.Matches(e) {
			continue
		}
		if skipped < c.Offset {
			skipped++
			continue
		}
		e.Metadata = maps.Clone(e.Metadata)
		out = append(out, e)
		if c.Limit > 0 && len(out) == c.Limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored entries.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
