package notifications

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage. Suitable for development and testing.
type MemoryStorage struct {
	records map[string]Record
	mu      sync.RWMutex
	now     func() time.Time
}

// MemoryOption configures a MemoryStorage.
type MemoryOption func(*MemoryStorage)

// WithMemoryClock overrides the time source used to evaluate claims.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStorage) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	s := &MemoryStorage{
		records: make(map[string]Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStorage) Create(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return ErrDuplicate
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStorage) Claim(_ context.Context, id, owner string, until time.Time) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	switch {
	case !ok:
		return Record{}, ErrNotFound
	case rec.State.Terminal():
		return rec.Clone(), ErrTerminal
	case rec.Locked(owner, s.now()):
		return rec.Clone(), ErrLocked
	}

	rec.LockedBy = owner
	rec.LockedUntil = &until
	s.records[id] = rec
	return rec.Clone(), nil
}

func (s *MemoryStorage) Save(_ context.Context, rec Record, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[rec.ID]
	switch {
	case !ok:
		return ErrNotFound
	case cur.State.Terminal(), cur.LockedBy != owner:
		return ErrLockLost
	}

	rec = rec.Clone()
	rec.LockedBy = ""
	rec.LockedUntil = nil
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStorage) ListDue(_ context.Context, before time.Time, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	out := []Record{}
	for _, r := range s.records {
		if r.State != StatePending || r.NextAttemptAt.After(before) || r.Locked("", now) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStorage) List(_ context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Record{}
	for _, r := range s.records {
		if f.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Offset >= len(out) {
		return []Record{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
