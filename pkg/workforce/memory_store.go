package workforce

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu           sync.RWMutex
	submissions  map[string]Submission
	orders       map[string]MaterialOrder
	users        map[string]User
	certificates map[string]Certificate
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		submissions:  make(map[string]Submission),
		orders:       make(map[string]MaterialOrder),
		users:        make(map[string]User),
		certificates: make(map[string]Certificate),
	}
}

func (s *MemoryStore) GetSubmission(_ context.Context, id string) (Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[id]
	if !ok {
		return Submission{}, ErrNotFound
	}
	return sub.Clone(), nil
}

func (s *MemoryStore) SaveSubmission(_ context.Context, sub Submission) error {
	if sub.ID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submissions[sub.ID] = sub.Clone()
	return nil
}

func (s *MemoryStore) ListReminderCandidates(_ context.Context, cutoff time.Time) ([]Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Submission{}
	for _, sub := range s.submissions {
		if sub.Status != StatusDraft || sub.RemindedAt != nil {
			continue
		}
		since := sub.CreatedAt
		if sub.SubmittedAt != nil {
			since = *sub.SubmittedAt
		}
		if !since.IsZero() && since.Before(cutoff) {
			out = append(out, sub.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) MarkReminded(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[id]
	if !ok {
		return false, ErrNotFound
	}
	if sub.RemindedAt != nil {
		return false, nil
	}
	sub.RemindedAt = &at
	s.submissions[id] = sub
	return true, nil
}

func (s *MemoryStore) CountSubmissions(_ context.Context, status SubmissionStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sub := range s.submissions {
		if sub.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) GetMaterialOrder(_ context.Context, id string) (MaterialOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return MaterialOrder{}, ErrNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryStore) SaveMaterialOrder(_ context.Context, o MaterialOrder) error {
	if o.ID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *MemoryStore) CountMaterialOrders(_ context.Context, status OrderStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, o := range s.orders {
		if o.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) SaveUser(_ context.Context, u User) error {
	if u.ID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = u
	return nil
}

// ListUsersByRole returns matching users ordered by id.
func (s *MemoryStore) ListUsersByRole(_ context.Context, roles ...Role) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []User{}
	for _, u := range s.users {
		if slices.Contains(roles, u.Role) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SaveCertificate(_ context.Context, c Certificate) error {
	if c.ID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c.NotifiedThresholds = slices.Clone(c.NotifiedThresholds)
	s.certificates[c.ID] = c
	return nil
}

func (s *MemoryStore) ListExpiringCertificates(_ context.Context, from, until time.Time) ([]Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Certificate{}
	for _, c := range s.certificates {
		if c.Expires.After(from) && !c.Expires.After(until) {
			c.NotifiedThresholds = slices.Clone(c.NotifiedThresholds)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) AddNotifiedThresholds(_ context.Context, id string, days ...int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.certificates[id]
	if !ok {
		return ErrNotFound
	}
	for _, d := range days {
		if !slices.Contains(c.NotifiedThresholds, d) {
			c.NotifiedThresholds = append(c.NotifiedThresholds, d)
		}
	}
	s.certificates[id] = c
	return nil
}
