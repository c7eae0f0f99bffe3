package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker hands out exclusive, expiring leases so that a job runs on one
// instance at a time.
type Locker interface {
	// Acquire takes the lease for key. ok is false when someone else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release gives up the lease if token still owns it.
	Release(ctx context.Context, key, token string) error
}

type lease struct {
	token   string
	expires time.Time
}

// MemoryLocker is a process-local Locker for single-instance deployments and
// tests.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

// NewMemoryLocker creates an empty MemoryLocker. A nil now uses time.Now.
func NewMemoryLocker(now func() time.Time) *MemoryLocker {
	if now == nil {
		now = time.Now
	}
	return &MemoryLocker{leases: make(map[string]lease), now: now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.leases[key]; ok && cur.expires.After(now) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.leases[key] = lease{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.leases[key]; ok && cur.token == token {
		delete(l.leases, key)
	}
	return nil
}
