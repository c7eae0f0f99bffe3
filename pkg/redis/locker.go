package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds the caller's token,
// so a holder whose lease expired cannot release someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker grants leases shared by every instance connected to the same Redis.
type Locker struct {
	client redis.UniversalClient
	prefix string
}

// NewLocker creates a locker. Keys are stored as prefix+"lock:"+key.
func NewLocker(client redis.UniversalClient, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

func (l *Locker) key(k string) string {
	return l.prefix + "lock:" + k
}

// Acquire sets the key with SET NX PX. ok is false when the lease is held.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		return "", false, ErrInvalidTTL
	}
	token := uuid.NewString()
	err := l.client.SetArgs(ctx, l.key(key), token, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("acquire %s: %w", key, err)
	}
	return token, true, nil
}

// Release drops the lease if token still owns it. Releasing a lease that has
// expired or moved on is not an error.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(key)}, token).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
