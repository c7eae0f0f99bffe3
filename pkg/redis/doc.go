// Package redis connects to Redis and provides the distributed lease used by
// the scheduler so that each periodic job runs on one instance at a time.
//
// Configuration is described by Config, populated from the environment with
// github.com/caarlos0/env. An empty REDIS_URL leaves Redis disabled and the
// service falls back to a process-local lease.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	locker := redis.NewLocker(client, cfg.KeyPrefix)
//	token, ok, err := locker.Acquire(ctx, "scheduler:admin_digest", 5*time.Minute)
//
// Leases are plain keys set with NX and a TTL holding a random token. Release
// is a Lua compare-and-delete on that token.
package redis
