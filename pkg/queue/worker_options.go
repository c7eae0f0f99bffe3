package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	pullInterval       time.Duration
	lockTimeout        time.Duration
	retryBackoff       time.Duration
	maxConcurrentTasks int
	logger             *slog.Logger
	now                func() time.Time
}

// WithPullInterval sets how often the worker checks for due tasks
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout sets the lock duration for claimed tasks and the handler timeout
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithRetryBackoff sets the base delay between task retries
func WithRetryBackoff(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d >= 0 {
			o.retryBackoff = d
		}
	}
}

// WithMaxConcurrentTasks sets the maximum number of concurrent tasks
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrentTasks = n
		}
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWorkerClock overrides the time source
func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(o *workerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// FromConfig maps a Config onto worker options.
func FromConfig(cfg Config) []WorkerOption {
	return []WorkerOption{
		WithPullInterval(cfg.PollInterval),
		WithLockTimeout(cfg.LockTimeout),
		WithRetryBackoff(cfg.RetryBackoff),
		WithMaxConcurrentTasks(cfg.MaxConcurrentTasks),
	}
}
