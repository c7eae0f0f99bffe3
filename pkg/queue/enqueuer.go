package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enqueuer adds delivery tasks to the queue.
type Enqueuer struct {
	repo       Repository
	maxRetries int
	now        func() time.Time
}

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*Enqueuer)

// WithMaxRetries sets how many times a task is retried on handler errors (0-10).
func WithMaxRetries(n int) EnqueuerOption {
	return func(e *Enqueuer) {
		if n >= 0 && n <= 10 {
			e.maxRetries = n
		}
	}
}

// WithEnqueuerClock overrides the time source.
func WithEnqueuerClock(now func() time.Time) EnqueuerOption {
	return func(e *Enqueuer) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEnqueuer creates a new Enqueuer.
func NewEnqueuer(repo Repository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	e := &Enqueuer{repo: repo, maxRetries: 3, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enqueue schedules delivery of the record after delay.
func (e *Enqueuer) Enqueue(ctx context.Context, recordID string, delay time.Duration) error {
	if recordID == "" {
		return ErrEmptyRecordID
	}

	now := e.now()
	task := &Task{
		ID:          uuid.New(),
		RecordID:    recordID,
		Status:      TaskStatusPending,
		MaxRetries:  e.maxRetries,
		ScheduledAt: now.Add(max(0, delay)),
		CreatedAt:   now,
	}
	if err := e.repo.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue record %q: %w", recordID, err)
	}
	return nil
}
