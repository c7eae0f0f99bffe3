package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists queue tasks.
type Repository interface {
	// CreateTask stores a new pending task.
	CreateTask(ctx context.Context, task *Task) error

	// ClaimTask atomically claims the earliest due task.
	ClaimTask(ctx context.Context, workerID uuid.UUID, lockDuration time.Duration) (*Task, error)

	// CompleteTask marks a claimed task as completed.
	CompleteTask(ctx context.Context, taskID uuid.UUID) error

	// FailTask records the error, increments the retry count and makes the
	// task due again at retryAt.
	FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string, retryAt time.Time) error

	// MoveToDLQ moves a task to the dead letter list.
	MoveToDLQ(ctx context.Context, taskID uuid.UUID) error
}
