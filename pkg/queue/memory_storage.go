package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Repository for tests and single-instance use.
// Tasks held here are lost on restart; records left pending are recovered by
// the pending sweep.
type MemoryStorage struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*Task
	dlq   []DeadLetter
	now   func() time.Time
}

// MemoryStorageOption configures a MemoryStorage.
type MemoryStorageOption func(*MemoryStorage)

// WithStorageClock overrides the time source.
func WithStorageClock(now func() time.Time) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		tasks: make(map[uuid.UUID]*Task),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

func (ms *MemoryStorage) CreateTask(_ context.Context, task *Task) error {
	if task == nil {
		return errors.New("queue: task cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return errors.New("queue: task with this id already exists")
	}
	taskCopy := *task
	ms.tasks[task.ID] = &taskCopy
	return nil
}

// ClaimTask picks the earliest due task. Processing tasks whose lock expired
// are claimable again, which recovers work from a crashed worker.
func (ms *MemoryStorage) ClaimTask(_ context.Context, workerID uuid.UUID, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	var best *Task
	for _, task := range ms.tasks {
		switch task.Status {
		case TaskStatusPending:
			if task.ScheduledAt.After(now) {
				continue
			}
		case TaskStatusProcessing:
			if task.LockedUntil == nil || task.LockedUntil.After(now) {
				continue
			}
		default:
			continue
		}
		if best == nil || task.ScheduledAt.Before(best.ScheduledAt) {
			best = task
		}
	}
	if best == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.Status = TaskStatusProcessing
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID

	taskCopy := *best
	return &taskCopy, nil
}

// CompleteTask drops the task; completed tasks are not kept in memory.
func (ms *MemoryStorage) CompleteTask(_ context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, err := ms.processing(taskID); err != nil {
		return err
	}
	delete(ms.tasks, taskID)
	return nil
}

func (ms *MemoryStorage) FailTask(_ context.Context, taskID uuid.UUID, errorMsg string, retryAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processing(taskID)
	if err != nil {
		return err
	}
	task.RetryCount++
	task.Error = errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	if task.RetryCount > task.MaxRetries {
		task.Status = TaskStatusFailed
		return nil
	}
	task.Status = TaskStatusPending
	task.ScheduledAt = retryAt
	return nil
}

func (ms *MemoryStorage) MoveToDLQ(_ context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return ErrTaskNotFound
	}
	ms.dlq = append(ms.dlq, DeadLetter{
		ID:         uuid.New(),
		TaskID:     task.ID,
		RecordID:   task.RecordID,
		Error:      task.Error,
		RetryCount: task.RetryCount,
		FailedAt:   ms.now(),
	})
	delete(ms.tasks, taskID)
	return nil
}

// DeadLetters returns a copy of the dead letter list.
func (ms *MemoryStorage) DeadLetters() []DeadLetter {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]DeadLetter(nil), ms.dlq...)
}

// Pending returns the number of tasks waiting or running.
func (ms *MemoryStorage) Pending() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.tasks)
}

func (ms *MemoryStorage) processing(taskID uuid.UUID) (*Task, error) {
	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, ErrTaskNotFound
	}
	if task.Status != TaskStatusProcessing {
		return nil, ErrTaskNotProcessing
	}
	return task, nil
}
