package queue_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/crewnotify/pkg/queue"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateTask(ctx context.Context, task *queue.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockRepository) ClaimTask(ctx context.Context, workerID uuid.UUID, lockDuration time.Duration) (*queue.Task, error) {
	args := m.Called(ctx, workerID, lockDuration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Task), args.Error(1)
}

func (m *MockRepository) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

func (m *MockRepository) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string, retryAt time.Time) error {
	args := m.Called(ctx, taskID, errorMsg, retryAt)
	return args.Error(0)
}

func (m *MockRepository) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnqueuer(t *testing.T) {
	t.Parallel()

	t.Run("nil repository", func(t *testing.T) {
		t.Parallel()

		_, err := queue.NewEnqueuer(nil)
		assert.ErrorIs(t, err, queue.ErrRepositoryNil)
	})

	t.Run("schedules with delay", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
		repo := new(MockRepository)
		repo.On("CreateTask", mock.Anything, mock.MatchedBy(func(task *queue.Task) bool {
			return task.RecordID == "rec-1" &&
				task.ScheduledAt.Equal(now.Add(time.Minute)) &&
				task.MaxRetries == 5 &&
				task.Status == queue.TaskStatusPending
		})).Return(nil).Once()
		defer repo.AssertExpectations(t)

		enq, err := queue.NewEnqueuer(repo, queue.WithMaxRetries(5), queue.WithEnqueuerClock(func() time.Time { return now }))
		require.NoError(t, err)
		require.NoError(t, enq.Enqueue(context.Background(), "rec-1", time.Minute))
	})

	t.Run("empty record id", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(queue.NewMemoryStorage())
		require.NoError(t, err)
		assert.ErrorIs(t, enq.Enqueue(context.Background(), "", 0), queue.ErrEmptyRecordID)
	})

	t.Run("wraps storage error", func(t *testing.T) {
		t.Parallel()

		repo := new(MockRepository)
		repo.On("CreateTask", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)
		err = enq.Enqueue(context.Background(), "rec-1", 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestMemoryStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("claims earliest due task only", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		repo := queue.NewMemoryStorage(queue.WithStorageClock(clock))
		enq, err := queue.NewEnqueuer(repo, queue.WithEnqueuerClock(clock))
		require.NoError(t, err)

		require.NoError(t, enq.Enqueue(ctx, "later", time.Hour))
		require.NoError(t, enq.Enqueue(ctx, "now", 0))

		task, err := repo.ClaimTask(ctx, uuid.New(), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "now", task.RecordID)

		_, err = repo.ClaimTask(ctx, uuid.New(), time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("expired lock is claimable", func(t *testing.T) {
		t.Parallel()

		var now atomic.Int64
		now.Store(time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC).Unix())
		clock := func() time.Time { return time.Unix(now.Load(), 0) }
		repo := queue.NewMemoryStorage(queue.WithStorageClock(clock))
		enq, err := queue.NewEnqueuer(repo, queue.WithEnqueuerClock(clock))
		require.NoError(t, err)
		require.NoError(t, enq.Enqueue(ctx, "rec", 0))

		first, err := repo.ClaimTask(ctx, uuid.New(), time.Minute)
		require.NoError(t, err)

		now.Add(120)
		second, err := repo.ClaimTask(ctx, uuid.New(), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("fail reschedules then dead letters", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
		repo := queue.NewMemoryStorage(queue.WithStorageClock(func() time.Time { return now }))
		task := &queue.Task{ID: uuid.New(), RecordID: "rec", Status: queue.TaskStatusPending, MaxRetries: 0, ScheduledAt: now}
		require.NoError(t, repo.CreateTask(ctx, task))

		claimed, err := repo.ClaimTask(ctx, uuid.New(), time.Minute)
		require.NoError(t, err)
		require.NoError(t, repo.FailTask(ctx, claimed.ID, "boom", now.Add(time.Minute)))
		require.NoError(t, repo.MoveToDLQ(ctx, claimed.ID))

		dlq := repo.DeadLetters()
		require.Len(t, dlq, 1)
		assert.Equal(t, "rec", dlq[0].RecordID)
		assert.Equal(t, "boom", dlq[0].Error)
		assert.Equal(t, 0, repo.Pending())

		assert.ErrorIs(t, repo.CompleteTask(ctx, claimed.ID), queue.ErrTaskNotFound)
	})
}

func TestWorker(t *testing.T) {
	t.Parallel()

	t.Run("constructor validation", func(t *testing.T) {
		t.Parallel()

		_, err := queue.NewWorker(nil, func(context.Context, string) error { return nil })
		assert.ErrorIs(t, err, queue.ErrRepositoryNil)

		_, err = queue.NewWorker(queue.NewMemoryStorage(), nil)
		assert.ErrorIs(t, err, queue.ErrHandlerNil)
	})

	t.Run("processes tasks concurrently and completes them", func(t *testing.T) {
		t.Parallel()

		repo := queue.NewMemoryStorage()
		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		var (
			mu   sync.Mutex
			seen []string
		)
		w, err := queue.NewWorker(repo, func(_ context.Context, id string) error {
			mu.Lock()
			seen = append(seen, id)
			mu.Unlock()
			return nil
		}, queue.WithPullInterval(10*time.Millisecond), queue.WithMaxConcurrentTasks(3), queue.WithWorkerLogger(quietLogger()))
		require.NoError(t, err)

		for _, id := range []string{"a", "b", "c", "d"} {
			require.NoError(t, enq.Enqueue(context.Background(), id, 0))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, w.Start(ctx))
		assert.ErrorIs(t, w.Start(ctx), queue.ErrWorkerStarted)

		require.Eventually(t, func() bool { return repo.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)
		require.NoError(t, w.Stop())
		assert.ErrorIs(t, w.Stop(), queue.ErrWorkerNotStarted)

		mu.Lock()
		defer mu.Unlock()
		assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, seen)
	})

	t.Run("handler errors retry then dead letter", func(t *testing.T) {
		t.Parallel()

		repo := queue.NewMemoryStorage()
		enq, err := queue.NewEnqueuer(repo, queue.WithMaxRetries(2))
		require.NoError(t, err)

		var calls atomic.Int32
		w, err := queue.NewWorker(repo, func(context.Context, string) error {
			calls.Add(1)
			return errors.New("store unavailable")
		}, queue.WithPullInterval(5*time.Millisecond), queue.WithRetryBackoff(0), queue.WithWorkerLogger(quietLogger()))
		require.NoError(t, err)
		require.NoError(t, enq.Enqueue(context.Background(), "rec", 0))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, w.Start(ctx))

		require.Eventually(t, func() bool { return len(repo.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)
		require.NoError(t, w.Stop())

		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, "store unavailable", repo.DeadLetters()[0].Error)
	})

	t.Run("recovers from panic", func(t *testing.T) {
		t.Parallel()

		repo := queue.NewMemoryStorage()
		enq, err := queue.NewEnqueuer(repo, queue.WithMaxRetries(0))
		require.NoError(t, err)

		w, err := queue.NewWorker(repo, func(context.Context, string) error {
			panic("boom")
		}, queue.WithPullInterval(5*time.Millisecond), queue.WithWorkerLogger(quietLogger()))
		require.NoError(t, err)
		require.NoError(t, enq.Enqueue(context.Background(), "rec", 0))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, w.Start(ctx))

		require.Eventually(t, func() bool { return len(repo.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)
		require.NoError(t, w.Stop())
		assert.Contains(t, repo.DeadLetters()[0].Error, "panic in handler")
	})

	t.Run("run returns on context cancel", func(t *testing.T) {
		t.Parallel()

		w, err := queue.NewWorker(queue.NewMemoryStorage(), func(context.Context, string) error { return nil },
			queue.WithWorkerLogger(quietLogger()))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx)() }()
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not stop")
		}
	})
}
