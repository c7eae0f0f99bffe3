package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/crewnotify/pkg/logger"
)

// Handler processes one record. A returned error means the attempt could not
// be carried out and the task should be retried.
type Handler func(ctx context.Context, recordID string) error

// Worker claims due tasks and runs them with bounded concurrency.
type Worker struct {
	repo     Repository
	handler  Handler
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopMu   sync.Mutex // guards stopping and wg.Add

	pullInterval time.Duration
	lockTimeout  time.Duration
	retryBackoff time.Duration
	logger       *slog.Logger
	now          func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a worker that passes claimed record ids to handler.
func NewWorker(repo Repository, handler Handler, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if handler == nil {
		return nil, ErrHandlerNil
	}

	options := &workerOptions{
		pullInterval:       time.Second,
		lockTimeout:        time.Minute,
		retryBackoff:       30 * time.Second,
		maxConcurrentTasks: 10,
		logger:             slog.Default(),
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:         repo,
		handler:      handler,
		workerID:     uuid.New(),
		sem:          make(chan struct{}, options.maxConcurrentTasks),
		pullInterval: options.pullInterval,
		lockTimeout:  options.lockTimeout,
		retryBackoff: options.retryBackoff,
		logger:       options.logger.With(logger.Component("queue")),
		now:          options.now,
	}, nil
}

// ID returns the worker identity used for task locks.
func (w *Worker) ID() string {
	return w.workerID.String()
}

// Start begins processing tasks in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerStarted
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)
	go w.run()

	w.logger.Info("worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Int("max_concurrent", cap(w.sem)))
	return nil
}

// Stop cancels polling and waits for running tasks to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.logger.Info("worker stopping, waiting for active tasks to complete",
		slog.String("worker_id", w.workerID.String()))
	w.wg.Wait()
	w.logger.Info("worker stopped", slog.String("worker_id", w.workerID.String()))
	return nil
}

// Run starts the worker and returns a function suitable for errgroup.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.fill()
		}
	}
}

// fill claims due tasks until the queue is drained or every slot is busy.
func (w *Worker) fill() {
	for {
		select {
		case w.sem <- struct{}{}:
		default:
			w.logger.Debug("all worker slots busy", slog.String("worker_id", w.workerID.String()))
			return
		}

		task, err := w.repo.ClaimTask(w.ctx, w.workerID, w.lockTimeout)
		if err != nil || task == nil {
			<-w.sem
			if err != nil && !errors.Is(err, ErrNoTaskToClaim) && w.ctx.Err() == nil {
				w.logger.Error("failed to claim task",
					slog.String("worker_id", w.workerID.String()),
					logger.Error(err))
			}
			return
		}

		w.stopMu.Lock()
		if w.stopping.Load() {
			w.stopMu.Unlock()
			<-w.sem
			return
		}
		w.wg.Add(1)
		w.stopMu.Unlock()

		go func() {
			defer w.wg.Done()
			defer func() { <-w.sem }()

			if err := w.processTask(task); err != nil {
				w.logger.Error("failed to process task",
					slog.String("task_id", task.ID.String()),
					logger.RecordID(task.RecordID),
					logger.Error(err))
			}
		}()
	}
}

func (w *Worker) processTask(task *Task) (retErr error) {
	start := w.now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				slog.String("task_id", task.ID.String()),
				logger.RecordID(task.RecordID),
				slog.Any("panic", r))
			_ = w.handleTaskFailure(task, retErr, w.now().Sub(start))
		}
	}()

	// Not tied to the worker context so shutdown lets running tasks finish.
	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	err := w.handler(ctx, task.RecordID)
	duration := w.now().Sub(start)
	if err != nil {
		return w.handleTaskFailure(task, err, duration)
	}

	// Completing uses a fresh context for the same reason.
	if err := w.repo.CompleteTask(context.Background(), task.ID); err != nil {
		return fmt.Errorf("failed to mark task %s as completed: %w", task.ID, err)
	}
	w.logger.Debug("task completed",
		slog.String("task_id", task.ID.String()),
		logger.RecordID(task.RecordID),
		logger.Duration(duration))
	return nil
}

// handleTaskFailure records the error and either schedules a retry with a
// linear backoff or, after MaxRetries, moves the task to the dead letter list.
func (w *Worker) handleTaskFailure(task *Task, execErr error, duration time.Duration) error {
	ctx := context.Background()
	w.logger.Warn("task failed",
		slog.String("task_id", task.ID.String()),
		logger.RecordID(task.RecordID),
		slog.Int("retry_count", task.RetryCount),
		slog.Int("max_retries", task.MaxRetries),
		logger.Duration(duration),
		logger.Error(execErr))

	retryAt := w.now().Add(time.Duration(task.RetryCount+1) * w.retryBackoff)
	if err := w.repo.FailTask(ctx, task.ID, execErr.Error(), retryAt); err != nil {
		return fmt.Errorf("failed to update task %s status to failed: %w", task.ID, err)
	}

	if task.RetryCount >= task.MaxRetries {
		if err := w.repo.MoveToDLQ(ctx, task.ID); err != nil {
			return fmt.Errorf("failed to move task %s to DLQ after max retries: %w", task.ID, err)
		}
		w.logger.Warn("task moved to dead letter queue",
			slog.String("task_id", task.ID.String()),
			logger.RecordID(task.RecordID))
	}
	return nil
}
