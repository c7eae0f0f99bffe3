package queue

import "errors"

var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("queue: repository cannot be nil")

	// ErrHandlerNil is returned when a worker is built without a handler
	ErrHandlerNil = errors.New("queue: handler cannot be nil")

	// ErrEmptyRecordID is returned when enqueuing without a record id
	ErrEmptyRecordID = errors.New("queue: record id is required")

	// ErrNoTaskToClaim is returned by ClaimTask when nothing is due
	ErrNoTaskToClaim = errors.New("queue: no task to claim")

	// ErrTaskNotFound is returned for an unknown task id
	ErrTaskNotFound = errors.New("queue: task not found")

	// ErrTaskNotProcessing is returned when completing or failing a task that is not claimed
	ErrTaskNotProcessing = errors.New("queue: task is not processing")

	// ErrWorkerStarted is returned by Start on a running worker
	ErrWorkerStarted = errors.New("queue: worker already started")

	// ErrWorkerNotStarted is returned by Stop on an idle worker
	ErrWorkerNotStarted = errors.New("queue: worker not started")
)
