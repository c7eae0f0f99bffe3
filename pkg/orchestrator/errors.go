package orchestrator

import "errors"

var (
	// ErrSaveEntity is returned when a recalculated or rejected entity could
	// not be persisted.
	ErrSaveEntity = errors.New("orchestrator: failed to save entity")

	// ErrRecipients is returned when recipients could not be loaded.
	ErrRecipients = errors.New("orchestrator: failed to load recipients")
)
