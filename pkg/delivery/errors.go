package delivery

import "errors"

var (
	// ErrCircuitOpen is recorded as the cause of a retry when the channel's
	// provider has been failing and sends are paused.
	ErrCircuitOpen = errors.New("delivery: channel circuit open")

	// ErrUserLookup is returned when the recipient could not be loaded.
	ErrUserLookup = errors.New("delivery: failed to load recipient")

	// ErrSaveRecord is returned when the outcome could not be persisted.
	ErrSaveRecord = errors.New("delivery: failed to save record")
)
