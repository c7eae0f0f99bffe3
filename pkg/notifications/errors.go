package notifications

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("notifications: record not found")

	// ErrDuplicate is returned by Create when a record with the same id exists.
	ErrDuplicate = errors.New("notifications: record already exists")

	// ErrTerminal is returned by Claim for a record that already reached a
	// terminal state.
	ErrTerminal = errors.New("notifications: record is terminal")

	// ErrLocked is returned by Claim while another owner holds the record.
	ErrLocked = errors.New("notifications: record is claimed by another worker")

	// ErrLockLost is returned by Save when the caller no longer owns the claim.
	ErrLockLost = errors.New("notifications: claim lost")

	// ErrInvalidTransition is returned when a state change is not allowed.
	ErrInvalidTransition = errors.New("notifications: invalid state transition")

	// ErrInvalidIntent is returned for an intent missing its recipient or template.
	ErrInvalidIntent = errors.New("notifications: invalid intent")
)
