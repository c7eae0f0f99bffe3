package audit

import "errors"

var (
	// ErrStorageNotAvailable indicates the storage backend is unavailable
	ErrStorageNotAvailable = errors.New("audit: storage backend is unavailable")

	// ErrEntryValidation indicates entry validation failed
	ErrEntryValidation = errors.New("audit: entry validation failed")

	// ErrDuplicateEntry is returned when an entry with the same ID already exists.
	// Entries are append-only and never overwritten.
	ErrDuplicateEntry = errors.New("audit: duplicate entry")
)
