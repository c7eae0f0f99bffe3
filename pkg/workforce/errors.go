package workforce

import "errors"

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("workforce: not found")

	// ErrMissingReference is returned when a submission lacks its job or foreman.
	ErrMissingReference = errors.New("workforce: missing required reference")

	// ErrInvalidShiftTime is returned for a start or end time that is not HH:MM.
	ErrInvalidShiftTime = errors.New("workforce: invalid shift time")

	// ErrMissingID is returned when saving a document without an id.
	ErrMissingID = errors.New("workforce: id is required")
)
