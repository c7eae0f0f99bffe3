package hours

import "errors"

// ErrInvalidClock is returned when a time is not a valid HH:MM clock value.
var ErrInvalidClock = errors.New("hours: invalid clock time")
