package api

import "errors"

var (
	// ErrInvalidQuery is returned for a malformed list query parameter.
	ErrInvalidQuery = errors.New("api: invalid query parameter")

	// ErrInvalidBody is returned for a request body that cannot be decoded.
	ErrInvalidBody = errors.New("api: invalid request body")
)
