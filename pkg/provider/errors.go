package provider

import "errors"

// Error classes for provider failures. Wrap the underlying cause with
// Transient or Permanent, or join it with one of these, so callers can decide
// with errors.Is.
var (
	// ErrTransient marks failures worth retrying: timeouts, outages, throttling.
	ErrTransient = errors.New("provider: transient failure")

	// ErrPermanent marks failures that will not succeed on retry:
	// invalid destination, rejected template.
	ErrPermanent = errors.New("provider: permanent failure")

	// ErrNotConfigured marks a channel without credentials. It is not a failure.
	ErrNotConfigured = errors.New("provider: not configured")
)
