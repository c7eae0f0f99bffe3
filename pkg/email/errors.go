package email

import "errors"

var (
	// ErrFailedToSendEmail wraps every delivery failure from this package.
	ErrFailedToSendEmail = errors.New("email: failed to send")

	// ErrInvalidRecipient is returned for a destination that is not an email address.
	ErrInvalidRecipient = errors.New("email: invalid recipient address")

	// ErrConnectivity is returned by CheckConnectivity. The joined error keeps
	// the server's diagnostic text unchanged.
	ErrConnectivity = errors.New("email: connectivity check failed")

	// ErrInvalidSettings is returned by CheckConnectivity for missing host or port.
	ErrInvalidSettings = errors.New("email: host and port are required")
)
