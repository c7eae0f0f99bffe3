package events

import "errors"

var (
	// ErrInvalidEvent is returned by Publish for an event that fails Validate.
	ErrInvalidEvent = errors.New("events: invalid event")

	// ErrBusClosed is returned by Publish after the bus was stopped.
	ErrBusClosed = errors.New("events: bus is closed")

	// ErrBusStarted is returned when starting a running bus.
	ErrBusStarted = errors.New("events: bus already started")

	// ErrBusNotStarted is returned when stopping a bus that never started.
	ErrBusNotStarted = errors.New("events: bus not started")

	// ErrUnexpectedEvent is returned by a typed handler given another event type.
	ErrUnexpectedEvent = errors.New("events: unexpected event type")

	// ErrHandlerPanic wraps a recovered handler panic. Such events are not
	// redelivered.
	ErrHandlerPanic = errors.New("events: handler panic")

	// ErrEventDropped is returned by PublishWait for an event the bus gave up on.
	ErrEventDropped = errors.New("events: event dropped")

	// ErrShutdownTimeout is returned when handlers do not finish in time.
	ErrShutdownTimeout = errors.New("events: shutdown timeout exceeded")
)
