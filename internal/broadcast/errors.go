package broadcast

import "errors"

// Domain errors for the broadcast package.
var (
	// ErrSinkOverflow is returned by a QueuedSink with the disconnect policy
	// when its queue is full. The broadcaster then unregisters it.
	ErrSinkOverflow = errors.New("broadcast: sink queue overflow")

	// ErrSinkClosed is returned when delivering to a sink that was closed.
	ErrSinkClosed = errors.New("broadcast: sink closed")

	// ErrInvalidPolicy is returned for an unknown overflow policy.
	ErrInvalidPolicy = errors.New("broadcast: invalid overflow policy")
)
