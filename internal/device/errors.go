package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrInvalidSource) {
//	    // handle bad input
//	}
var (
	// ErrUnknownCommand is returned when a command kind has no reduction.
	ErrUnknownCommand = errors.New("device: unknown command")

	// ErrInvalidColor is returned when a COLOR command carries no usable value.
	ErrInvalidColor = errors.New("device: invalid color value")

	// ErrInvalidSource is returned when a history entry has no source.
	ErrInvalidSource = errors.New("device: invalid history source")
)
