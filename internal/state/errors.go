package state

import "errors"

// Domain errors for the state package.
var (
	// ErrUnknownDevice is returned when applying state to a device the
	// registry does not know.
	ErrUnknownDevice = errors.New("state: unknown device")
)
