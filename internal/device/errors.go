package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrDuplicateKey) {
//	    // handle collision
//	}
var (
	// ErrDeviceNotFound is returned when a device name does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDuplicateKey is returned when a name, pin or alias is already taken.
	ErrDuplicateKey = errors.New("device: duplicate key")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidName is returned when a device name is empty or malformed.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidPin is returned when a pin is not a positive integer.
	ErrInvalidPin = errors.New("device: invalid pin")

	// ErrInvalidType is returned when a device type is not recognised.
	ErrInvalidType = errors.New("device: invalid type")
)

// DuplicateKeyError describes which key collided during registration.
type DuplicateKeyError struct {
	// Field is "name", "pin" or "alias".
	Field string
	Key   string
	// Owner is the already registered device holding the key.
	Owner string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("device: duplicate %s %q (held by %s)", e.Field, e.Key, e.Owner)
}

func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateKey
}
