package intent

import (
	"errors"
	"fmt"
)

// Domain errors for the intent package.
var (
	// ErrUnknownDevice is returned when an intent names a device that is not
	// registered (it may have been removed since the intent was cached).
	ErrUnknownDevice = errors.New("intent: unknown device")

	// ErrUnknownScene is returned when an intent names a missing scene.
	ErrUnknownScene = errors.New("intent: unknown scene")

	// ErrAmbiguousCommand is returned when no device could be worked out
	// from the command text.
	ErrAmbiguousCommand = errors.New("intent: ambiguous command")

	// ErrMalformed is returned by Parse when no intent object can be read.
	ErrMalformed = errors.New("intent: malformed output")
)

// UnknownDeviceError names the device that could not be found.
type UnknownDeviceError struct {
	Name string
}

func (e *UnknownDeviceError) Error() string {
	return fmt.Sprintf("intent: unknown device %q", e.Name)
}

func (e *UnknownDeviceError) Unwrap() error { return ErrUnknownDevice }

// UnknownSceneError names the scene that could not be found.
type UnknownSceneError struct {
	Name string
}

func (e *UnknownSceneError) Error() string {
	return fmt.Sprintf("intent: unknown scene %q", e.Name)
}

func (e *UnknownSceneError) Unwrap() error { return ErrUnknownScene }

// AmbiguousCommandError carries the text that resolved to nothing.
type AmbiguousCommandError struct {
	Text string
}

func (e *AmbiguousCommandError) Error() string {
	return fmt.Sprintf("intent: ambiguous command %q", e.Text)
}

func (e *AmbiguousCommandError) Unwrap() error { return ErrAmbiguousCommand }
