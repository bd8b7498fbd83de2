package language

import "errors"

var (
	// ErrBackendUnavailable is returned when the backend could not be reached
	// or did not answer in time.
	ErrBackendUnavailable = errors.New("language: backend unavailable")

	// ErrMalformedOutput is returned when the backend answered with something
	// other than a usable response envelope.
	ErrMalformedOutput = errors.New("language: malformed output")
)
