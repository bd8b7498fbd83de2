package scene

import "errors"

// Domain errors for the scene package.
var (
	// ErrSceneNotFound is returned when a scene name does not exist.
	ErrSceneNotFound = errors.New("scene: not found")

	// ErrSceneExists is returned when registering a name that is taken.
	ErrSceneExists = errors.New("scene: already exists")

	// ErrInvalidScene is returned when scene validation fails.
	ErrInvalidScene = errors.New("scene: invalid")

	// ErrUnknownDevice is returned when a scene references a device that is
	// not registered.
	ErrUnknownDevice = errors.New("scene: unknown device")
)
