// Package scene holds named device-state presets ("movie_night", "away").
//
// A scene maps device names to desired on/off states. Every referenced
// device must exist in the device registry when the scene is registered;
// if a device is removed later, resolving the scene fails with an unknown
// device error instead of silently skipping it.
package scene
