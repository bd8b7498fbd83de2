package hardware

import "context"

// Driver sets and reads digital output pins.
//
// Implementations must be safe for concurrent use and must return a
// *HardwareError on failure.
type Driver interface {
	SetPin(ctx context.Context, pin int, high bool) error
	ReadPin(ctx context.Context, pin int) (bool, error)
}

// Logger is the logging interface used by drivers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
