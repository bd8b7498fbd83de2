package hardware

import (
	"errors"
	"fmt"
)

// Sentinel errors. A *HardwareError wraps one of these or the transport's
// own error.
var (
	ErrPinWrite      = errors.New("hardware: pin write failed")
	ErrPinRead       = errors.New("hardware: pin read failed")
	ErrTimeout       = errors.New("hardware: timed out")
	ErrInvalidPin    = errors.New("hardware: invalid pin")
	ErrUnknownLevel  = errors.New("hardware: pin level unknown")
	ErrBridgeOffline = errors.New("hardware: gpio bridge offline")
)

// Pin operations named in a HardwareError.
const (
	OpSet  = "set"
	OpRead = "read"
)

// HardwareError is the failure of one pin operation.
type HardwareError struct {
	Pin int
	Op  string
	Err error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("hardware: %s pin %d: %v", e.Op, e.Pin, e.Err)
}

func (e *HardwareError) Unwrap() error {
	return e.Err
}

func pinError(pin int, op string, err error) *HardwareError {
	return &HardwareError{Pin: pin, Op: op, Err: err}
}
