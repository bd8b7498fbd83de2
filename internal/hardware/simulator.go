package hardware

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Simulator is an in-memory Driver. Pins start low.
type Simulator struct {
	mu       sync.Mutex
	levels   map[int]bool
	failures map[int]error
	latency  time.Duration
	writes   int
	logger   Logger
}

// NewSimulator creates a simulator with every pin low.
func NewSimulator() *Simulator {
	return &Simulator{
		levels:   make(map[int]bool),
		failures: make(map[int]error),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger used for pin writes.
func (s *Simulator) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// SetLatency makes every operation take d, honouring the context deadline.
func (s *Simulator) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// FailPin makes every operation on pin fail with err. A nil err clears it.
func (s *Simulator) FailPin(pin int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, pin)
		return
	}
	s.failures[pin] = err
}

// SetPin drives pin high or low.
func (s *Simulator) SetPin(ctx context.Context, pin int, high bool) error {
	if pin <= 0 {
		return pinError(pin, OpSet, ErrInvalidPin)
	}
	if err := s.wait(ctx); err != nil {
		return pinError(pin, OpSet, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if err, ok := s.failures[pin]; ok {
		return pinError(pin, OpSet, fmt.Errorf("%w: %w", ErrPinWrite, err))
	}
	s.levels[pin] = high
	s.logger.Debug("pin set", "pin", pin, "high", high)
	return nil
}

// ReadPin returns the level last written to pin.
func (s *Simulator) ReadPin(ctx context.Context, pin int) (bool, error) {
	if pin <= 0 {
		return false, pinError(pin, OpRead, ErrInvalidPin)
	}
	if err := s.wait(ctx); err != nil {
		return false, pinError(pin, OpRead, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[pin]; ok {
		return false, pinError(pin, OpRead, fmt.Errorf("%w: %w", ErrPinRead, err))
	}
	return s.levels[pin], nil
}

// Writes returns how many SetPin calls reached the pins, failed ones included.
func (s *Simulator) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Simulator) wait(ctx context.Context) error {
	s.mu.Lock()
	d := s.latency
	s.mu.Unlock()

	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}
