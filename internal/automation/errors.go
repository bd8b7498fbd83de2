package automation

import "errors"

var (
	// ErrQueueFull is returned by Tick when the proposal could not be queued.
	ErrQueueFull = errors.New("automation: queue full")

	// ErrAlreadyRunning is returned by Start on a running engine.
	ErrAlreadyRunning = errors.New("automation: already running")

	// ErrRunPending is returned by Tick when the winning rule's previous
	// proposal has not finished executing.
	ErrRunPending = errors.New("automation: previous run pending")
)
