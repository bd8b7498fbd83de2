package language

import (
	"context"
	"time"
)

// Inference is one backend answer.
type Inference struct {
	// Text is the raw model output, expected to be a JSON object.
	Text string
	// EvalCount is the number of generated tokens.
	EvalCount int
	// EvalDuration is the time spent generating them.
	EvalDuration time.Duration
	// Elapsed is the wall-clock time of the whole call.
	Elapsed time.Duration
}

// TokensPerSecond returns the generation rate, or 0 when unknown.
func (i Inference) TokensPerSecond() float64 {
	if i.EvalCount == 0 || i.EvalDuration <= 0 {
		return 0
	}
	return float64(i.EvalCount) / i.EvalDuration.Seconds()
}

// Backend produces raw intent text for a prompt.
type Backend interface {
	Infer(ctx context.Context, prompt string) (Inference, error)
}

// Logger is the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
