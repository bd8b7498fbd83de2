package pipeline

import (
	"sync"
	"time"

	"github.com/nerrad567/hearth/internal/language"
	"github.com/nerrad567/hearth/internal/state"
)

// perfTracker accumulates inference and command counters.
type perfTracker struct {
	mu             sync.Mutex
	inferences     int64
	inferenceTotal time.Duration
	evalTokens     int64
	evalDuration   time.Duration
	commands       int64
}

func (t *perfTracker) command() {
	t.mu.Lock()
	t.commands++
	t.mu.Unlock()
}

// inference records one backend call. Calls that failed still count
// toward latency when they took time.
func (t *perfTracker) inference(inf language.Inference, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inferences++
	t.inferenceTotal += elapsed
	if inf.EvalCount > 0 && inf.EvalDuration > 0 {
		t.evalTokens += int64(inf.EvalCount)
		t.evalDuration += inf.EvalDuration
	}
}

// summary combines the counters with the store's context.
func (t *perfTracker) summary(c state.Context) Perf {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := Perf{
		CacheHitRate:       c.Cache.HitRate * 100,
		TotalCommands:      t.commands,
		AutomationTriggers: c.AutomationTriggers,
		PowerWatts:         c.PowerWatts,
		EnergyUsedKWh:      c.EnergyWh / 1000,
		EnergySavedKWh:     c.EnergySavedWh / 1000,
	}
	if t.inferences > 0 {
		p.AvgInferenceMS = float64(t.inferenceTotal) / float64(t.inferences) / float64(time.Millisecond)
	}
	if t.evalDuration > 0 {
		p.TokensPerSecond = float64(t.evalTokens) / t.evalDuration.Seconds()
	}
	return p
}
