package automation

import (
	"time"

	"github.com/nerrad567/hearth/internal/executor"
	"github.com/nerrad567/hearth/internal/intent"
	"github.com/nerrad567/hearth/internal/state"
)

// Rule proposes actions from a point-in-time snapshot. Evaluate must not
// block or mutate the store.
type Rule interface {
	Name() string
	Evaluate(snap state.Snapshot, now time.Time) (Proposal, bool)
}

// OutcomeObserver is implemented by rules that track what happened to
// their proposals.
type OutcomeObserver interface {
	Observe(p Proposal, report executor.Report)
}

// Proposal is a rule's request to change device states.
type Proposal struct {
	Rule    string           `json:"rule"`
	Reason  string           `json:"reason"`
	Actions intent.ActionSet `json:"actions"`
	// Savings is the estimated Wh saved per device if its action applies.
	Savings map[string]float64 `json:"savings,omitempty"`
	// Mode is recorded on the store once the proposal applies.
	Mode intent.TemperatureMode `json:"mode,omitempty"`
}

// Failure describes one device that could not be changed.
type Failure struct {
	Device string `json:"device"`
	Reason string `json:"reason"`
}

// Run is the audit record of one executed proposal.
type Run struct {
	ID           string               `json:"id"`
	Rule         string               `json:"rule"`
	Reason       string               `json:"reason"`
	Status       executor.BatchStatus `json:"status"`
	ActionsTotal int                  `json:"actions_total"`
	Applied      int                  `json:"applied"`
	Skipped      int                  `json:"skipped"`
	Failed       int                  `json:"failed"`
	SavedWh      float64              `json:"saved_wh"`
	Failures     []Failure            `json:"failures,omitempty"`
	DurationMS   int                  `json:"duration_ms"`
	TriggeredAt  time.Time            `json:"triggered_at"`
}

// newRun builds the record for p from its execution report.
func newRun(p Proposal, report executor.Report, triggeredAt time.Time) Run {
	run := Run{
		ID:           report.ID,
		Rule:         p.Rule,
		Reason:       p.Reason,
		Status:       report.Status(),
		ActionsTotal: len(report.Outcomes),
		DurationMS:   int(report.Elapsed.Milliseconds()),
		TriggeredAt:  triggeredAt.UTC(),
	}
	for _, o := range report.Outcomes {
		switch o.Status {
		case executor.StatusApplied:
			run.Applied++
			run.SavedWh += p.Savings[o.Device]
		case executor.StatusSkipped:
			run.Skipped++
		case executor.StatusFailed:
			run.Failed++
			run.Failures = append(run.Failures, Failure{Device: o.Device, Reason: o.Reason})
		}
	}
	return run
}
