package executor

import (
	"fmt"
	"strings"
	"time"
)

// Status is one device's outcome.
type Status string

const (
	StatusApplied Status = "applied"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// BatchStatus summarises a whole report.
type BatchStatus string

const (
	BatchCompleted BatchStatus = "completed"
	BatchPartial   BatchStatus = "partial"
	BatchFailed    BatchStatus = "failed"
	BatchEmpty     BatchStatus = "empty"
)

// Outcome is the result for one action.
type Outcome struct {
	Device string `json:"device"`
	On     bool   `json:"on"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// Report lists per-device outcomes in execution order.
type Report struct {
	ID       string        `json:"id"`
	Source   string        `json:"source"`
	Outcomes []Outcome     `json:"outcomes"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// Applied returns the outcomes that committed a change.
func (r Report) Applied() []Outcome { return r.filter(StatusApplied) }

// Skipped returns the outcomes that needed no change.
func (r Report) Skipped() []Outcome { return r.filter(StatusSkipped) }

// Failed returns the outcomes whose hardware write failed.
func (r Report) Failed() []Outcome { return r.filter(StatusFailed) }

func (r Report) filter(s Status) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == s {
			out = append(out, o)
		}
	}
	return out
}

// Status classifies the batch.
func (r Report) Status() BatchStatus {
	failed := len(r.Failed())
	switch {
	case len(r.Outcomes) == 0:
		return BatchEmpty
	case failed == 0:
		return BatchCompleted
	case failed == len(r.Outcomes):
		return BatchFailed
	default:
		return BatchPartial
	}
}

// Summary renders the report for a user, e.g.
// "turned on office_light; no change needed for office_fan; failed: heater (timed out)".
func (r Report) Summary() string {
	var on, off, same, failed []string
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusApplied:
			if o.On {
				on = append(on, o.Device)
			} else {
				off = append(off, o.Device)
			}
		case StatusSkipped:
			same = append(same, o.Device)
		case StatusFailed:
			failed = append(failed, fmt.Sprintf("%s (%s)", o.Device, o.Reason))
		}
	}

	var parts []string
	if len(on) > 0 {
		parts = append(parts, "turned on "+strings.Join(on, ", "))
	}
	if len(off) > 0 {
		parts = append(parts, "turned off "+strings.Join(off, ", "))
	}
	if len(same) > 0 {
		parts = append(parts, "no change needed for "+strings.Join(same, ", "))
	}
	if len(failed) > 0 {
		parts = append(parts, "failed: "+strings.Join(failed, ", "))
	}
	if len(parts) == 0 {
		return "nothing to do"
	}
	return strings.Join(parts, "; ")
}
