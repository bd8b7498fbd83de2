package automation

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/hearth/internal/device"
	"github.com/nerrad567/hearth/internal/executor"
	"github.com/nerrad567/hearth/internal/intent"
	"github.com/nerrad567/hearth/internal/state"
)

// Rule names.
const (
	RuleIdle    = "energy_saving"
	RuleComfort = "temperature_control"
)

// DefaultExemptTypes are never switched off by the idle rule.
var DefaultExemptTypes = []device.Type{device.TypeDoorLock, device.TypeAlarm, device.TypeSensor}

// sharedRoom has no occupancy sensor; its devices are never idle.
const sharedRoom = "general"

// IdleRule turns off devices that have been on longer than the threshold
// in a room without an occupancy signal.
//
// Each idle episode (a continuous on-period, identified by the device's
// ChangedAt) is proposed once. A failed or dropped turn-off is released
// through Observe so the next tick retries it.
type IdleRule struct {
	threshold time.Duration
	exempt    map[string]bool

	mu    sync.Mutex
	fired map[string]time.Time // device -> ChangedAt of the proposed episode
}

// NewIdleRule creates the energy-saving rule. With no exempt types given
// DefaultExemptTypes apply.
func NewIdleRule(threshold time.Duration, exempt ...device.Type) *IdleRule {
	if len(exempt) == 0 {
		exempt = DefaultExemptTypes
	}
	r := &IdleRule{
		threshold: threshold,
		exempt:    make(map[string]bool, len(exempt)),
		fired:     make(map[string]time.Time),
	}
	for _, t := range exempt {
		r.exempt[string(t)] = true
	}
	return r
}

// Name implements Rule.
func (r *IdleRule) Name() string { return RuleIdle }

// Evaluate implements Rule.
func (r *IdleRule) Evaluate(snap state.Snapshot, now time.Time) (Proposal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := Proposal{Rule: RuleIdle, Savings: make(map[string]float64)}
	var rooms []string
	for _, d := range snap.Devices {
		if !d.On {
			delete(r.fired, d.Name)
			continue
		}
		if r.exempt[d.Type] || d.Room == sharedRoom || snap.Context.Occupancy[d.Room] {
			continue
		}
		if d.ChangedAt.IsZero() || now.Sub(d.ChangedAt) < r.threshold {
			continue
		}
		if episode, ok := r.fired[d.Name]; ok && episode.Equal(d.ChangedAt) {
			continue
		}

		r.fired[d.Name] = d.ChangedAt
		p.Actions = append(p.Actions, intent.Action{Device: d.Name, On: false})
		p.Savings[d.Name] = d.PowerWatts * r.threshold.Hours()
		if !slices.Contains(rooms, d.Room) {
			rooms = append(rooms, d.Room)
		}
	}
	if len(p.Actions) == 0 {
		return Proposal{}, false
	}
	sort.Strings(rooms)
	p.Reason = fmt.Sprintf("on for over %s with nobody in %s", r.threshold, strings.Join(rooms, ", "))
	return p, true
}

// Observe implements OutcomeObserver. Devices whose action did not apply are
// released so a later tick can propose them again.
func (r *IdleRule) Observe(p Proposal, report executor.Report) {
	applied := make(map[string]bool, len(report.Outcomes))
	for _, o := range report.Outcomes {
		if o.Status != executor.StatusFailed {
			applied[o.Device] = true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range p.Actions {
		if !applied[a.Device] {
			delete(r.fired, a.Device)
		}
	}
}

// Resolver expands a temperature intent into actions.
type Resolver interface {
	Resolve(in intent.StructuredIntent) (intent.Resolution, error)
}

// ComfortRule cools the house once the indoor temperature passes maxF.
// It stays quiet while the mode is already cooling.
type ComfortRule struct {
	maxF     float64
	resolver Resolver
}

// NewComfortRule creates the temperature-control rule.
func NewComfortRule(maxF float64, resolver Resolver) *ComfortRule {
	return &ComfortRule{maxF: maxF, resolver: resolver}
}

// Name implements Rule.
func (r *ComfortRule) Name() string { return RuleComfort }

// Evaluate implements Rule.
func (r *ComfortRule) Evaluate(snap state.Snapshot, _ time.Time) (Proposal, bool) {
	c := snap.Context
	if c.Temperature <= r.maxF || c.TemperatureMode == intent.ModeCooling {
		return Proposal{}, false
	}

	res, err := r.resolver.Resolve(intent.StructuredIntent{
		Kind:   intent.KindSetTemperature,
		Value:  "decrease",
		Source: intent.SourceBuiltin,
	})
	if err != nil || len(res.Actions) == 0 {
		return Proposal{}, false
	}
	return Proposal{
		Rule:    RuleComfort,
		Reason:  fmt.Sprintf("indoor temperature %.0f°F above %.0f°F", c.Temperature, r.maxF),
		Actions: res.Actions,
		Mode:    res.Mode,
	}, true
}
