package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/hearth/internal/device"
	"github.com/nerrad567/hearth/internal/hardware"
	"github.com/nerrad567/hearth/internal/infrastructure/mqtt"
	"github.com/nerrad567/hearth/internal/intent"
	"github.com/nerrad567/hearth/internal/state"
)

// DefaultPinTimeout bounds one pin write when no timeout is configured.
const DefaultPinTimeout = 2 * time.Second

// sinkTimeout bounds the post-commit history write.
const sinkTimeout = 2 * time.Second

// Devices is the part of the device registry the executor needs.
type Devices interface {
	Get(name string) (device.Device, error)
}

// Store is the part of the state store the executor needs.
type Store interface {
	IsOn(name string) bool
	Commit(name string, on bool) (state.Transition, error)
	Context() state.Context
}

// HistoryRecorder persists committed transitions.
type HistoryRecorder interface {
	RecordTransition(ctx context.Context, name string, on bool, source string, at time.Time) error
}

// Telemetry receives time-series points.
type Telemetry interface {
	WriteDeviceState(device, room string, on bool, source string, at time.Time)
	WriteEnergy(device string, powerWatts, energyWh float64, onFor time.Duration, at time.Time)
}

// EventPublisher publishes retained state events.
type EventPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Broadcaster pushes events to WebSocket clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Metrics counts transitions and hardware failures.
type Metrics interface {
	ObserveTransition(device string, on bool)
	ObserveHardwareFailure(device string)
	SetEnergy(powerWatts, energyWh float64)
}

// Logger is the logging interface used by the executor.
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

// Option configures an Executor.
type Option func(*Executor)

// WithPinTimeout sets the per-write hardware deadline.
func WithPinTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.pinTimeout = d
		}
	}
}

// WithHistory persists every commit.
func WithHistory(h HistoryRecorder) Option { return func(e *Executor) { e.history = h } }

// WithTelemetry writes state and energy points.
func WithTelemetry(t Telemetry) Option { return func(e *Executor) { e.telemetry = t } }

// WithEvents publishes hearth/state/{device} after every commit.
func WithEvents(p EventPublisher) Option { return func(e *Executor) { e.events = p } }

// WithBroadcaster pushes device.state_changed to WebSocket clients.
func WithBroadcaster(b Broadcaster) Option { return func(e *Executor) { e.hub = b } }

// WithMetrics records Prometheus counters.
func WithMetrics(m Metrics) Option { return func(e *Executor) { e.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Executor applies ActionSets. Safe for concurrent use; actions on the same
// device are serialised from the state check through the commit.
type Executor struct {
	devices Devices
	store   Store
	driver  hardware.Driver

	pinTimeout time.Duration
	history    HistoryRecorder
	telemetry  Telemetry
	events     EventPublisher
	hub        Broadcaster
	metrics    Metrics
	logger     Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates an executor.
func New(devices Devices, store Store, driver hardware.Driver, opts ...Option) *Executor {
	e := &Executor{
		devices:    devices,
		store:      store,
		driver:     driver,
		pinTimeout: DefaultPinTimeout,
		logger:     noopLogger{},
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute applies actions in order and reports each device's outcome.
// It never returns early: one failed device does not stop the rest.
func (e *Executor) Execute(ctx context.Context, actions intent.ActionSet, source string) Report {
	start := time.Now()
	report := Report{
		ID:       uuid.NewString(),
		Source:   source,
		Outcomes: make([]Outcome, 0, len(actions)),
	}

	var committed []committedChange
	for _, a := range actions {
		out, change := e.apply(ctx, a)
		report.Outcomes = append(report.Outcomes, out)
		if change != nil {
			committed = append(committed, *change)
		}
	}

	for _, c := range committed {
		e.fanOut(ctx, c, source)
	}
	if len(committed) > 0 && e.metrics != nil {
		c := e.store.Context()
		e.metrics.SetEnergy(c.PowerWatts, c.EnergyWh)
	}

	report.Elapsed = time.Since(start)
	if len(actions) > 0 {
		e.logger.Debug("action set executed",
			"id", report.ID,
			"source", source,
			"status", report.Status(),
			"applied", len(committed),
			"elapsed_ms", report.Elapsed.Milliseconds(),
		)
	}
	return report
}

type committedChange struct {
	device     device.Device
	transition state.Transition
}

func (e *Executor) apply(ctx context.Context, a intent.Action) (Outcome, *committedChange) {
	out := Outcome{Device: a.Device, On: a.On}

	d, err := e.devices.Get(a.Device)
	if err != nil {
		return failed(out, err), nil
	}

	unlock := e.lock(a.Device)
	defer unlock()

	if e.store.IsOn(a.Device) == a.On {
		out.Status = StatusSkipped
		return out, nil
	}

	pinCtx, cancel := context.WithTimeout(ctx, e.pinTimeout)
	err = e.driver.SetPin(pinCtx, d.Pin, a.On)
	cancel()
	if err != nil {
		e.logger.Warn("pin write failed", "device", a.Device, "pin", d.Pin, "on", a.On, "error", err)
		if e.metrics != nil {
			e.metrics.ObserveHardwareFailure(a.Device)
		}
		return failed(out, err), nil
	}

	t, err := e.store.Commit(a.Device, a.On)
	if err != nil {
		// Removed from the catalogue between the lookup and the commit.
		e.logger.Error("commit after pin write failed", "device", a.Device, "error", err)
		return failed(out, err), nil
	}
	if !t.Changed {
		out.Status = StatusSkipped
		return out, nil
	}
	out.Status = StatusApplied
	return out, &committedChange{device: d, transition: t}
}

func failed(out Outcome, err error) Outcome {
	out.Status = StatusFailed
	out.Err = err
	out.Reason = reason(err)
	return out
}

// reason shortens err to what a user needs to see.
func reason(err error) string {
	var hwErr *hardware.HardwareError
	switch {
	case errors.Is(err, hardware.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, device.ErrDeviceNotFound), errors.Is(err, state.ErrUnknownDevice):
		return "unknown device"
	case errors.As(err, &hwErr):
		return hwErr.Err.Error()
	default:
		return err.Error()
	}
}

func (e *Executor) fanOut(ctx context.Context, c committedChange, source string) {
	t := c.transition
	e.logger.Debug("device state changed", "device", t.Device, "on", t.On, "source", source)

	if e.history != nil {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		if err := e.history.RecordTransition(hctx, t.Device, t.On, source, t.At); err != nil {
			e.logger.Error("recording state history", "device", t.Device, "error", err)
		}
		cancel()
	}
	if e.telemetry != nil {
		e.telemetry.WriteDeviceState(t.Device, c.device.Room, t.On, source, t.At)
		if !t.On {
			e.telemetry.WriteEnergy(t.Device, t.Watts, t.EnergyWh, t.OnFor, t.At)
		}
	}
	if e.events != nil {
		ev := mqtt.StateEvent{Device: t.Device, On: t.On, Source: source, Timestamp: t.At.UTC()}
		if err := e.events.PublishJSON(mqtt.Topics{}.DeviceState(t.Device), ev, true); err != nil {
			e.logger.Warn("publishing state event", "device", t.Device, "error", err)
		}
	}
	if e.hub != nil {
		e.hub.Broadcast("device.state_changed", map[string]any{
			"device":    t.Device,
			"room":      c.device.Room,
			"is_on":     t.On,
			"source":    source,
			"timestamp": t.At.UTC().Format(time.RFC3339),
		})
	}
	if e.metrics != nil {
		e.metrics.ObserveTransition(t.Device, t.On)
	}
}

// lock takes the named device's mutex and returns its unlock.
func (e *Executor) lock(name string) func() {
	e.locksMu.Lock()
	m, ok := e.locks[name]
	if !ok {
		m = &sync.Mutex{}
		e.locks[name] = m
	}
	e.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}
