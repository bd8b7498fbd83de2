package automation

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/nerrad567/hearth/internal/executor"
	"github.com/nerrad567/hearth/internal/intent"
	"github.com/nerrad567/hearth/internal/state"
)

// Defaults applied by NewEngine.
const (
	DefaultInterval  = 30 * time.Second
	DefaultQueueSize = 16

	// runRecordTimeout bounds the audit write after each run.
	runRecordTimeout = 2 * time.Second
)

// SourcePrefix prefixes the executor source of automation runs.
const SourcePrefix = state.SourceAutomation + ":"

// Executor applies action sets.
type Executor interface {
	Execute(ctx context.Context, actions intent.ActionSet, source string) executor.Report
}

// Store is the part of the state store the engine reads and credits.
type Store interface {
	Snapshot() state.Snapshot
	RecordAutomation(savedWh float64)
	SetTemperatureMode(m intent.TemperatureMode)
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	Broadcast(channel string, payload any)
}

// Metrics counts automation triggers.
type Metrics interface {
	ObserveAutomation(rule string)
}

// Logger is the logging interface used by the engine.
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

// Option configures an Engine.
type Option func(*Engine)

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithQueueSize bounds the number of proposals waiting for the worker.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// WithRepository records every run.
func WithRepository(r Repository) Option { return func(e *Engine) { e.repo = r } }

// WithHub broadcasts automation.triggered events.
func WithHub(h WSHub) Option { return func(e *Engine) { e.hub = h } }

// WithMetrics counts triggers per rule.
func WithMetrics(m Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces the time source used for rule evaluation.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

type job struct {
	proposal    Proposal
	triggeredAt time.Time
}

// Engine evaluates rules on a ticker and executes the winning proposal on
// a single worker goroutine.
//
// Thread Safety: Tick may be called concurrently with the scheduler.
type Engine struct {
	store Store
	exec  Executor
	rules []Rule

	interval  time.Duration
	queueSize int
	repo      Repository
	hub       WSHub
	metrics   Metrics
	logger    Logger
	now       func() time.Time

	queue chan job

	mu      sync.Mutex
	pending map[string]bool // rule name -> proposal queued or executing
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEngine creates an engine. Rules are evaluated in the order given.
func NewEngine(store Store, exec Executor, rules []Rule, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		exec:      exec,
		rules:     rules,
		interval:  DefaultInterval,
		queueSize: DefaultQueueSize,
		logger:    noopLogger{},
		now:       time.Now,
		pending:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.queue = make(chan job, e.queueSize)
	return e
}

// Start launches the ticker and the worker. They stop when ctx is cancelled
// or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.schedule(ctx)
	}()
	go func() {
		defer wg.Done()
		e.work(ctx)
	}()
	go func(done chan struct{}) {
		wg.Wait()
		close(done)
	}(e.done)

	e.logger.Info("automation engine started", "interval", e.interval.String(), "rules", len(e.rules))
	return nil
}

// Stop cancels the scheduler and waits for the worker to finish its
// current run. Queued proposals are dropped.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	e.logger.Info("automation engine stopped")
}

// Running reports whether the scheduler is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

func (e *Engine) schedule(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Tick(); err != nil {
				e.logger.Warn("automation tick", "error", err)
			}
		}
	}
}

func (e *Engine) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.drain()
			return
		case j := <-e.queue:
			e.run(ctx, j)
		}
	}
}

// drain releases proposals that will never execute.
func (e *Engine) drain() {
	for {
		select {
		case j := <-e.queue:
			e.release(j.proposal, executor.Report{})
		default:
			return
		}
	}
}

// Tick evaluates rules once and queues the first proposal. It returns the
// name of the rule that fired, or "" when none did. It never blocks on
// hardware.
func (e *Engine) Tick() (string, error) {
	now := e.now()
	snap := e.store.Snapshot()

	for _, rule := range e.rules {
		p, ok := e.evaluate(rule, snap, now)
		if !ok {
			continue
		}
		if p.Rule == "" {
			p.Rule = rule.Name()
		}

		e.mu.Lock()
		if e.pending[p.Rule] {
			e.mu.Unlock()
			e.observe(p, executor.Report{})
			return "", fmt.Errorf("%w: %s", ErrRunPending, p.Rule)
		}
		select {
		case e.queue <- job{proposal: p, triggeredAt: now}:
			e.pending[p.Rule] = true
			e.mu.Unlock()
		default:
			e.mu.Unlock()
			e.observe(p, executor.Report{})
			return "", fmt.Errorf("%w: dropping %s", ErrQueueFull, p.Rule)
		}

		e.logger.Debug("automation rule fired", "rule", p.Rule, "actions", len(p.Actions), "reason", p.Reason)
		return p.Rule, nil
	}
	return "", nil
}

// evaluate runs one rule, turning a panic into "no match".
func (e *Engine) evaluate(rule Rule, snap state.Snapshot, now time.Time) (p Proposal, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("automation rule panicked",
				"rule", rule.Name(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			p, ok = Proposal{}, false
		}
	}()
	p, ok = rule.Evaluate(snap, now)
	return p, ok && len(p.Actions) > 0
}

// run executes one proposal and records the outcome.
func (e *Engine) run(ctx context.Context, j job) {
	p := j.proposal
	var report executor.Report
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("automation run panicked",
				"rule", p.Rule,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
		e.release(p, report)
	}()

	report = e.exec.Execute(ctx, p.Actions, SourcePrefix+p.Rule)
	run := newRun(p, report, j.triggeredAt)

	e.store.RecordAutomation(run.SavedWh)
	if p.Mode != "" && run.Applied+run.Skipped > 0 {
		e.store.SetTemperatureMode(p.Mode)
	}
	if e.metrics != nil {
		e.metrics.ObserveAutomation(p.Rule)
	}

	if e.repo != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runRecordTimeout)
		if err := e.repo.CreateRun(rctx, &run); err != nil {
			e.logger.Error("failed to record automation run", "rule", p.Rule, "error", err)
		}
		cancel()
	}

	level := e.logger.Info
	if run.Failed > 0 {
		level = e.logger.Warn
	}
	level("automation run complete",
		"rule", p.Rule,
		"run_id", run.ID,
		"status", run.Status,
		"applied", run.Applied,
		"failed", run.Failed,
		"saved_wh", run.SavedWh,
		"duration_ms", run.DurationMS,
	)

	if e.hub != nil {
		e.hub.Broadcast("automation.triggered", map[string]any{
			"run_id":      run.ID,
			"rule":        p.Rule,
			"reason":      p.Reason,
			"status":      string(run.Status),
			"applied":     run.Applied,
			"failed":      run.Failed,
			"saved_wh":    run.SavedWh,
			"duration_ms": run.DurationMS,
		})
	}
}

// release clears the rule's pending flag and tells observing rules what
// happened to the proposal.
func (e *Engine) release(p Proposal, report executor.Report) {
	e.mu.Lock()
	delete(e.pending, p.Rule)
	e.mu.Unlock()
	e.observe(p, report)
}

func (e *Engine) observe(p Proposal, report executor.Report) {
	for _, rule := range e.rules {
		if rule.Name() != p.Rule {
			continue
		}
		if obs, ok := rule.(OutcomeObserver); ok {
			obs.Observe(p, report)
		}
	}
}
