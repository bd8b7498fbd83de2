package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/hearth/internal/cache"
	"github.com/nerrad567/hearth/internal/device"
	"github.com/nerrad567/hearth/internal/executor"
	"github.com/nerrad567/hearth/internal/intent"
	"github.com/nerrad567/hearth/internal/language"
	"github.com/nerrad567/hearth/internal/scene"
	"github.com/nerrad567/hearth/internal/state"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultInferenceTimeout = 30 * time.Second
	DefaultMinConfidence    = 0.3
	DefaultPowerLimitWatts  = 3000.0
)

// sinkTimeout bounds command log writes and cache invalidation.
const sinkTimeout = 2 * time.Second

// User-facing replies for degraded paths.
const (
	msgNotUnderstood = "I'm sorry, I had trouble understanding that."
	msgUnavailable   = "I'm sorry, I can't understand commands right now. Try again in a moment."
	msgClarify       = "I'm not sure what you meant. Could you rephrase that?"
	msgWhichDevice   = "Which device would you like to control?"
)

// Executor applies ActionSets.
type Executor interface {
	Execute(ctx context.Context, actions intent.ActionSet, source string) executor.Report
}

// Metrics records command counters.
type Metrics interface {
	ObserveCommand(intent, source string, elapsed time.Duration)
	ObserveCacheLookup(hit bool)
	ObserveInference(elapsed time.Duration)
}

// Telemetry writes command latency points.
type Telemetry interface {
	WriteCommand(kind, source string, cacheHit bool, actions int, elapsed time.Duration, at time.Time)
}

// Broadcaster pushes events to WebSocket clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// StateLoader returns the last known device states.
type StateLoader interface {
	LoadStates(ctx context.Context) (map[string]bool, error)
}

// Logger is the logging interface used by the pipeline.
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

// Config tunes the pipeline.
type Config struct {
	// InferenceTimeout bounds one language backend call.
	InferenceTimeout time.Duration
	// MinConfidence is the lowest confidence acted on for mutating intents.
	MinConfidence float64
	// PowerLimitWatts triggers a warning in replies when exceeded.
	PowerLimitWatts float64
}

// Deps holds the components the pipeline drives. Cache and the sinks are
// optional.
type Deps struct {
	Devices  *device.Registry
	Scenes   *scene.Registry
	Store    *state.Store
	Executor Executor
	Backend  language.Backend

	Cache      *cache.Cache
	CommandLog CommandLog
	Metrics    Metrics
	Telemetry  Telemetry
	Hub        Broadcaster
	Logger     Logger
}

// Pipeline handles commands from the REPL and the HTTP API.
// Safe for concurrent use.
type Pipeline struct {
	cfg      Config
	devices  *device.Registry
	scenes   *scene.Registry
	store    *state.Store
	exec     Executor
	backend  language.Backend
	resolver *intent.Resolver
	matcher  *intent.Matcher

	cache      *cache.Cache
	commandLog CommandLog
	metrics    Metrics
	telemetry  Telemetry
	hub        Broadcaster
	logger     Logger

	perf perfTracker
}

// New creates a pipeline. The cache, when given, is cleared whenever a
// device or scene is registered or removed.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Devices == nil:
		return nil, fmt.Errorf("device registry is required")
	case deps.Scenes == nil:
		return nil, fmt.Errorf("scene registry is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("state store is required")
	case deps.Executor == nil:
		return nil, fmt.Errorf("executor is required")
	case deps.Backend == nil:
		return nil, fmt.Errorf("language backend is required")
	}
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = DefaultInferenceTimeout
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if cfg.PowerLimitWatts <= 0 {
		cfg.PowerLimitWatts = DefaultPowerLimitWatts
	}

	p := &Pipeline{
		cfg:        cfg,
		devices:    deps.Devices,
		scenes:     deps.Scenes,
		store:      deps.Store,
		exec:       deps.Executor,
		backend:    deps.Backend,
		resolver:   intent.NewResolver(deps.Devices, deps.Scenes, deps.Store),
		matcher:    intent.NewMatcher(deps.Devices, deps.Scenes),
		cache:      deps.Cache,
		commandLog: deps.CommandLog,
		metrics:    deps.Metrics,
		telemetry:  deps.Telemetry,
		hub:        deps.Hub,
		logger:     deps.Logger,
	}
	if p.logger == nil {
		p.logger = noopLogger{}
	}
	if p.cache != nil {
		p.devices.OnChange(p.invalidateCache)
		p.scenes.OnChange(p.invalidateCache)
	}
	return p, nil
}

func (p *Pipeline) invalidateCache() {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := p.cache.InvalidateAll(ctx); err != nil {
		p.logger.Error("invalidating response cache", "error", err)
		return
	}
	p.logger.Debug("response cache invalidated")
}

// HandleCommand interprets text and carries it out.
//
// The Response is always usable, even when err is non-nil; err classifies
// the failure for the transport: ErrEmptyCommand, *intent.UnknownDeviceError,
// *intent.UnknownSceneError, *intent.AmbiguousCommandError, or
// language.ErrBackendUnavailable. Partial hardware failures are not errors;
// they are reported in Response.Actions.
func (p *Pipeline) HandleCommand(ctx context.Context, text string) (Response, error) {
	start := time.Now()
	text = strings.TrimSpace(text)
	if text == "" {
		return Response{Message: "Please tell me what you would like to do.", Intent: intent.KindUnknown}, ErrEmptyCommand
	}

	switch strings.ToLower(text) {
	case "status":
		return p.special(start, intent.KindQueryStatus, p.Status().String()), nil
	case "perf":
		return p.special(start, intent.KindQueryStatus, p.Perf().String()), nil
	case "help":
		return p.special(start, intent.KindQueryStatus, p.Help()), nil
	}

	p.perf.command()
	p.store.RecordCommand(text)

	in, hit, err := p.understand(ctx, text)
	resp := Response{
		ID:        uuid.NewString(),
		Intent:    in.Kind,
		Reasoning: in.Reasoning,
		CacheHit:  hit,
	}
	if err != nil {
		resp.Message = msgUnavailable
	} else {
		resp, err = p.act(ctx, in, resp, state.SourceCommand)
	}
	return p.finish(ctx, text, state.SourceCommand, start, resp, err)
}

// special answers status, perf and help without touching the cache or the
// backend. These are not counted as commands.
func (p *Pipeline) special(start time.Time, kind intent.Kind, msg string) Response {
	elapsed := time.Since(start)
	return Response{
		ID:        uuid.NewString(),
		Message:   msg,
		Intent:    kind,
		Elapsed:   elapsed,
		ElapsedMS: elapsed.Milliseconds(),
	}
}

// understand returns the intent for text from the cache, the backend, or the
// pattern matcher, in that order. The error is only ever
// language.ErrBackendUnavailable.
func (p *Pipeline) understand(ctx context.Context, text string) (intent.StructuredIntent, bool, error) {
	if p.cache != nil {
		in, ok := p.cache.Lookup(ctx, text)
		p.store.RecordCacheLookup(ok)
		if p.metrics != nil {
			p.metrics.ObserveCacheLookup(ok)
		}
		if ok {
			return withFragments(in, text), true, nil
		}
	}

	var epoch uint64
	if p.cache != nil {
		epoch = p.cache.Epoch()
	}
	prompt := language.BuildPrompt(p.promptContext(), text)
	ictx, cancel := context.WithTimeout(ctx, p.cfg.InferenceTimeout)
	started := time.Now()
	inf, err := p.backend.Infer(ictx, prompt)
	timedOut := ictx.Err() != nil || errors.Is(err, context.DeadlineExceeded)
	cancel()

	elapsed := time.Since(started)
	if err == nil || timedOut {
		p.perf.inference(inf, elapsed)
		if p.metrics != nil {
			p.metrics.ObserveInference(elapsed)
		}
	}

	switch {
	case err == nil:
		in, parseErr := intent.Parse(inf.Text)
		if parseErr == nil {
			if p.cache != nil && in.Kind != intent.KindUnknown {
				// The catalogue may have changed while the backend was thinking.
				if _, storeErr := p.cache.StoreIfEpoch(ctx, text, in, epoch); storeErr != nil {
					p.logger.Warn("caching intent", "error", storeErr)
				}
			}
			return withFragments(in, text), false, nil
		}
		p.logger.Warn("backend output not understood, using pattern match", "error", parseErr)
	case timedOut:
		p.logger.Warn("language backend timed out, using pattern match",
			"timeout", p.cfg.InferenceTimeout, "error", err)
	case errors.Is(err, language.ErrBackendUnavailable):
		p.logger.Error("language backend unavailable", "error", err)
		return intent.StructuredIntent{
			Kind:      intent.KindUnknown,
			Reasoning: "language backend unavailable",
			Fragments: []string{text},
		}, false, language.ErrBackendUnavailable
	default:
		p.logger.Warn("language backend failed, using pattern match", "error", err)
	}

	in, _ := p.matcher.Match(text)
	return in, false, nil
}

// withFragments keeps the utterance for alias resolution when the intent
// names no devices itself.
func withFragments(in intent.StructuredIntent, text string) intent.StructuredIntent {
	if len(in.Devices) == 0 && len(in.Fragments) == 0 {
		in.Fragments = []string{text}
	}
	return in
}

func (p *Pipeline) promptContext() language.PromptContext {
	snap := p.store.Snapshot()
	pc := language.PromptContext{
		At:                 snap.At,
		Temperature:        snap.Context.Temperature,
		OutdoorTemperature: snap.Context.OutdoorTemperature,
		Occupancy:          snap.Context.Occupancy,
		Devices:            make([]language.DeviceStatus, 0, len(snap.Devices)),
		Scenes:             p.scenes.Names(),
	}
	for _, d := range snap.Devices {
		pc.Devices = append(pc.Devices, language.DeviceStatus{Name: d.Name, Room: d.Room, On: d.On})
	}
	return pc
}

// act resolves and executes in, filling in the reply.
func (p *Pipeline) act(ctx context.Context, in intent.StructuredIntent, resp Response, source string) (Response, error) {
	switch in.Kind {
	case intent.KindUnknown:
		resp.Message = msgNotUnderstood
		return resp, nil
	case intent.KindClarify:
		resp.Message = in.Reasoning
		if resp.Message == "" {
			resp.Message = "Could you please clarify?"
		}
		return resp, nil
	case intent.KindQueryStatus:
		resp.Message = p.Status().String()
		return resp, nil
	}

	if in.Confidence < p.cfg.MinConfidence {
		p.logger.Debug("low confidence intent", "intent", in.Kind, "confidence", in.Confidence)
		resp.Intent = intent.KindClarify
		resp.Message = msgClarify
		return resp, nil
	}

	res, err := p.resolver.Resolve(in)
	if err != nil {
		resp.Message = p.resolveMessage(err)
		return resp, err
	}
	if len(res.Actions) == 0 {
		resp.Message = res.Warning
		if resp.Message == "" {
			resp.Message = "Nothing to do."
		}
		return resp, nil
	}

	report := p.exec.Execute(ctx, res.Actions, source)
	resp.Report = report
	resp.Actions = report.Outcomes
	if len(report.Applied())+len(report.Skipped()) > 0 {
		if res.Mode != "" {
			p.store.SetTemperatureMode(res.Mode)
		}
		if in.Kind == intent.KindActivateScene {
			p.setSceneModes(in.Scene)
		}
	}

	resp.Message = p.compose(in, res, report)
	return resp, nil
}

// compose builds the reply for an executed ActionSet.
func (p *Pipeline) compose(in intent.StructuredIntent, res intent.Resolution, report executor.Report) string {
	summary := capitalize(report.Summary()) + "."

	var msg string
	switch in.Kind {
	case intent.KindActivateScene:
		headline := fmt.Sprintf("Scene '%s' activated", scene.Key(in.Scene))
		if s, err := p.scenes.Get(in.Scene); err == nil && s.Description != "" {
			headline += ": " + s.Description
		}
		msg = headline + ". " + summary
	case intent.KindSetTemperature:
		mode := "Heating"
		if res.Mode == intent.ModeCooling {
			mode = "Cooling"
		}
		msg = fmt.Sprintf("%s mode activated. Current temperature: %.0f°F. %s", mode, p.store.Temperature(), summary)
	default:
		msg = summary
	}

	if len(report.Applied()) > 0 {
		if c := p.store.Context(); c.PowerWatts > p.cfg.PowerLimitWatts {
			msg += fmt.Sprintf("\nWarning: power usage (%.0fW) exceeds the %.0fW limit.", c.PowerWatts, p.cfg.PowerLimitWatts)
		}
	}
	return msg
}

func (p *Pipeline) resolveMessage(err error) string {
	var unknownDevice *intent.UnknownDeviceError
	var unknownScene *intent.UnknownSceneError
	switch {
	case errors.As(err, &unknownDevice):
		return fmt.Sprintf("I don't know a device called %q.", unknownDevice.Name)
	case errors.As(err, &unknownScene):
		return "Unknown scene. Available: " + strings.Join(p.scenes.Names(), ", ")
	case errors.Is(err, intent.ErrAmbiguousCommand):
		return msgWhichDevice
	}
	p.logger.Error("resolving intent", "error", err)
	return msgNotUnderstood
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// finish stamps the elapsed time and feeds every sink.
func (p *Pipeline) finish(ctx context.Context, text, source string, start time.Time, resp Response, err error) (Response, error) {
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	resp.Elapsed = time.Since(start)
	resp.ElapsedMS = resp.Elapsed.Milliseconds()
	now := time.Now().UTC()

	args := []any{
		"id", resp.ID,
		"intent", resp.Intent,
		"source", source,
		"cache_hit", resp.CacheHit,
		"actions", len(resp.Actions),
		"elapsed_ms", resp.ElapsedMS,
	}
	if err != nil {
		p.logger.Info("command handled", append(args, "error", err)...)
	} else {
		p.logger.Info("command handled", args...)
	}

	if p.metrics != nil {
		p.metrics.ObserveCommand(string(resp.Intent), source, resp.Elapsed)
	}
	if p.telemetry != nil {
		p.telemetry.WriteCommand(string(resp.Intent), source, resp.CacheHit, len(resp.Actions), resp.Elapsed, now)
	}
	if p.commandLog != nil {
		entry := &LogEntry{
			ID:        resp.ID,
			Text:      text,
			Intent:    resp.Intent,
			Response:  resp.Message,
			CacheHit:  resp.CacheHit,
			Applied:   len(resp.Report.Applied()),
			Failed:    len(resp.Report.Failed()),
			ElapsedMS: resp.ElapsedMS,
			CreatedAt: now,
		}
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		if logErr := p.commandLog.Record(lctx, entry); logErr != nil {
			p.logger.Error("recording command", "id", resp.ID, "error", logErr)
		}
		cancel()
	}
	if p.hub != nil {
		p.hub.Broadcast("command.handled", map[string]any{
			"id":         resp.ID,
			"text":       text,
			"intent":     resp.Intent,
			"response":   resp.Message,
			"cache_hit":  resp.CacheHit,
			"elapsed_ms": resp.ElapsedMS,
			"timestamp":  now.Format(time.RFC3339),
		})
	}
	return resp, err
}

// Toggle flips one device by its registered name.
func (p *Pipeline) Toggle(ctx context.Context, name string) (Response, error) {
	start := time.Now()
	text := "toggle " + name
	resp := Response{ID: uuid.NewString(), Intent: intent.KindToggleDevice}

	d, ok := p.devices.Lookup(name)
	if !ok {
		err := &intent.UnknownDeviceError{Name: name}
		resp.Message = p.resolveMessage(err)
		return p.finish(ctx, text, state.SourceAPI, start, resp, err)
	}

	report := p.exec.Execute(ctx, intent.ActionSet{{Device: d.Name, On: !p.store.IsOn(d.Name)}}, state.SourceAPI)
	resp.Report = report
	resp.Actions = report.Outcomes
	if failed := report.Failed(); len(failed) > 0 {
		resp.Message = fmt.Sprintf("Could not switch %s: %s.", d.DisplayName(), failed[0].Reason)
	} else {
		resp.Message = fmt.Sprintf("%s is now %s.", capitalize(d.DisplayName()), onOff(p.store.IsOn(d.Name)))
	}
	return p.finish(ctx, text, state.SourceAPI, start, resp, nil)
}

// setSceneModes follows the household modes to the last scene that took
// effect: "sleep" and "away" switch their mode on, any other scene clears
// both.
func (p *Pipeline) setSceneModes(name string) {
	key := scene.Key(name)
	p.store.SetSleepMode(key == "sleep")
	p.store.SetVacationMode(key == "away")
}

// ActivateScene applies a scene by name and broadcasts scene.activated.
func (p *Pipeline) ActivateScene(ctx context.Context, name string) (Response, error) {
	start := time.Now()
	in := intent.StructuredIntent{
		Kind:       intent.KindActivateScene,
		Scene:      name,
		Confidence: 1,
		Source:     intent.SourceBuiltin,
	}
	resp := Response{ID: uuid.NewString(), Intent: in.Kind}
	resp, err := p.act(ctx, in, resp, state.SourceScene)
	if err == nil && p.hub != nil {
		p.hub.Broadcast("scene.activated", map[string]any{
			"scene":  scene.Key(name),
			"status": resp.Report.Status(),
			"report": resp.Report,
		})
	}
	return p.finish(ctx, "activate "+name, state.SourceScene, start, resp, err)
}

// IsOn reports the current state of a device.
func (p *Pipeline) IsOn(name string) bool {
	return p.store.IsOn(name)
}

// Status returns a snapshot of every room, device and the context.
func (p *Pipeline) Status() StatusReport {
	snap := p.store.Snapshot()
	report := StatusReport{
		At:              snap.At,
		PowerLimitWatts: p.cfg.PowerLimitWatts,
		Devices:         snap.Devices,
		Context:         snap.Context,
		Scenes:          p.scenes.Names(),
		Performance:     p.perf.summary(snap.Context),
	}

	byRoom := make(map[string]*RoomStatus)
	for _, room := range p.devices.Rooms() {
		report.Rooms = append(report.Rooms, RoomStatus{Room: room, Occupied: snap.Context.Occupancy[room]})
	}
	for i := range report.Rooms {
		byRoom[report.Rooms[i].Room] = &report.Rooms[i]
	}
	for _, d := range snap.Devices {
		r, ok := byRoom[d.Room]
		if !ok {
			continue
		}
		r.Devices = append(r.Devices, d)
		if d.On {
			r.Active = append(r.Active, d.Name)
		}
	}
	return report
}

// Perf returns the performance summary.
func (p *Pipeline) Perf() Perf {
	return p.perf.summary(p.store.Context())
}

// Help returns the command reference.
func (p *Pipeline) Help() string {
	return helpText
}

// RecentCommands returns the newest entries of the command log.
func (p *Pipeline) RecentCommands(ctx context.Context, limit int) ([]LogEntry, error) {
	if p.commandLog == nil {
		return nil, nil
	}
	return p.commandLog.Recent(ctx, limit)
}

// Shutdown switches off every device that is on.
func (p *Pipeline) Shutdown(ctx context.Context) executor.Report {
	var actions intent.ActionSet
	for _, d := range p.devices.List() {
		if p.store.IsOn(d.Name) {
			actions = append(actions, intent.Action{Device: d.Name, On: false})
		}
	}
	report := p.exec.Execute(ctx, actions, state.SourceShutdown)
	p.logger.Info("devices switched off for shutdown",
		"applied", len(report.Applied()),
		"failed", len(report.Failed()),
	)
	return report
}

// Restore re-applies the last known states. Persisted devices that are no
// longer registered are ignored.
func (p *Pipeline) Restore(ctx context.Context, loader StateLoader) (executor.Report, error) {
	states, err := loader.LoadStates(ctx)
	if err != nil {
		return executor.Report{}, fmt.Errorf("loading device states: %w", err)
	}

	var actions intent.ActionSet
	var stale []string
	for name, on := range states {
		if !p.devices.Has(name) {
			stale = append(stale, name)
			continue
		}
		actions = append(actions, intent.Action{Device: name, On: on})
	}
	sort.SliceStable(actions, func(i, j int) bool {
		return p.devices.Position(actions[i].Device) < p.devices.Position(actions[j].Device)
	})
	if len(stale) > 0 {
		sort.Strings(stale)
		p.logger.Warn("ignoring persisted state of unregistered devices", "devices", stale)
	}

	report := p.exec.Execute(ctx, actions, state.SourceRestore)
	p.logger.Info("device states restored",
		"applied", len(report.Applied()),
		"skipped", len(report.Skipped()),
		"failed", len(report.Failed()),
	)
	return report, nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
