package scene

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var nameRegex = regexp.MustCompile(`^[a-z0-9]+(?:_[a-z0-9]+)*$`)

// Scene is a named set of desired device states applied as one batch.
type Scene struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Targets     map[string]bool `json:"target_states" yaml:"target_states"`
}

// Clone returns a copy that shares no map with s.
func (s Scene) Clone() Scene {
	targets := make(map[string]bool, len(s.Targets))
	for k, v := range s.Targets {
		targets[k] = v
	}
	s.Targets = targets
	return s
}

// DeviceNames returns the referenced devices sorted by name.
func (s Scene) DeviceNames() []string {
	out := make([]string, 0, len(s.Targets))
	for name := range s.Targets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DeviceLookup is the part of the device registry scenes are validated
// against.
type DeviceLookup interface {
	Has(name string) bool
}

// Logger defines the logging interface used by the Registry.
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

// Registry stores scenes in registration order.
//
// All public methods are thread-safe.
type Registry struct {
	devices DeviceLookup

	mu     sync.RWMutex
	scenes map[string]*Scene
	order  []string

	listenersMu sync.Mutex
	listeners   []func()

	logger Logger
}

// NewRegistry creates an empty scene registry validated against devices.
func NewRegistry(devices DeviceLookup) *Registry {
	return &Registry{
		devices: devices,
		scenes:  make(map[string]*Scene),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// OnChange registers fn to be called after every Register or Remove.
func (r *Registry) OnChange(fn func()) {
	r.listenersMu.Lock()
	r.listeners = append(r.listeners, fn)
	r.listenersMu.Unlock()
}

func (r *Registry) notify() {
	r.listenersMu.Lock()
	fns := append([]func(){}, r.listeners...)
	r.listenersMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Validate checks s against the device registry.
func (r *Registry) Validate(s *Scene) error {
	if !nameRegex.MatchString(s.Name) {
		return fmt.Errorf("%w: name %q must be lowercase snake_case", ErrInvalidScene, s.Name)
	}
	if len(s.Targets) == 0 {
		return fmt.Errorf("%w: %s has no target states", ErrInvalidScene, s.Name)
	}
	for _, name := range s.DeviceNames() {
		if !r.devices.Has(name) {
			return fmt.Errorf("%w: %s references %s", ErrUnknownDevice, s.Name, name)
		}
	}
	return nil
}

// Register validates s and adds it.
func (r *Registry) Register(s Scene) error {
	if err := r.Validate(&s); err != nil {
		return err
	}
	s = s.Clone()

	r.mu.Lock()
	if _, exists := r.scenes[s.Name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSceneExists, s.Name)
	}
	r.scenes[s.Name] = &s
	r.order = append(r.order, s.Name)
	r.mu.Unlock()

	r.logger.Debug("scene registered", "scene", s.Name, "targets", len(s.Targets))
	r.notify()
	return nil
}

// Remove deletes a scene.
func (r *Registry) Remove(name string) error {
	name = Key(name)
	r.mu.Lock()
	if _, ok := r.scenes[name]; !ok {
		r.mu.Unlock()
		return ErrSceneNotFound
	}
	delete(r.scenes, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.logger.Info("scene removed", "scene", name)
	r.notify()
	return nil
}

// Get returns a copy of the named scene. "Movie Night" finds movie_night.
func (r *Registry) Get(name string) (Scene, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scenes[Key(name)]
	if !ok {
		return Scene{}, ErrSceneNotFound
	}
	return s.Clone(), nil
}

// List returns all scenes in registration order.
func (r *Registry) List() []Scene {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Scene, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.scenes[n].Clone())
	}
	return out
}

// Names returns scene names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Key turns a spoken or typed scene name into its registry key.
func Key(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(name, "_", " "))), "_")
}
