package intent

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nerrad567/hearth/internal/device"
	"github.com/nerrad567/hearth/internal/scene"
)

// DeviceCatalog is the part of the device registry the resolver reads.
type DeviceCatalog interface {
	Lookup(phrase string) (device.Device, bool)
	ResolveAlias(text string) []device.Device
	DevicesByType(t device.Type) []device.Device
	Position(name string) int
}

// SceneCatalog looks up scenes by name.
type SceneCatalog interface {
	Get(name string) (scene.Scene, error)
}

// StateReader exposes the current device states and indoor temperature.
// Reads are point-in-time; the resolver never holds the store's lock.
type StateReader interface {
	IsOn(name string) bool
	Temperature() float64
}

// Resolution is the outcome of resolving one intent.
type Resolution struct {
	Actions ActionSet `json:"actions"`
	// Warning is set when the intent was understood but nothing will be done.
	Warning string `json:"warning,omitempty"`
	// Mode is set for temperature intents.
	Mode TemperatureMode `json:"mode,omitempty"`
}

// Resolver expands intents into ActionSets.
type Resolver struct {
	devices DeviceCatalog
	scenes  SceneCatalog
	state   StateReader
}

// NewResolver creates a resolver.
func NewResolver(devices DeviceCatalog, scenes SceneCatalog, state StateReader) *Resolver {
	return &Resolver{devices: devices, scenes: scenes, state: state}
}

// Resolve turns in into an ordered ActionSet. Actions follow device
// registration order whatever order the intent listed them in.
//
// Errors: *UnknownDeviceError, *UnknownSceneError, *AmbiguousCommandError.
// Non-mutating kinds resolve to an empty ActionSet.
func (r *Resolver) Resolve(in StructuredIntent) (Resolution, error) {
	switch in.Kind {
	case KindToggleDevice, KindTurnOn, KindTurnOff:
		return r.resolveDevices(in)
	case KindSetTemperature:
		return r.resolveTemperature(in.Value), nil
	case KindActivateScene:
		return r.resolveScene(in.Scene)
	case KindQueryStatus, KindClarify, KindUnknown:
		return Resolution{}, nil
	}
	return Resolution{}, fmt.Errorf("intent: unsupported kind %q", in.Kind)
}

func (r *Resolver) resolveDevices(in StructuredIntent) (Resolution, error) {
	var targets []device.Device
	if len(in.Devices) > 0 {
		for _, ref := range in.Devices {
			if d, ok := r.devices.Lookup(ref); ok {
				targets = append(targets, d)
				continue
			}
			// Free text such as "all lights" may still resolve; a bare
			// identifier that is not registered is a stale reference.
			if strings.Contains(strings.TrimSpace(ref), " ") {
				if found := r.devices.ResolveAlias(ref); len(found) > 0 {
					targets = append(targets, found...)
					continue
				}
			}
			return Resolution{}, &UnknownDeviceError{Name: ref}
		}
	} else {
		text := strings.Join(in.Fragments, " ")
		targets = r.devices.ResolveAlias(text)
		if len(targets) == 0 {
			return Resolution{}, &AmbiguousCommandError{Text: text}
		}
	}

	actions := make(ActionSet, 0, len(targets))
	for _, d := range targets {
		var on bool
		switch in.Kind {
		case KindTurnOn:
			on = true
		case KindTurnOff:
			on = false
		default:
			on = !r.state.IsOn(d.Name)
		}
		actions = append(actions, Action{Device: d.Name, On: on})
	}
	return Resolution{Actions: r.order(actions)}, nil
}

// resolveTemperature applies the fixed climate policy: warming turns every
// heater on and every AC off, cooling the reverse.
func (r *Resolver) resolveTemperature(value string) Resolution {
	mode, ok := r.temperatureDirection(value)
	if !ok {
		return Resolution{Warning: fmt.Sprintf("Please say 'increase' or 'decrease' for temperature (got %q).", value)}
	}
	if mode == ModeNeutral {
		return Resolution{Warning: "Temperature is already at that setting."}
	}

	heat := mode == ModeHeating
	var actions ActionSet
	for _, d := range r.devices.DevicesByType(device.TypeHeater) {
		actions = append(actions, Action{Device: d.Name, On: heat})
	}
	for _, d := range r.devices.DevicesByType(device.TypeAC) {
		actions = append(actions, Action{Device: d.Name, On: !heat})
	}
	res := Resolution{Actions: r.order(actions), Mode: mode}
	if len(actions) == 0 {
		res.Warning = "No heaters or air conditioners are registered."
	}
	return res
}

func (r *Resolver) temperatureDirection(value string) (TemperatureMode, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "increase", "heat", "warm", "warmer", "up", "raise":
		return ModeHeating, true
	case "decrease", "cool", "cooler", "down", "lower":
		return ModeCooling, true
	}

	target, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSuffix(v, "f"), "°"), 64)
	if err != nil {
		return "", false
	}
	current := r.state.Temperature()
	switch {
	case target > current:
		return ModeHeating, true
	case target < current:
		return ModeCooling, true
	}
	return ModeNeutral, true
}

func (r *Resolver) resolveScene(name string) (Resolution, error) {
	if strings.TrimSpace(name) == "" {
		return Resolution{}, &UnknownSceneError{Name: name}
	}
	s, err := r.scenes.Get(name)
	if err != nil {
		return Resolution{}, &UnknownSceneError{Name: name}
	}

	actions := make(ActionSet, 0, len(s.Targets))
	for _, devName := range s.DeviceNames() {
		if _, ok := r.devices.Lookup(devName); !ok {
			return Resolution{}, &UnknownDeviceError{Name: devName}
		}
		actions = append(actions, Action{Device: devName, On: s.Targets[devName]})
	}
	return Resolution{Actions: r.order(actions)}, nil
}

// order sorts by registration position and drops repeated devices, keeping
// the first desired state.
func (r *Resolver) order(actions ActionSet) ActionSet {
	seen := make(map[string]bool, len(actions))
	out := make(ActionSet, 0, len(actions))
	for _, a := range actions {
		if !seen[a.Device] {
			seen[a.Device] = true
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return r.devices.Position(out[i].Device) < r.devices.Position(out[j].Device)
	})
	return out
}
