package intent

import "strings"

// Kind is the closed set of things a command can ask for.
type Kind string

// Intent kinds.
const (
	KindToggleDevice   Kind = "TOGGLE_DEVICE"
	KindTurnOn         Kind = "TURN_ON"
	KindTurnOff        Kind = "TURN_OFF"
	KindSetTemperature Kind = "SET_TEMPERATURE"
	KindActivateScene  Kind = "ACTIVATE_SCENE"
	KindQueryStatus    Kind = "QUERY_STATUS"
	KindClarify        Kind = "CLARIFY"
	KindUnknown        Kind = "UNKNOWN"
)

// AllKinds returns every intent kind.
func AllKinds() []Kind {
	return []Kind{
		KindToggleDevice, KindTurnOn, KindTurnOff, KindSetTemperature,
		KindActivateScene, KindQueryStatus, KindClarify, KindUnknown,
	}
}

// Mutating reports whether intents of this kind change device state.
func (k Kind) Mutating() bool {
	switch k {
	case KindToggleDevice, KindTurnOn, KindTurnOff, KindSetTemperature, KindActivateScene:
		return true
	case KindQueryStatus, KindClarify, KindUnknown:
		return false
	}
	return false
}

// modelKinds maps the intent strings the language backend emits.
var modelKinds = map[string]Kind{
	"toggle":          KindToggleDevice,
	"toggle_device":   KindToggleDevice,
	"turn_on":         KindTurnOn,
	"turn_off":        KindTurnOff,
	"set_temperature": KindSetTemperature,
	"activate_scene":  KindActivateScene,
	"check_status":    KindQueryStatus,
	"query_status":    KindQueryStatus,
	"status":          KindQueryStatus,
	"clarify":         KindClarify,
}

// ParseKind maps a backend intent string to a Kind. Matching ignores case
// and treats spaces and hyphens as underscores; anything unrecognised is
// KindUnknown.
func ParseKind(s string) Kind {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if k, ok := modelKinds[key]; ok {
		return k
	}
	return KindUnknown
}

// Source records where an intent came from.
type Source string

// Intent sources.
const (
	SourceModel   Source = "model"
	SourcePattern Source = "pattern"
	SourceBuiltin Source = "builtin"
)

// StructuredIntent is one interpreted command.
type StructuredIntent struct {
	Kind Kind `json:"intent"`
	// Devices are references as given (names or aliases). Empty means the
	// resolver works them out from Fragments.
	Devices []string `json:"devices,omitempty"`
	Scene   string   `json:"scene,omitempty"`
	// Value is free-form: "increase", "decrease", or a number.
	Value string `json:"value,omitempty"`
	// Reasoning is informational and never affects execution.
	Reasoning  string  `json:"reasoning,omitempty"`
	Confidence float64 `json:"confidence"`
	// Fragments hold the raw command text used for alias fallback.
	Fragments []string `json:"fragments,omitempty"`
	Source    Source   `json:"source,omitempty"`
}

// Clone returns a copy that shares no slices with in.
func (in StructuredIntent) Clone() StructuredIntent {
	if in.Devices != nil {
		in.Devices = append([]string(nil), in.Devices...)
	}
	if in.Fragments != nil {
		in.Fragments = append([]string(nil), in.Fragments...)
	}
	return in
}

// Action is one desired device state.
type Action struct {
	Device string `json:"device"`
	On     bool   `json:"on"`
}

// ActionSet is an ordered list of actions applied as one batch.
type ActionSet []Action

// Devices returns the device names in order.
func (a ActionSet) Devices() []string {
	out := make([]string, len(a))
	for i, act := range a {
		out[i] = act.Device
	}
	return out
}

// TemperatureMode is the climate direction last requested.
type TemperatureMode string

// Temperature modes.
const (
	ModeNeutral TemperatureMode = "neutral"
	ModeHeating TemperatureMode = "heating"
	ModeCooling TemperatureMode = "cooling"
)
