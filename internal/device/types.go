package device

// Type classifies what a device is. It drives type-wide resolution
// ("all lights") and the temperature policy (heaters and ACs).
type Type string

// Device types.
const (
	TypeLight    Type = "light"
	TypeFan      Type = "fan"
	TypeHeater   Type = "heater"
	TypeAC       Type = "ac"
	TypeDoorLock Type = "door_lock"
	TypeCurtain  Type = "curtain"
	TypeOutlet   Type = "outlet"
	TypeAlarm    Type = "alarm"
	TypeSensor   Type = "sensor"
)

// AllTypes returns every known device type.
func AllTypes() []Type {
	return []Type{
		TypeLight, TypeFan, TypeHeater, TypeAC, TypeDoorLock,
		TypeCurtain, TypeOutlet, TypeAlarm, TypeSensor,
	}
}

// Valid reports whether t is one of the known device types.
func (t Type) Valid() bool {
	for _, known := range AllTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Device is one controllable (or readable) entity in the home.
//
// Name and Pin are fixed once the device is registered. The on/off state is
// not part of Device: it lives in the state store and only the executor
// changes it.
type Device struct {
	Name       string   `json:"name" yaml:"name"`
	Pin        int      `json:"pin" yaml:"pin"`
	Type       Type     `json:"type" yaml:"type"`
	Aliases    []string `json:"aliases,omitempty" yaml:"aliases"`
	Room       string   `json:"room" yaml:"room"`
	PowerWatts float64  `json:"power_watts" yaml:"power_watts"`
}

// Clone returns a copy that shares no slices with d.
func (d Device) Clone() Device {
	if d.Aliases != nil {
		d.Aliases = append([]string(nil), d.Aliases...)
	}
	return d
}

// DisplayName returns the name with underscores replaced by spaces.
func (d Device) DisplayName() string {
	return spaced(d.Name)
}
