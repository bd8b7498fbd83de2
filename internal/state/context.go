package state

import (
	"time"

	"github.com/nerrad567/hearth/internal/intent"
)

// Defaults for a freshly started household.
const (
	DefaultRecentCommands     = 5
	DefaultTemperature        = 72.0
	DefaultOutdoorTemperature = 85.0
	DefaultHumidity           = 45.0
)

// CacheStats are the response cache counters as seen by the context.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Context is the process-wide household record. It is created once at
// startup and never persisted.
type Context struct {
	TemperatureMode    intent.TemperatureMode `json:"temperature_mode"`
	Temperature        float64                `json:"temperature"`
	OutdoorTemperature float64                `json:"outdoor_temperature"`
	Humidity           float64                `json:"humidity"`
	Occupancy          map[string]bool        `json:"occupancy"`

	SecurityArmed bool `json:"security_armed"`
	SleepMode     bool `json:"sleep_mode"`
	VacationMode  bool `json:"vacation_mode"`

	RecentCommands []string `json:"recent_commands"`

	// PowerWatts is the current total draw of devices that are on.
	PowerWatts float64 `json:"power_watts"`
	// EnergyWh is cumulative consumption including devices still on.
	EnergyWh float64 `json:"energy_wh"`
	// EnergySavedWh is the estimate credited by automation turn-offs.
	EnergySavedWh      float64 `json:"energy_saved_wh"`
	AutomationTriggers int64   `json:"automation_triggers"`

	Cache CacheStats `json:"cache"`
}

// DeviceState is one device's current state joined with its catalogue data.
type DeviceState struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Room       string    `json:"room"`
	Pin        int       `json:"pin"`
	PowerWatts float64   `json:"power_watts"`
	On         bool      `json:"is_on"`
	ChangedAt  time.Time `json:"last_changed_at,omitzero"`
	Aliases    []string  `json:"aliases,omitempty"`
}

// Snapshot is an immutable copy of all device states plus the context.
type Snapshot struct {
	At      time.Time     `json:"at"`
	Devices []DeviceState `json:"devices"`
	Context Context       `json:"context"`
}

// Device returns the named device state from the snapshot.
func (s Snapshot) Device(name string) (DeviceState, bool) {
	for _, d := range s.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return DeviceState{}, false
}

// RoomSummary describes one room.
type RoomSummary struct {
	Room       string        `json:"room"`
	Occupied   bool          `json:"occupied"`
	Devices    []DeviceState `json:"devices"`
	Active     []string      `json:"active"`
	PowerWatts float64       `json:"power_watts"`
}
