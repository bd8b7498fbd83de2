package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/hearth/internal/executor"
	"github.com/nerrad567/hearth/internal/intent"
	"github.com/nerrad567/hearth/internal/state"
)

// Response is the reply to one command.
type Response struct {
	ID        string             `json:"id"`
	Message   string             `json:"response"`
	Actions   []executor.Outcome `json:"actions"`
	ElapsedMS int64              `json:"elapsed_ms"`
	Reasoning string             `json:"reasoning,omitempty"`
	Intent    intent.Kind        `json:"intent"`
	CacheHit  bool               `json:"cache_hit"`

	Elapsed time.Duration   `json:"-"`
	Report  executor.Report `json:"-"`
}

// Perf is the performance summary shown by "perf".
type Perf struct {
	AvgInferenceMS     float64 `json:"avg_inference_ms"`
	TokensPerSecond    float64 `json:"tokens_per_second"`
	CacheHitRate       float64 `json:"cache_hit_rate"` // percent
	TotalCommands      int64   `json:"total_commands"`
	AutomationTriggers int64   `json:"automation_triggers"`
	PowerWatts         float64 `json:"current_power_usage"`
	EnergyUsedKWh      float64 `json:"energy_used"`
	EnergySavedKWh     float64 `json:"energy_saved"`
}

// String renders one "Label: value" line per field.
func (p Perf) String() string {
	lines := []string{
		fmt.Sprintf("Avg Inference: %.0fms", p.AvgInferenceMS),
		fmt.Sprintf("Tokens Per Second: %.1f", p.TokensPerSecond),
		fmt.Sprintf("Cache Hit Rate: %.1f%%", p.CacheHitRate),
		fmt.Sprintf("Total Commands: %d", p.TotalCommands),
		fmt.Sprintf("Automation Triggers: %d", p.AutomationTriggers),
		fmt.Sprintf("Current Power Usage: %.0fW", p.PowerWatts),
		fmt.Sprintf("Energy Used: %.2fkWh", p.EnergyUsedKWh),
		fmt.Sprintf("Energy Saved: %.2fkWh", p.EnergySavedKWh),
	}
	return strings.Join(lines, "\n")
}

// RoomStatus lists a room's devices and which of them are on.
type RoomStatus struct {
	Room     string              `json:"room"`
	Occupied bool                `json:"occupied"`
	Devices  []state.DeviceState `json:"devices"`
	Active   []string            `json:"active"`
}

// StatusReport is a point-in-time view of the whole household.
type StatusReport struct {
	At              time.Time           `json:"at"`
	PowerLimitWatts float64             `json:"power_limit_watts"`
	Rooms           []RoomStatus        `json:"rooms"`
	Devices         []state.DeviceState `json:"devices"`
	Context         state.Context       `json:"context"`
	Scenes          []string            `json:"scenes"`
	Performance     Perf                `json:"performance"`
}

// String renders the report for the REPL and QUERY_STATUS replies.
func (s StatusReport) String() string {
	c := s.Context
	var b strings.Builder
	b.WriteString("Home status\n")
	fmt.Fprintf(&b, "Power: %.0fW / %.0fW\n", c.PowerWatts, s.PowerLimitWatts)
	fmt.Fprintf(&b, "Temperature: %.1f°F (outside %.1f°F)\n", c.Temperature, c.OutdoorTemperature)
	fmt.Fprintf(&b, "Humidity: %.0f%%\n", c.Humidity)
	if c.TemperatureMode != "" {
		fmt.Fprintf(&b, "Climate: %s\n", c.TemperatureMode)
	}

	for _, r := range s.Rooms {
		if len(r.Devices) == 0 {
			continue
		}
		if len(r.Active) == 0 {
			fmt.Fprintf(&b, "%s: all devices off\n", displayRoom(r.Room))
			continue
		}
		names := make([]string, len(r.Active))
		for i, n := range r.Active {
			names[i] = strings.ReplaceAll(n, "_", " ")
		}
		fmt.Fprintf(&b, "%s: %s on\n", displayRoom(r.Room), strings.Join(names, ", "))
	}

	if c.SecurityArmed {
		b.WriteString("Security: armed\n")
	}
	var modes []string
	if c.SleepMode {
		modes = append(modes, "sleep")
	}
	if c.VacationMode {
		modes = append(modes, "vacation")
	}
	if len(modes) > 0 {
		fmt.Fprintf(&b, "Modes: %s\n", strings.Join(modes, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// displayRoom turns "living_room" into "Living Room".
func displayRoom(room string) string {
	words := strings.Fields(strings.ReplaceAll(room, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

const helpText = `Things you can say:
- Natural language: "turn on the lights", "I'm cold", "switch off the bedroom fan"
- Scenes: "movie night", "dinner", "sleep", "wake up", "away"
- Status: "status" or "what's on?"
- Performance: "perf"
- Leave the REPL: "quit"`
