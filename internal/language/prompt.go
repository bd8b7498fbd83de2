package language

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DeviceStatus is one device as the prompt presents it.
type DeviceStatus struct {
	Name string
	Room string
	On   bool
}

// PromptContext is the household state given to the model.
type PromptContext struct {
	At                 time.Time
	Temperature        float64
	OutdoorTemperature float64
	Occupancy          map[string]bool
	Devices            []DeviceStatus
	Scenes             []string
}

// sharedRoom holds devices that never count as unused.
const sharedRoom = "general"

// Unused returns devices that are on in rooms without occupancy.
func (p PromptContext) Unused() []string {
	var out []string
	for _, d := range p.Devices {
		if d.On && d.Room != sharedRoom && !p.Occupancy[d.Room] {
			out = append(out, d.Name)
		}
	}
	return out
}

// TimeOfDay buckets an hour into morning, afternoon, evening or night.
func TimeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "morning"
	case h >= 12 && h < 17:
		return "afternoon"
	case h >= 17 && h < 21:
		return "evening"
	default:
		return "night"
	}
}

// Season returns the northern-hemisphere season for t.
func Season(t time.Time) string {
	switch t.Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "fall"
	}
}

const promptHeader = `You are a smart home automation assistant and energy manager. You control every home device (lights, fans, ACs, heaters, outlets). Act to maximise comfort, safety and energy efficiency based on the user's request and the context.
If the user asks to save power or reduce the electricity bill, turn off devices in unoccupied rooms and devices not needed for safety or comfort. Never answer a power-saving request with clarify or unknown.

Schema:
{
  "intent": "turn_off/turn_on/set_temperature/toggle/activate_scene/check_status/clarify/unknown",
  "devices": ["device1", "device2"],
  "scene": "scene_name or null",
  "value": "increase/decrease/number or null",
  "reasoning": "brief explanation",
  "confidence": 0.0
}
`

const promptExample = `Example:
User: "I want to save power"
{"intent": "turn_off", "devices": ["kitchen_light", "living_room_fan"], "scene": null, "value": null, "reasoning": "Turning off unused devices in unoccupied rooms.", "confidence": 0.9}
`

// BuildPrompt renders the prompt for one request.
func BuildPrompt(pc PromptContext, request string) string {
	states := make(map[string]string, len(pc.Devices))
	for _, d := range pc.Devices {
		states[d.Name] = "off"
		if d.On {
			states[d.Name] = "on"
		}
	}
	unused := pc.Unused()
	if unused == nil {
		unused = []string{}
	}
	occupancy := pc.Occupancy
	if occupancy == nil {
		occupancy = map[string]bool{}
	}
	scenes := slices.Clone(pc.Scenes)
	slices.Sort(scenes)

	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\nContext:\n")
	fmt.Fprintf(&b, "Time: %s, %s\n", TimeOfDay(pc.At), pc.At.Weekday())
	fmt.Fprintf(&b, "Season: %s\n", Season(pc.At))
	fmt.Fprintf(&b, "Temperature (indoor/outdoor): %.0f°F / %.0f°F\n", pc.Temperature, pc.OutdoorTemperature)
	fmt.Fprintf(&b, "Occupancy: %s\n", mustJSON(occupancy))
	fmt.Fprintf(&b, "Devices and their state: %s\n", mustJSON(states))
	fmt.Fprintf(&b, "Unused devices: %s\n", mustJSON(unused))
	fmt.Fprintf(&b, "Scenes: %s\n\n", strings.Join(scenes, ", "))
	b.WriteString(promptExample)
	fmt.Fprintf(&b, "\nUser request: %q\n", request)
	b.WriteString("Respond ONLY with one JSON object following the schema. No markdown, no extra text.\n")
	return b.String()
}

// mustJSON encodes maps and slices of strings/bools, which cannot fail.
// Map keys are sorted by encoding/json.
func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
