package language

import (
	"strings"
	"testing"
	"time"
)

func TestTimeOfDay(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{4, "night"}, {5, "morning"}, {11, "morning"}, {12, "afternoon"},
		{16, "afternoon"}, {17, "evening"}, {20, "evening"}, {21, "night"}, {0, "night"},
	}
	for _, tt := range tests {
		at := time.Date(2026, 5, 4, tt.hour, 0, 0, 0, time.UTC)
		if got := TimeOfDay(at); got != tt.want {
			t.Errorf("TimeOfDay(%02d:00) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestSeason(t *testing.T) {
	tests := []struct {
		month time.Month
		want  string
	}{
		{time.January, "winter"}, {time.March, "spring"}, {time.July, "summer"},
		{time.October, "fall"}, {time.December, "winter"},
	}
	for _, tt := range tests {
		if got := Season(time.Date(2026, tt.month, 10, 0, 0, 0, 0, time.UTC)); got != tt.want {
			t.Errorf("Season(%s) = %q, want %q", tt.month, got, tt.want)
		}
	}
}

func testPromptContext() PromptContext {
	return PromptContext{
		At:                 time.Date(2026, 7, 6, 9, 0, 0, 0, time.UTC), // Monday morning
		Temperature:        73,
		OutdoorTemperature: 89,
		Occupancy:          map[string]bool{"living_room": true, "bedroom": false},
		Devices: []DeviceStatus{
			{Name: "living_room_light", Room: "living_room", On: true},
			{Name: "bedroom_ac", Room: "bedroom", On: true},
			{Name: "kitchen_light", Room: "kitchen", On: false},
			{Name: "security_alarm", Room: "general", On: true},
		},
		Scenes: []string{"sleep", "away", "movie_mode"},
	}
}

func TestPromptContext_Unused(t *testing.T) {
	got := testPromptContext().Unused()
	if len(got) != 1 || got[0] != "bedroom_ac" {
		t.Errorf("Unused() = %v, want [bedroom_ac]", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(testPromptContext(), "it's too hot in here")

	for _, want := range []string{
		`"intent": "turn_off/turn_on/set_temperature`,
		"Time: morning, Monday",
		"Season: summer",
		"73°F / 89°F",
		`Occupancy: {"bedroom":false,"living_room":true}`,
		`"bedroom_ac":"on"`,
		`"kitchen_light":"off"`,
		`Unused devices: ["bedroom_ac"]`,
		"Scenes: away, movie_mode, sleep",
		`User request: "it's too hot in here"`,
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPrompt_EmptyContext(t *testing.T) {
	p := BuildPrompt(PromptContext{}, "hello")
	if !strings.Contains(p, "Unused devices: []") {
		t.Error("empty unused list should render as []")
	}
	if !strings.Contains(p, "Occupancy: {}") {
		t.Error("nil occupancy should render as {}")
	}
}
