package cache

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only spaces", "   \t\n ", ""},
		{"case fold", "Turn ON the Lights", "turn on the lights"},
		{"collapse whitespace", "  turn   on\tthe\nlights  ", "turn on the lights"},
		{"trailing punctuation", "turn on the lights!!", "turn on the lights"},
		{"question mark", "what's the status?", "what's the status"},
		{"inner apostrophe kept", "it's cold", "it's cold"},
		{"quoting apostrophes dropped", "'lights' on", "lights on"},
		{"percent kept", "set fan to 50%", "set fan to 50%"},
		{"comma separates", "lights,fan off", "lights fan off"},
		{"hyphen separates", "turn on the air-conditioner", "turn on the air conditioner"},
		{"underscore separates", "turn on living_room_light", "turn on living room light"},
		{"decimal point kept", "set the thermostat to 72.5", "set the thermostat to 72.5"},
		{"sentence stop after number", "set the thermostat to 72.", "set the thermostat to 72"},
		{"dot between words separates", "lights.off", "lights off"},
		{"punctuation only", "?!...", ""},
		{"non-ascii letters kept", "Café lights", "café lights"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_EquivalentUtterancesShareKey(t *testing.T) {
	variants := []string{
		"Turn on the kitchen light",
		"turn on the kitchen light.",
		"  TURN ON   THE KITCHEN LIGHT!  ",
		"turn on, the kitchen light",
	}
	want := Normalize(variants[0])
	for _, v := range variants[1:] {
		if got := Normalize(v); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", v, got, want)
		}
	}
}

func TestNormalize_DecimalsStayDistinct(t *testing.T) {
	if a, b := Normalize("set to 72.5"), Normalize("set to 72 5"); a == b {
		t.Errorf("Normalize folded %q and %q to the same key %q", "set to 72.5", "set to 72 5", a)
	}
}
