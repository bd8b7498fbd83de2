package intent

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want StructuredIntent
	}{
		{
			name: "plain JSON",
			raw:  `{"intent":"turn_on","devices":["office_light"],"scene":null,"value":null,"reasoning":"desk lamp requested"}`,
			want: StructuredIntent{Kind: KindTurnOn, Devices: []string{"office_light"}, Reasoning: "desk lamp requested", Confidence: 0.9, Source: SourceModel},
		},
		{
			name: "JSON wrapped in prose",
			raw:  "Sure! Here you go:\n```json\n{\"intent\": \"activate_scene\", \"scene\": \"movie_night\"}\n```",
			want: StructuredIntent{Kind: KindActivateScene, Scene: "movie_night", Confidence: 0.9, Source: SourceModel},
		},
		{
			name: "numeric value and single device string",
			raw:  `{"intent":"set_temperature","devices":"bedroom_heater","value":74,"confidence":0.4}`,
			want: StructuredIntent{Kind: KindSetTemperature, Devices: []string{"bedroom_heater"}, Value: "74", Confidence: 0.4, Source: SourceModel},
		},
		{
			name: "string null is empty",
			raw:  `{"intent":"toggle","scene":"null","value":"None"}`,
			want: StructuredIntent{Kind: KindToggleDevice, Confidence: 0.9, Source: SourceModel},
		},
		{
			name: "unknown intent string and extra fields",
			raw:  `{"intent":"schedule","when":"tomorrow","devices":[]}`,
			want: StructuredIntent{Kind: KindUnknown, Confidence: 0.9, Source: SourceModel},
		},
		{
			name: "missing intent",
			raw:  `{"reasoning":"not sure"}`,
			want: StructuredIntent{Kind: KindUnknown, Reasoning: "not sure", Confidence: 0.9, Source: SourceModel},
		},
		{
			name: "confidence clamped",
			raw:  `{"intent":"check_status","confidence":7}`,
			want: StructuredIntent{Kind: KindQueryStatus, Confidence: 1, Source: SourceModel},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "I cannot help with that", "{not json}", `{"intent": "turn_on"`} {
		if _, err := Parse(raw); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) error = %v, want ErrMalformed", raw, err)
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"turn_on":         KindTurnOn,
		"TURN_OFF":        KindTurnOff,
		"toggle":          KindToggleDevice,
		"set temperature": KindSetTemperature,
		"activate-scene":  KindActivateScene,
		"check_status":    KindQueryStatus,
		"clarify":         KindClarify,
		"dance":           KindUnknown,
		"":                KindUnknown,
	}
	for in, want := range tests {
		if got := ParseKind(in); got != want {
			t.Errorf("ParseKind(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestKind_Mutating(t *testing.T) {
	mutating := map[Kind]bool{
		KindToggleDevice: true, KindTurnOn: true, KindTurnOff: true,
		KindSetTemperature: true, KindActivateScene: true,
	}
	for _, k := range AllKinds() {
		if got := k.Mutating(); got != mutating[k] {
			t.Errorf("%s.Mutating() = %v, want %v", k, got, mutating[k])
		}
	}
}
