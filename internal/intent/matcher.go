package intent

import (
	"strings"
	"unicode"

	"github.com/nerrad567/hearth/internal/device"
)

// Confidence scores for pattern matches. They sit below what the model
// usually reports so a confident model answer is preferred in logs.
const (
	patternConfidence     = 0.5
	temperatureConfidence = 0.8
	statusConfidence      = 0.9
)

var (
	onPhrases     = []string{"turn on", "switch on", "power on", "enable", "start"}
	offPhrases    = []string{"turn off", "switch off", "power off", "shut off", "disable", "deactivate", "kill", "stop"}
	togglePhrases = []string{"toggle", "flip"}
	hotWords      = []string{"hot", "sweating", "boiling", "stuffy", "cooler", "cool down"}
	coldWords     = []string{"cold", "freezing", "chilly", "frozen", "warmer", "warm up", "heat up"}
	statusPhrases = []string{"status", "whats on", "what is on", "which devices", "report", "show me"}
	splitVerbs    = []string{"turn", "switch", "put"}
)

// AliasResolver is the part of the device registry the matcher uses.
type AliasResolver interface {
	ResolveAlias(text string) []device.Device
}

// SceneNamer lists known scene names.
type SceneNamer interface {
	Names() []string
}

// Matcher derives an intent from raw text with keyword rules. It is the
// fallback when the language backend returns something unusable.
type Matcher struct {
	devices AliasResolver
	scenes  SceneNamer
}

// NewMatcher creates a matcher over the given registries.
func NewMatcher(devices AliasResolver, scenes SceneNamer) *Matcher {
	return &Matcher{devices: devices, scenes: scenes}
}

// Match returns the best keyword interpretation of text. The second result
// is false when no rule applied; the intent is then KindUnknown.
//
// Rules run in order: scene names, on/off/toggle verbs with a resolvable
// device, hot/cold words, status words.
func (m *Matcher) Match(text string) (StructuredIntent, bool) {
	phrase := " " + strings.Join(words(text), " ") + " "

	for _, name := range m.scenes.Names() {
		if containsPhrase(phrase, strings.ReplaceAll(name, "_", " ")) {
			return StructuredIntent{
				Kind:       KindActivateScene,
				Scene:      name,
				Reasoning:  "Activating " + name + " scene",
				Confidence: patternConfidence,
				Source:     SourcePattern,
			}, true
		}
	}

	if kind, ok := verbKind(phrase); ok {
		if found := m.devices.ResolveAlias(text); len(found) > 0 {
			names := make([]string, len(found))
			for i, d := range found {
				names[i] = d.Name
			}
			return StructuredIntent{
				Kind:       kind,
				Devices:    names,
				Reasoning:  "Pattern match for " + strings.ToLower(string(kind)),
				Confidence: patternConfidence,
				Fragments:  []string{text},
				Source:     SourcePattern,
			}, true
		}
	}

	switch {
	case containsAny(phrase, hotWords):
		return StructuredIntent{
			Kind: KindSetTemperature, Value: "decrease", Reasoning: "User feels hot",
			Confidence: temperatureConfidence, Source: SourcePattern,
		}, true
	case containsAny(phrase, coldWords):
		return StructuredIntent{
			Kind: KindSetTemperature, Value: "increase", Reasoning: "User feels cold",
			Confidence: temperatureConfidence, Source: SourcePattern,
		}, true
	case containsAny(phrase, statusPhrases):
		return StructuredIntent{
			Kind: KindQueryStatus, Reasoning: "Status check request",
			Confidence: statusConfidence, Source: SourcePattern,
		}, true
	}

	return StructuredIntent{
		Kind:       KindUnknown,
		Reasoning:  "No pattern matched",
		Confidence: 0.1,
		Fragments:  []string{text},
		Source:     SourcePattern,
	}, false
}

// verbKind finds an on/off/toggle verb. "turn the lamp off" counts as well
// as "turn off the lamp".
func verbKind(phrase string) (Kind, bool) {
	switch {
	case containsAny(phrase, offPhrases):
		return KindTurnOff, true
	case containsAny(phrase, onPhrases):
		return KindTurnOn, true
	case containsAny(phrase, togglePhrases):
		return KindToggleDevice, true
	}
	if !containsAny(phrase, splitVerbs) {
		return "", false
	}
	switch {
	case containsPhrase(phrase, "off"):
		return KindTurnOff, true
	case containsPhrase(phrase, "on"):
		return KindTurnOn, true
	}
	return "", false
}

func words(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "'", "")
	return strings.FieldsFunc(text, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
}

// containsPhrase matches whole words; phrase is space padded.
func containsPhrase(phrase, p string) bool {
	return strings.Contains(phrase, " "+p+" ")
}

func containsAny(phrase string, ps []string) bool {
	for _, p := range ps {
		if containsPhrase(phrase, p) {
			return true
		}
	}
	return false
}
