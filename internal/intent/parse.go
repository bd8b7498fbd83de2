package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// defaultModelConfidence applies when the backend omits a confidence score.
const defaultModelConfidence = 0.9

// wireIntent is the JSON object the language backend is asked to produce.
// Every field is optional and loosely typed.
type wireIntent struct {
	Intent     string          `json:"intent"`
	Devices    json.RawMessage `json:"devices"`
	Scene      json.RawMessage `json:"scene"`
	Value      json.RawMessage `json:"value"`
	Reasoning  string          `json:"reasoning"`
	Confidence *float64        `json:"confidence"`
}

// Parse reads a StructuredIntent from raw backend output.
//
// The whole text is tried as JSON first; failing that, the outermost {...}
// block inside it. Extra fields are ignored and missing ones left empty.
// devices may be a list or a single string; value may be a string or a
// number. An unrecognised intent string yields KindUnknown, not an error.
// Returns ErrMalformed when no object can be read at all.
func Parse(raw string) (StructuredIntent, error) {
	w, err := decodeWire(raw)
	if err != nil {
		return StructuredIntent{}, err
	}

	in := StructuredIntent{
		Kind:       ParseKind(w.Intent),
		Devices:    stringList(w.Devices),
		Scene:      scalarString(w.Scene),
		Value:      scalarString(w.Value),
		Reasoning:  strings.TrimSpace(w.Reasoning),
		Confidence: defaultModelConfidence,
		Source:     SourceModel,
	}
	if w.Confidence != nil {
		in.Confidence = clamp(*w.Confidence)
	}
	return in, nil
}

func decodeWire(raw string) (wireIntent, error) {
	var w wireIntent
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return w, fmt.Errorf("%w: empty", ErrMalformed)
	}
	if err := json.Unmarshal([]byte(trimmed), &w); err == nil {
		return w, nil
	}

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end <= start {
		return w, fmt.Errorf("%w: no JSON object", ErrMalformed)
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &w); err != nil {
		return w, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return w, nil
}

// stringList accepts ["a","b"], "a", or null.
func stringList(raw json.RawMessage) []string {
	if isNull(raw) {
		return nil
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		var out []string
		for _, v := range list {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" && v != nil {
				out = append(out, s)
			}
		}
		return out
	}
	if s := scalarString(raw); s != "" {
		return []string{s}
	}
	return nil
}

// scalarString renders a JSON string or number; null and "null" are empty.
func scalarString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
			return ""
		}
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
