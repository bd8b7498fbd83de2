package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PinCommand is published on hearth/gpio/{pin}/set.
type PinCommand struct {
	RequestID string `json:"request_id"`
	Pin       int    `json:"pin"`
	High      bool   `json:"high"`
}

// PinAck is what the GPIO bridge publishes on hearth/gpio/{pin}/state.
type PinAck struct {
	RequestID string `json:"request_id"`
	Pin       int    `json:"pin"`
	High      bool   `json:"high"`
	Error     string `json:"error,omitempty"`
}

// StateEvent is the retained committed state on hearth/state/{device}.
type StateEvent struct {
	Device    string    `json:"device"`
	On        bool      `json:"is_on"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseBool reads a sensor payload that is either a JSON bool, a JSON
// object with a "value" field, or a bare word like "on"/"1"/"occupied".
func ParseBool(payload []byte) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(string(payload)))
	switch s {
	case "true", "1", "on", "yes", "occupied", "detected":
		return true, nil
	case "false", "0", "off", "no", "vacant", "clear", "":
		return false, nil
	}
	var obj struct {
		Value *bool `json:"value"`
	}
	if err := json.Unmarshal(payload, &obj); err == nil && obj.Value != nil {
		return *obj.Value, nil
	}
	return false, fmt.Errorf("mqtt: not a boolean payload: %q", s)
}

// ParseFloat reads a numeric sensor payload, bare or as {"value": n}.
func ParseFloat(payload []byte) (float64, error) {
	s := strings.TrimSpace(string(payload))
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	var obj struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(payload, &obj); err == nil && obj.Value != nil {
		return *obj.Value, nil
	}
	return 0, fmt.Errorf("mqtt: not a numeric payload: %q", s)
}
