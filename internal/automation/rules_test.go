package automation

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/hearth/internal/executor"
	"github.com/nerrad567/hearth/internal/intent"
	"github.com/nerrad567/hearth/internal/state"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func idleSnapshot(devices ...state.DeviceState) state.Snapshot {
	return state.Snapshot{
		Devices: devices,
		Context: state.Context{Occupancy: map[string]bool{"living_room": true, "bedroom": false}},
	}
}

func onSince(name, typ, room string, watts float64, since time.Time) state.DeviceState {
	return state.DeviceState{Name: name, Type: typ, Room: room, PowerWatts: watts, On: true, ChangedAt: since}
}

func TestIdleRule_Evaluate(t *testing.T) {
	now := t0.Add(time.Hour)
	tests := []struct {
		name   string
		device state.DeviceState
		want   bool
	}{
		{"idle in empty room", onSince("bedroom_ac", "ac", "bedroom", 1200, t0), true},
		{"room without sensor", onSince("kitchen_light", "light", "kitchen", 80, t0), true},
		{"occupied room", onSince("living_room_fan", "fan", "living_room", 75, t0), false},
		{"below threshold", onSince("bedroom_ac", "ac", "bedroom", 1200, now.Add(-29*time.Minute)), false},
		{"exactly threshold", onSince("bedroom_ac", "ac", "bedroom", 1200, now.Add(-30*time.Minute)), true},
		{"door lock exempt", onSince("front_door_lock", "door_lock", "entrance", 5, t0), false},
		{"alarm exempt", onSince("security_alarm", "alarm", "bedroom", 10, t0), false},
		{"shared room", onSince("smart_outlet_1", "outlet", "general", 0, t0), false},
		{"off", state.DeviceState{Name: "bedroom_light", Type: "light", Room: "bedroom", ChangedAt: t0}, false},
		{"never changed", onSince("bedroom_light", "light", "bedroom", 40, time.Time{}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewIdleRule(30 * time.Minute)
			p, ok := r.Evaluate(idleSnapshot(tt.device), now)
			if ok != tt.want {
				t.Fatalf("Evaluate() ok = %v, want %v", ok, tt.want)
			}
			if !ok {
				return
			}
			if len(p.Actions) != 1 || p.Actions[0] != (intent.Action{Device: tt.device.Name, On: false}) {
				t.Errorf("Actions = %v, want [%s off]", p.Actions, tt.device.Name)
			}
			if p.Rule != RuleIdle || p.Reason == "" {
				t.Errorf("Rule/Reason = %q/%q", p.Rule, p.Reason)
			}
		})
	}
}

func TestIdleRule_Savings(t *testing.T) {
	r := NewIdleRule(30 * time.Minute)
	p, ok := r.Evaluate(idleSnapshot(onSince("bedroom_ac", "ac", "bedroom", 1200, t0)), t0.Add(time.Hour))
	if !ok {
		t.Fatal("Evaluate() did not fire")
	}
	if got := p.Savings["bedroom_ac"]; got != 600 {
		t.Errorf("Savings = %v Wh, want 600", got)
	}
}

func TestIdleRule_OncePerEpisode(t *testing.T) {
	r := NewIdleRule(30 * time.Minute)
	ac := onSince("bedroom_ac", "ac", "bedroom", 1200, t0)
	now := t0.Add(time.Hour)

	p, ok := r.Evaluate(idleSnapshot(ac), now)
	if !ok {
		t.Fatal("first Evaluate() did not fire")
	}
	if _, ok := r.Evaluate(idleSnapshot(ac), now.Add(time.Minute)); ok {
		t.Fatal("fired twice for the same episode")
	}

	// Successful turn-off: the device is now off, then a new episode starts.
	r.Observe(p, executor.Report{Outcomes: []executor.Outcome{{Device: "bedroom_ac", Status: executor.StatusApplied}}})
	off := ac
	off.On = false
	off.ChangedAt = now
	if _, ok := r.Evaluate(idleSnapshot(off), now.Add(2*time.Minute)); ok {
		t.Fatal("fired for a device that is off")
	}

	second := onSince("bedroom_ac", "ac", "bedroom", 1200, now.Add(5*time.Minute))
	if _, ok := r.Evaluate(idleSnapshot(second), now.Add(10*time.Minute)); ok {
		t.Fatal("fired before the new episode passed the threshold")
	}
	if _, ok := r.Evaluate(idleSnapshot(second), now.Add(40*time.Minute)); !ok {
		t.Fatal("did not fire for a new idle episode")
	}
}

func TestIdleRule_RetryAfterFailure(t *testing.T) {
	r := NewIdleRule(30 * time.Minute)
	ac := onSince("bedroom_ac", "ac", "bedroom", 1200, t0)
	now := t0.Add(time.Hour)

	p, _ := r.Evaluate(idleSnapshot(ac), now)
	r.Observe(p, executor.Report{Outcomes: []executor.Outcome{{
		Device: "bedroom_ac", Status: executor.StatusFailed, Reason: "timed out", Err: errors.New("timeout"),
	}}})

	if _, ok := r.Evaluate(idleSnapshot(ac), now.Add(time.Minute)); !ok {
		t.Error("failed turn-off was not retried")
	}
}

func TestIdleRule_MultipleDevicesOrdered(t *testing.T) {
	r := NewIdleRule(30 * time.Minute)
	p, ok := r.Evaluate(idleSnapshot(
		onSince("bedroom_light", "light", "bedroom", 40, t0),
		onSince("kitchen_light", "light", "kitchen", 80, t0),
		onSince("bedroom_ac", "ac", "bedroom", 1200, t0),
	), t0.Add(time.Hour))
	if !ok {
		t.Fatal("Evaluate() did not fire")
	}
	want := []string{"bedroom_light", "kitchen_light", "bedroom_ac"}
	got := p.Actions.Devices()
	if len(got) != len(want) {
		t.Fatalf("Devices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Devices[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if p.Reason != "on for over 30m0s with nobody in bedroom, kitchen" {
		t.Errorf("Reason = %q", p.Reason)
	}
}

type stubResolver struct {
	res intent.Resolution
	err error
	got []intent.StructuredIntent
}

func (s *stubResolver) Resolve(in intent.StructuredIntent) (intent.Resolution, error) {
	s.got = append(s.got, in)
	return s.res, s.err
}

func TestComfortRule_Evaluate(t *testing.T) {
	cooling := intent.Resolution{
		Actions: intent.ActionSet{{Device: "bedroom_ac", On: true}, {Device: "bedroom_heater", On: false}},
		Mode:    intent.ModeCooling,
	}
	tests := []struct {
		name string
		temp float64
		mode intent.TemperatureMode
		res  intent.Resolution
		err  error
		want bool
	}{
		{"too hot", 80, intent.ModeNeutral, cooling, nil, true},
		{"too hot while heating", 80, intent.ModeHeating, cooling, nil, true},
		{"already cooling", 80, intent.ModeCooling, cooling, nil, false},
		{"at ceiling", 76, intent.ModeNeutral, cooling, nil, false},
		{"nothing to switch", 80, intent.ModeNeutral, intent.Resolution{Mode: intent.ModeCooling}, nil, false},
		{"resolver error", 80, intent.ModeNeutral, cooling, errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &stubResolver{res: tt.res, err: tt.err}
			r := NewComfortRule(76, res)
			snap := state.Snapshot{Context: state.Context{Temperature: tt.temp, TemperatureMode: tt.mode}}

			p, ok := r.Evaluate(snap, t0)
			if ok != tt.want {
				t.Fatalf("Evaluate() ok = %v, want %v", ok, tt.want)
			}
			if !ok {
				return
			}
			if p.Mode != intent.ModeCooling || len(p.Actions) != 2 {
				t.Errorf("proposal = %+v", p)
			}
			if len(res.got) != 1 || res.got[0].Kind != intent.KindSetTemperature || res.got[0].Value != "decrease" {
				t.Errorf("resolver called with %+v", res.got)
			}
		})
	}
}
