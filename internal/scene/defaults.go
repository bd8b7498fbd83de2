package scene

import "github.com/nerrad567/hearth/internal/device"

// DefaultScenes returns the built-in scenes for the given device catalogue.
// The away scene switches off every light in devices, so it is built from
// the catalogue rather than a fixed list. Targets naming devices that are
// not in the catalogue are dropped.
func DefaultScenes(devices []device.Device) []Scene {
	known := make(map[string]bool, len(devices))
	away := map[string]bool{"security_alarm": true, "front_door_lock": true}
	for _, d := range devices {
		known[d.Name] = true
		if d.Type == device.TypeLight {
			away[d.Name] = false
		}
	}

	scenes := []Scene{
		{Name: "movie_night", Description: "Dims lights for movie watching", Targets: map[string]bool{
			"living_room_light": false, "kitchen_light": false, "living_room_fan": true,
		}},
		{Name: "dinner", Description: "Bright kitchen for cooking", Targets: map[string]bool{
			"kitchen_light": true, "kitchen_exhaust": true, "living_room_light": true,
		}},
		{Name: "sleep", Description: "Nighttime sleep mode", Targets: map[string]bool{
			"bedroom_light": false, "bedroom_ac": true, "living_room_light": false,
			"kitchen_light": false, "garden_light": false, "security_alarm": true,
		}},
		{Name: "wake_up", Description: "Morning wake up routine", Targets: map[string]bool{
			"bedroom_light": true, "kitchen_light": true, "security_alarm": false,
		}},
		{Name: "away", Description: "Security mode when away", Targets: away},
	}

	out := scenes[:0]
	for _, s := range scenes {
		for name := range s.Targets {
			if !known[name] {
				delete(s.Targets, name)
			}
		}
		if len(s.Targets) > 0 {
			out = append(out, s)
		}
	}
	return out
}
