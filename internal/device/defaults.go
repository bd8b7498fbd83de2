package device

// DefaultDevices returns the built-in catalogue used when no catalogue file
// is configured.
func DefaultDevices() []Device {
	return []Device{
		{Name: "living_room_light", Pin: 7, Type: TypeLight, Room: "living_room", PowerWatts: 60,
			Aliases: []string{"living room light", "main light", "lounge light"}},
		{Name: "living_room_fan", Pin: 11, Type: TypeFan, Room: "living_room", PowerWatts: 75,
			Aliases: []string{"living room fan", "main fan"}},
		{Name: "bedroom_light", Pin: 13, Type: TypeLight, Room: "bedroom", PowerWatts: 40,
			Aliases: []string{"bedroom light", "bed light"}},
		{Name: "bedroom_ac", Pin: 15, Type: TypeAC, Room: "bedroom", PowerWatts: 1200,
			Aliases: []string{"bedroom ac", "bedroom air conditioner", "air conditioner"}},
		{Name: "bedroom_heater", Pin: 31, Type: TypeHeater, Room: "bedroom", PowerWatts: 1500,
			Aliases: []string{"bedroom heater", "space heater"}},
		{Name: "kitchen_light", Pin: 16, Type: TypeLight, Room: "kitchen", PowerWatts: 80,
			Aliases: []string{"kitchen light"}},
		{Name: "kitchen_exhaust", Pin: 18, Type: TypeFan, Room: "kitchen", PowerWatts: 30,
			Aliases: []string{"exhaust fan", "kitchen fan", "exhaust"}},
		{Name: "front_door_lock", Pin: 22, Type: TypeDoorLock, Room: "entrance", PowerWatts: 5,
			Aliases: []string{"front door", "main door", "door lock"}},
		{Name: "security_alarm", Pin: 24, Type: TypeAlarm, Room: "general", PowerWatts: 10,
			Aliases: []string{"security alarm", "security"}},
		{Name: "garden_light", Pin: 26, Type: TypeLight, Room: "outdoor", PowerWatts: 100,
			Aliases: []string{"garden light", "outdoor light", "yard light"}},
		{Name: "smart_outlet_1", Pin: 29, Type: TypeOutlet, Room: "general", PowerWatts: 0,
			Aliases: []string{"outlet 1", "plug 1", "smart outlet"}},
	}
}
