package device

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

func testDevice(name string, pin int, typ Type, room string, aliases ...string) Device {
	return Device{Name: name, Pin: pin, Type: typ, Room: room, PowerWatts: 50, Aliases: aliases}
}

func newTestRegistry(t *testing.T, devices ...Device) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, d := range devices {
		if err := r.Register(d); err != nil {
			t.Fatalf("Register(%s) error = %v", d.Name, err)
		}
	}
	return r
}

func names(devices []Device) []string {
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Name)
	}
	return out
}

func officeRegistry(t *testing.T) *Registry {
	return newTestRegistry(t,
		testDevice("office_light", 1, TypeLight, "office", "desk lamp"),
		testDevice("office_fan", 2, TypeFan, "office"),
		testDevice("living_room_light", 3, TypeLight, "living_room", "main light"),
		testDevice("living_room_fan", 4, TypeFan, "living_room"),
		testDevice("bedroom_light", 5, TypeLight, "bedroom", "bedroom light"),
	)
}

func TestRegistry_Register(t *testing.T) {
	r := newTestRegistry(t, testDevice("office_light", 1, TypeLight, "office", "Desk  Lamp"))

	got, err := r.Get("office_light")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !reflect.DeepEqual(got.Aliases, []string{"desk lamp"}) {
		t.Errorf("Aliases = %v, want normalised [desk lamp]", got.Aliases)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_RegisterDuplicateKey(t *testing.T) {
	tests := []struct {
		name      string
		device    Device
		wantField string
	}{
		{"same name", testDevice("office_light", 9, TypeLight, "office"), "name"},
		{"same pin", testDevice("hall_light", 1, TypeLight, "hall"), "pin"},
		{"shared alias", testDevice("hall_light", 9, TypeLight, "hall", "desk lamp"), "alias"},
		{"alias equal to a device name", testDevice("hall_light", 9, TypeLight, "hall", "office light"), "alias"},
		{"alias case differs", testDevice("hall_light", 9, TypeLight, "hall", "DESK LAMP"), "alias"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, testDevice("office_light", 1, TypeLight, "office", "desk lamp"))
			before := r.List()

			err := r.Register(tt.device)
			if !errors.Is(err, ErrDuplicateKey) {
				t.Fatalf("Register() error = %v, want ErrDuplicateKey", err)
			}
			var dup *DuplicateKeyError
			if !errors.As(err, &dup) {
				t.Fatalf("error is not *DuplicateKeyError: %T", err)
			}
			if dup.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", dup.Field, tt.wantField)
			}
			if dup.Owner != "office_light" {
				t.Errorf("Owner = %q, want office_light", dup.Owner)
			}

			// Registry is unchanged after the failed attempt.
			if !reflect.DeepEqual(r.List(), before) {
				t.Errorf("registry changed: %v, want %v", r.List(), before)
			}
			if r.Has("hall_light") {
				t.Error("failed device was registered")
			}
			if got := names(r.ResolveAlias("hall light")); len(got) != 0 {
				t.Errorf("ResolveAlias(hall light) = %v, want none", got)
			}
		})
	}
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	tests := []struct {
		name    string
		device  Device
		wantErr error
	}{
		{"empty name", Device{Pin: 1, Type: TypeLight, Room: "x"}, ErrInvalidName},
		{"upper case name", Device{Name: "Lamp", Pin: 1, Type: TypeLight, Room: "x"}, ErrInvalidName},
		{"zero pin", Device{Name: "lamp", Pin: 0, Type: TypeLight, Room: "x"}, ErrInvalidPin},
		{"unknown type", Device{Name: "lamp", Pin: 1, Type: "toaster", Room: "x"}, ErrInvalidType},
		{"negative power", Device{Name: "lamp", Pin: 1, Type: TypeLight, Room: "x", PowerWatts: -1}, ErrInvalidDevice},
		{"no room", Device{Name: "lamp", Pin: 1, Type: TypeLight}, ErrInvalidDevice},
		{"blank alias", Device{Name: "lamp", Pin: 1, Type: TypeLight, Room: "x", Aliases: []string{"  "}}, ErrInvalidDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.device)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_RemoveFreesKeys(t *testing.T) {
	r := officeRegistry(t)

	if err := r.Remove("office_light"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := r.Get("office_light"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get() after remove error = %v, want ErrDeviceNotFound", err)
	}
	if err := r.Remove("office_light"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second Remove() error = %v, want ErrDeviceNotFound", err)
	}

	// Pin and alias can be reused.
	if err := r.Register(testDevice("study_lamp", 1, TypeLight, "study", "desk lamp")); err != nil {
		t.Fatalf("Register() reusing keys error = %v", err)
	}
	if got := names(r.ResolveAlias("desk lamp")); !reflect.DeepEqual(got, []string{"study_lamp"}) {
		t.Errorf("ResolveAlias(desk lamp) = %v, want [study_lamp]", got)
	}
}

func TestRegistry_OnChange(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.OnChange(func() { calls++ })

	_ = r.Register(testDevice("lamp", 1, TypeLight, "office"))
	_ = r.Register(testDevice("lamp", 2, TypeLight, "office")) // duplicate, no notification
	_ = r.Remove("lamp")

	if calls != 2 {
		t.Errorf("OnChange called %d times, want 2", calls)
	}
}

func TestRegistry_ListKeepsInsertionOrder(t *testing.T) {
	r := newTestRegistry(t,
		testDevice("zeta", 1, TypeLight, "a"),
		testDevice("alpha", 2, TypeFan, "b"),
		testDevice("mid", 3, TypeLight, "a"),
	)

	want := []string{"zeta", "alpha", "mid"}
	if got := names(r.List()); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
	if got := r.Position("mid"); got != 2 {
		t.Errorf("Position(mid) = %d, want 2", got)
	}
	if got := r.Rooms(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Rooms() = %v, want [a b]", got)
	}
}

func TestRegistry_DevicesInRoomAndType(t *testing.T) {
	r := officeRegistry(t)

	if got := names(r.DevicesInRoom("living room")); !reflect.DeepEqual(got, []string{"living_room_light", "living_room_fan"}) {
		t.Errorf("DevicesInRoom(living room) = %v", got)
	}
	if got := names(r.DevicesInRoom("living_room")); len(got) != 2 {
		t.Errorf("DevicesInRoom(living_room) = %v, want 2 devices", got)
	}
	if got := r.DevicesInRoom("attic"); len(got) != 0 {
		t.Errorf("DevicesInRoom(attic) = %v, want none", got)
	}
	if got := names(r.DevicesByType(TypeLight)); !reflect.DeepEqual(got, []string{"office_light", "living_room_light", "bedroom_light"}) {
		t.Errorf("DevicesByType(light) = %v", got)
	}
}

func TestRegistry_ResolveAlias(t *testing.T) {
	r := officeRegistry(t)

	tests := []struct {
		text string
		want []string
	}{
		{"turn on the desk lamp", []string{"office_light"}},
		{"Turn on the DESK LAMP!", []string{"office_light"}},
		{"office fan please", []string{"office_fan"}},
		{"office_fan", []string{"office_fan"}},
		{"bedroom lights", []string{"bedroom_light"}},
		{"desk lamp and the office fan", []string{"office_light", "office_fan"}},
		// Type word matches every device of that type.
		{"lights", []string{"office_light", "living_room_light", "bedroom_light"}},
		// Type word narrowed by a room.
		{"the living room fans", []string{"living_room_fan"}},
		// Room alone selects the whole room.
		{"everything in the office", []string{"office_light", "office_fan"}},
		{"switch off everything", []string{"office_light", "office_fan", "living_room_light", "living_room_fan", "bedroom_light"}},
		{"make me a sandwich", nil},
		{"", nil},
		// "desk" alone is not an alias.
		{"desk", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := names(r.ResolveAlias(tt.text))
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveAlias(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestRegistry_ResolveAliasLongestMatchFirst(t *testing.T) {
	r := newTestRegistry(t,
		testDevice("hall_light", 1, TypeLight, "hall", "light"),
		testDevice("porch_light", 2, TypeLight, "porch", "porch light"),
	)

	// "porch light" wins over the shorter "light" alias for the same words.
	if got := names(r.ResolveAlias("porch light")); !reflect.DeepEqual(got, []string{"porch_light"}) {
		t.Errorf("ResolveAlias(porch light) = %v, want [porch_light]", got)
	}
	if got := names(r.ResolveAlias("the light")); !reflect.DeepEqual(got, []string{"hall_light"}) {
		t.Errorf("ResolveAlias(the light) = %v, want [hall_light]", got)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := officeRegistry(t)

	tests := []struct {
		phrase string
		want   string
		found  bool
	}{
		{"office_light", "office_light", true},
		{"Desk Lamp", "office_light", true},
		{"office  fan", "office_fan", true},
		{"lights", "", false},
		{"turn on the desk lamp", "", false},
	}
	for _, tt := range tests {
		d, ok := r.Lookup(tt.phrase)
		if ok != tt.found || d.Name != tt.want {
			t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", tt.phrase, d.Name, ok, tt.want, tt.found)
		}
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := officeRegistry(t)

	d, _ := r.Get("office_light")
	d.Aliases[0] = "mutated"

	again, _ := r.Get("office_light")
	if again.Aliases[0] != "desk lamp" {
		t.Errorf("registry alias mutated through Get(): %v", again.Aliases)
	}
}

func TestDefaultDevicesRegister(t *testing.T) {
	r := NewRegistry()
	for _, d := range DefaultDevices() {
		if err := r.Register(d); err != nil {
			t.Fatalf("Register(%s) error = %v", d.Name, err)
		}
	}
	if r.Len() != 11 {
		t.Errorf("Len() = %d, want 11", r.Len())
	}
	if got := names(r.ResolveAlias("turn on the lounge light")); !reflect.DeepEqual(got, []string{"living_room_light"}) {
		t.Errorf("ResolveAlias(lounge light) = %v", got)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := officeRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.ResolveAlias("desk lamp")
			r.List()
			r.DevicesInRoom("office")
			_ = r.Register(testDevice("extra_"+string(rune('a'+i)), 100+i, TypeOutlet, "garage"))
		}(i)
	}
	wg.Wait()

	if r.Len() != 25 {
		t.Errorf("Len() = %d, want 25", r.Len())
	}
}
