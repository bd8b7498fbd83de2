package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/hearth/internal/device"
	"github.com/nerrad567/hearth/internal/intent"
)

// Catalog is the part of the device registry the store joins against.
type Catalog interface {
	Get(name string) (device.Device, error)
	List() []device.Device
	DevicesInRoom(room string) []device.Device
}

// deviceState is the mutable record behind DeviceState.
type deviceState struct {
	on        bool
	changedAt time.Time
	// watts is captured when the device turns on so accrual survives the
	// device being removed from the registry.
	watts float64
}

// Store holds device states and the household context behind one mutex.
//
// All public methods are thread-safe. Apply is the only method that
// changes a device's on/off state.
type Store struct {
	catalog Catalog
	now     func() time.Time

	mu       sync.Mutex
	devices  map[string]*deviceState
	ctx      Context
	recent   *Ring[string]
	energyWh float64 // committed energy of completed on-periods
}

// NewStore creates a store with every device off.
func NewStore(catalog Catalog) *Store {
	return &Store{
		catalog: catalog,
		now:     time.Now,
		devices: make(map[string]*deviceState),
		recent:  NewRing[string](DefaultRecentCommands),
		ctx: Context{
			TemperatureMode:    intent.ModeNeutral,
			Temperature:        DefaultTemperature,
			OutdoorTemperature: DefaultOutdoorTemperature,
			Humidity:           DefaultHumidity,
			Occupancy:          map[string]bool{"living_room": true, "bedroom": false, "kitchen": false},
		},
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Transition describes one Commit call.
type Transition struct {
	Device  string
	On      bool
	Changed bool
	At      time.Time
	// Watts is the draw accrued over the on-period (for turn-offs) or
	// starting now (for turn-ons).
	Watts float64
	// OnFor and EnergyWh are set when a device turns off.
	OnFor    time.Duration
	EnergyWh float64
}

// Apply commits a device's new state and reports whether it changed.
//
// Turning on starts the energy accrual timer; turning off adds
// power x elapsed time to the cumulative total. Applying the current state
// again is a no-op returning false.
func (s *Store) Apply(name string, on bool) (bool, error) {
	t, err := s.Commit(name, on)
	return t.Changed, err
}

// Commit is Apply returning the full transition.
func (s *Store) Commit(name string, on bool) (Transition, error) {
	d, err := s.catalog.Get(name)
	if err != nil {
		return Transition{Device: name, On: on}, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := Transition{Device: name, On: on}
	st := s.devices[name]
	if st == nil {
		st = &deviceState{}
		s.devices[name] = st
	}
	if st.on == on {
		return t, nil
	}

	now := s.now()
	t.Changed = true
	t.At = now
	if on {
		st.watts = d.PowerWatts
		t.Watts = st.watts
	} else {
		t.Watts = st.watts
		t.OnFor = now.Sub(st.changedAt)
		t.EnergyWh = st.watts * t.OnFor.Hours()
		s.energyWh += t.EnergyWh
	}
	st.on = on
	st.changedAt = now

	if d.Type == device.TypeAlarm {
		s.ctx.SecurityArmed = on
	}
	return t, nil
}

// IsOn reports the current state of a device. Unknown devices are off.
func (s *Store) IsOn(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.devices[name]
	return st != nil && st.on
}

// Temperature returns the indoor temperature in Fahrenheit.
func (s *Store) Temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx.Temperature
}

// Snapshot returns a copy of every registered device's state and the
// context, with energy accrued up to now.
func (s *Store) Snapshot() Snapshot {
	catalog := s.catalog.List()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	snap := Snapshot{At: now, Devices: make([]DeviceState, 0, len(catalog))}
	for _, d := range catalog {
		snap.Devices = append(snap.Devices, s.joinLocked(d))
	}
	snap.Context = s.contextLocked(now)
	return snap
}

// RoomSummary returns the devices of one room and which of them are on.
func (s *Store) RoomSummary(room string) RoomSummary {
	devices := s.catalog.DevicesInRoom(room)

	s.mu.Lock()
	defer s.mu.Unlock()

	sum := RoomSummary{Room: room, Occupied: s.ctx.Occupancy[room], Devices: make([]DeviceState, 0, len(devices))}
	for _, d := range devices {
		ds := s.joinLocked(d)
		sum.Devices = append(sum.Devices, ds)
		if ds.On {
			sum.Active = append(sum.Active, ds.Name)
			sum.PowerWatts += ds.PowerWatts
		}
	}
	return sum
}

func (s *Store) joinLocked(d device.Device) DeviceState {
	ds := DeviceState{
		Name:       d.Name,
		Type:       string(d.Type),
		Room:       d.Room,
		Pin:        d.Pin,
		PowerWatts: d.PowerWatts,
		Aliases:    d.Aliases,
	}
	if st := s.devices[d.Name]; st != nil {
		ds.On = st.on
		ds.ChangedAt = st.changedAt
	}
	return ds
}

func (s *Store) contextLocked(now time.Time) Context {
	c := s.ctx
	c.Occupancy = make(map[string]bool, len(s.ctx.Occupancy))
	for room, occ := range s.ctx.Occupancy {
		c.Occupancy[room] = occ
	}
	c.RecentCommands = s.recent.Items()

	c.EnergyWh = s.energyWh
	c.PowerWatts = 0
	for _, st := range s.devices {
		if st.on {
			c.PowerWatts += st.watts
			c.EnergyWh += st.watts * now.Sub(st.changedAt).Hours()
		}
	}
	return c
}

// Context returns a copy of the household context.
func (s *Store) Context() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextLocked(s.now())
}

// SetTemperatureMode records the climate direction last requested.
func (s *Store) SetTemperatureMode(m intent.TemperatureMode) {
	s.mu.Lock()
	s.ctx.TemperatureMode = m
	s.mu.Unlock()
}

// SetTemperature records an indoor temperature reading.
func (s *Store) SetTemperature(f float64) {
	s.mu.Lock()
	s.ctx.Temperature = f
	s.mu.Unlock()
}

// SetHumidity records an indoor humidity reading in percent.
func (s *Store) SetHumidity(pct float64) {
	s.mu.Lock()
	s.ctx.Humidity = pct
	s.mu.Unlock()
}

// SetOccupancy records whether anyone is in room.
func (s *Store) SetOccupancy(room string, occupied bool) {
	s.mu.Lock()
	s.ctx.Occupancy[room] = occupied
	s.mu.Unlock()
}

// Occupied reports whether room currently has an occupancy signal.
func (s *Store) Occupied(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx.Occupancy[room]
}

// SetSleepMode toggles the sleep flag.
func (s *Store) SetSleepMode(on bool) {
	s.mu.Lock()
	s.ctx.SleepMode = on
	s.mu.Unlock()
}

// SetVacationMode toggles the vacation flag.
func (s *Store) SetVacationMode(on bool) {
	s.mu.Lock()
	s.ctx.VacationMode = on
	s.mu.Unlock()
}

// RecordCommand adds text to the recent-commands ring.
func (s *Store) RecordCommand(text string) {
	s.mu.Lock()
	s.recent.Push(text)
	s.mu.Unlock()
}

// RecordCacheLookup counts one cache hit or miss.
func (s *Store) RecordCacheLookup(hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit {
		s.ctx.Cache.Hits++
	} else {
		s.ctx.Cache.Misses++
	}
	total := s.ctx.Cache.Hits + s.ctx.Cache.Misses
	s.ctx.Cache.HitRate = float64(s.ctx.Cache.Hits) / float64(total)
}

// RecordAutomation counts one automation trigger and credits savedWh.
func (s *Store) RecordAutomation(savedWh float64) {
	s.mu.Lock()
	s.ctx.AutomationTriggers++
	if savedWh > 0 {
		s.ctx.EnergySavedWh += savedWh
	}
	s.mu.Unlock()
}
