package device

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// typeWords maps single words in a command to the device type they name.
// Used only when no alias or device name matched.
var typeWords = map[string]Type{
	"light": TypeLight, "lights": TypeLight, "lamp": TypeLight, "lamps": TypeLight,
	"fan": TypeFan, "fans": TypeFan,
	"heater": TypeHeater, "heaters": TypeHeater,
	"ac": TypeAC, "acs": TypeAC, "aircon": TypeAC,
	"lock": TypeDoorLock, "locks": TypeDoorLock,
	"curtain": TypeCurtain, "curtains": TypeCurtain, "blinds": TypeCurtain,
	"outlet": TypeOutlet, "outlets": TypeOutlet, "plug": TypeOutlet, "plugs": TypeOutlet,
	"alarm": TypeAlarm,
	"sensor": TypeSensor, "sensors": TypeSensor,
}

// aliasKey is one searchable phrase (an alias or a spaced device name).
type aliasKey struct {
	words  []string
	device string
}

// Registry is the catalogue of devices.
//
// Devices are kept in registration order; every list the registry returns
// follows that order so resolution is reproducible. Listeners registered
// with OnChange run after every successful mutation.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
	order   []string
	pins    map[int]string
	aliases map[string]string // normalised phrase -> device name
	keys    []aliasKey        // longest phrase first

	listenersMu sync.Mutex
	listeners   []func()

	logger Logger
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*Device),
		pins:    make(map[int]string),
		aliases: make(map[string]string),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// OnChange registers fn to be called after every Register or Remove.
func (r *Registry) OnChange(fn func()) {
	r.listenersMu.Lock()
	r.listeners = append(r.listeners, fn)
	r.listenersMu.Unlock()
}

func (r *Registry) notify() {
	r.listenersMu.Lock()
	fns := append([]func(){}, r.listeners...)
	r.listenersMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Register validates d and adds it to the registry.
//
// Returns a *DuplicateKeyError (matching ErrDuplicateKey) when the name, the
// pin, or any alias is already held by another device. A failed call leaves
// the registry unchanged.
func (r *Registry) Register(d Device) error {
	if err := ValidateDevice(&d); err != nil {
		return err
	}
	d = d.Clone()

	// Aliases are stored normalised and deduplicated within the device.
	phrases := []string{NormalizeAlias(d.Name)}
	seen := map[string]bool{phrases[0]: true}
	aliases := make([]string, 0, len(d.Aliases))
	for _, a := range d.Aliases {
		n := NormalizeAlias(a)
		if seen[n] {
			continue
		}
		seen[n] = true
		phrases = append(phrases, n)
		aliases = append(aliases, n)
	}
	d.Aliases = aliases

	r.mu.Lock()
	if _, exists := r.devices[d.Name]; exists {
		r.mu.Unlock()
		return &DuplicateKeyError{Field: "name", Key: d.Name, Owner: d.Name}
	}
	if owner, taken := r.pins[d.Pin]; taken {
		r.mu.Unlock()
		return &DuplicateKeyError{Field: "pin", Key: fmt.Sprint(d.Pin), Owner: owner}
	}
	for _, p := range phrases {
		if owner, taken := r.aliases[p]; taken {
			r.mu.Unlock()
			return &DuplicateKeyError{Field: "alias", Key: p, Owner: owner}
		}
	}

	r.devices[d.Name] = &d
	r.order = append(r.order, d.Name)
	r.pins[d.Pin] = d.Name
	for _, p := range phrases {
		r.aliases[p] = d.Name
	}
	r.rebuildKeysLocked()
	r.mu.Unlock()

	r.logger.Debug("device registered", "device", d.Name, "pin", d.Pin, "room", d.Room)
	r.notify()
	return nil
}

// Remove deletes a device. Returns ErrDeviceNotFound if it does not exist.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	d, ok := r.devices[name]
	if !ok {
		r.mu.Unlock()
		return ErrDeviceNotFound
	}
	delete(r.devices, name)
	delete(r.pins, d.Pin)
	for phrase, owner := range r.aliases {
		if owner == name {
			delete(r.aliases, phrase)
		}
	}
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.rebuildKeysLocked()
	r.mu.Unlock()

	r.logger.Info("device removed", "device", name)
	r.notify()
	return nil
}

func (r *Registry) rebuildKeysLocked() {
	keys := make([]aliasKey, 0, len(r.aliases))
	for phrase, owner := range r.aliases {
		keys = append(keys, aliasKey{words: strings.Fields(phrase), device: owner})
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if len(a.words) != len(b.words) {
			return len(a.words) > len(b.words)
		}
		la, lb := len(strings.Join(a.words, " ")), len(strings.Join(b.words, " "))
		if la != lb {
			return la > lb
		}
		return strings.Join(a.words, " ") < strings.Join(b.words, " ")
	})
	r.keys = keys
}

// Get returns a copy of the named device.
func (r *Registry) Get(name string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[name]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	return d.Clone(), nil
}

// Lookup finds the device whose name or alias is exactly phrase, ignoring
// case, underscores and extra whitespace. Unlike ResolveAlias it never
// falls back to type or room words.
func (r *Registry) Lookup(phrase string) (Device, bool) {
	key := NormalizeAlias(phrase)
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.aliases[key]
	if !ok {
		return Device{}, false
	}
	return r.devices[name].Clone(), true
}

// Has reports whether a device with this name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[name]
	return ok
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// List returns all devices in registration order.
func (r *Registry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filterLocked(func(*Device) bool { return true })
}

// Position returns the registration index of a device, or -1.
func (r *Registry) Position(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

// DevicesInRoom returns the devices in room, in registration order.
// "living room" and "living_room" name the same room.
func (r *Registry) DevicesInRoom(room string) []Device {
	want := NormalizeAlias(room)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filterLocked(func(d *Device) bool { return NormalizeAlias(d.Room) == want })
}

// DevicesByType returns every device of type t, in registration order.
func (r *Registry) DevicesByType(t Type) []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filterLocked(func(d *Device) bool { return d.Type == t })
}

// Rooms returns room names in order of first appearance.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rooms []string
	seen := make(map[string]bool)
	for _, n := range r.order {
		room := r.devices[n].Room
		if !seen[room] {
			seen[room] = true
			rooms = append(rooms, room)
		}
	}
	return rooms
}

func (r *Registry) filterLocked(keep func(*Device) bool) []Device {
	var out []Device
	for _, n := range r.order {
		if d := r.devices[n]; keep(d) {
			out = append(out, d.Clone())
		}
	}
	return out
}

// ResolveAlias finds the devices a piece of command text refers to.
//
// Aliases and device names are matched case-insensitively on word
// boundaries, longest phrase first, so "bedroom light" claims its words
// before "light" could. A trailing plural "s" is tolerated. When nothing
// matches directly, type words ("lights", "fan") and room names select
// every device of that type and/or in that room; "everything" selects all
// devices. The result is in registration order and empty on no match.
func (r *Registry) ResolveAlias(text string) []Device {
	words := tokenize(text)
	if len(words) == 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make(map[string]bool)
	used := make([]bool, len(words))
	for _, k := range r.keys {
		n := len(k.words)
		for i := 0; i+n <= len(words); i++ {
			if spanUsed(used, i, n) || !phraseAt(words, i, k.words) {
				continue
			}
			for j := i; j < i+n; j++ {
				used[j] = true
			}
			matched[k.device] = true
		}
	}
	if len(matched) > 0 {
		return r.filterLocked(func(d *Device) bool { return matched[d.Name] })
	}

	types := make(map[Type]bool)
	everything := false
	for _, w := range words {
		if t, ok := typeWords[w]; ok {
			types[t] = true
		}
		if w == "everything" {
			everything = true
		}
	}
	rooms := make(map[string]bool)
	for _, n := range r.order {
		room := r.devices[n].Room
		rw := strings.Fields(NormalizeAlias(room))
		for i := 0; i+len(rw) <= len(words); i++ {
			if phraseAt(words, i, rw) {
				rooms[room] = true
				break
			}
		}
	}

	switch {
	case len(types) > 0:
		return r.filterLocked(func(d *Device) bool {
			return types[d.Type] && (len(rooms) == 0 || rooms[d.Room])
		})
	case len(rooms) > 0:
		return r.filterLocked(func(d *Device) bool { return rooms[d.Room] })
	case everything:
		return r.filterLocked(func(*Device) bool { return true })
	}
	return nil
}

// tokenize lowercases text and splits it into words, treating underscores
// and punctuation as separators. Apostrophes are dropped so "kid's" stays
// one word.
func tokenize(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "'", "")
	return strings.FieldsFunc(text, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
}

func spanUsed(used []bool, start, n int) bool {
	for i := start; i < start+n; i++ {
		if used[i] {
			return true
		}
	}
	return false
}

func phraseAt(words []string, i int, phrase []string) bool {
	for j, p := range phrase {
		w := words[i+j]
		if w == p {
			continue
		}
		// tolerate a plural on the last word only
		if j == len(phrase)-1 && (w == p+"s" || w == p+"es") {
			continue
		}
		return false
	}
	return true
}
