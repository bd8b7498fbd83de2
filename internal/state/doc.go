// Package state is the single source of truth for device on/off state and
// the household context (temperature mode, occupancy, energy, cache stats).
//
// Every state change goes through Store.Apply, which serialises on one
// mutex. Callers must not hold the store across slow work: the executor
// calls hardware first and only then commits the change with Apply.
//
// Energy is accounted per device as power_watts x time on. A device turning
// on starts an accrual timer; turning off adds the elapsed energy to the
// running total. Snapshots include the energy accrued so far by devices that
// are still on, so the total never decreases.
//
// SQLiteRepository persists last known states and a transition history. It
// is written to by the executor and never read on the command path.
package state
