// Package device provides the Device Registry for Hearth.
//
// The registry is the catalogue of controllable devices: each has a unique
// snake_case name, a unique hardware pin, a type, a room, a power rating used
// for energy accounting, and a set of aliases that are unique across the
// whole registry.
//
// The registry does not track on/off state; that belongs to the state store
// and is changed only by the executor.
//
// # Usage
//
//	reg := device.NewRegistry()
//	reg.SetLogger(log)
//	for _, d := range device.DefaultDevices() {
//	    if err := reg.Register(d); err != nil {
//	        return err
//	    }
//	}
//
//	reg.ResolveAlias("turn on the desk lamp") // -> office_light
//	reg.ResolveAlias("lights")                // -> every light
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. OnChange listeners run
// synchronously after the mutation has been committed and the lock released.
package device
