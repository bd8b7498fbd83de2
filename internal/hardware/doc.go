// Package hardware is hearth's pin-level capability.
//
// Driver has two operations, SetPin and ReadPin. Both fail with a
// *HardwareError naming the pin and the operation. Two drivers exist:
//
//   - Simulator keeps pin levels in memory and can be told to fail specific
//     pins. It is the default driver and the one tests use.
//   - MQTTDriver forwards writes to an external GPIO bridge over MQTT
//     (hearth/gpio/{pin}/set) and waits for the bridge's acknowledgement on
//     hearth/gpio/{pin}/state.
//
// Callers bound every call with a context deadline; a write that outlives it
// is reported as failed and never retried by the driver.
package hardware
