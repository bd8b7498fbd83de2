// Package executor applies ActionSets to hardware and the state store.
//
// For each action, in order, the executor takes the device's lock and
// compares the desired state with the store. An unchanged device is skipped
// without touching hardware. Otherwise the pin is written under the
// configured timeout and, only if the write succeeds, the change is
// committed to the store. A failed write leaves the store untouched and the
// batch continues with the next device.
//
// After a commit the transition is fanned out to the optional sinks: SQLite
// history, InfluxDB, MQTT state events, WebSocket clients and Prometheus.
// Sink failures are logged and never change the report.
package executor
