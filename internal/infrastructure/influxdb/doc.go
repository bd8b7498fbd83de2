// Package influxdb records hearth telemetry in InfluxDB v2.
//
// Points written:
//   - device_state: every committed on/off transition, tagged by device,
//     room and source
//   - energy: watt-hours consumed over each completed on-period
//   - command: per-command latency tagged by intent and cache hit
//   - climate: temperature and humidity readings from sensors
//
// Writes are batched per config (batch_size, flush_interval) and never block
// the command path. InfluxDB is optional; Connect returns ErrDisabled when it
// is switched off and callers carry on without it.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.WriteEnergy("ceiling_fan", 75, 37.5, 30*time.Minute, time.Now())
package influxdb
