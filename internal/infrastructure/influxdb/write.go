package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDeviceState = "device_state"
	MeasurementEnergy      = "energy"
	MeasurementCommand     = "command"
	MeasurementClimate     = "climate"
)

// WriteDeviceState records a committed on/off transition.
func (c *Client) WriteDeviceState(device, room string, on bool, source string, at time.Time) {
	state := 0
	if on {
		state = 1
	}
	c.writePoint(MeasurementDeviceState,
		map[string]string{"device": device, "room": room, "source": source},
		map[string]interface{}{"on": state},
		at,
	)
}

// WriteEnergy records the energy a device consumed over one on-period,
// written when it turns off.
func (c *Client) WriteEnergy(device string, powerWatts, energyWh float64, onFor time.Duration, at time.Time) {
	c.writePoint(MeasurementEnergy,
		map[string]string{"device": device},
		map[string]interface{}{
			"power_watts": powerWatts,
			"energy_wh":   energyWh,
			"on_seconds":  onFor.Seconds(),
		},
		at,
	)
}

// WriteCommand records one handled command and how long it took.
func (c *Client) WriteCommand(kind, source string, cacheHit bool, actions int, elapsed time.Duration, at time.Time) {
	c.writePoint(MeasurementCommand,
		map[string]string{"intent": kind, "source": source, "cache_hit": strconv.FormatBool(cacheHit)},
		map[string]interface{}{
			"elapsed_ms": float64(elapsed.Microseconds()) / 1000,
			"actions":    actions,
		},
		at,
	)
}

// WriteClimate records a temperature/humidity reading.
func (c *Client) WriteClimate(temperatureF, humidity float64, at time.Time) {
	c.writePoint(MeasurementClimate,
		nil,
		map[string]interface{}{"temperature_f": temperatureF, "humidity": humidity},
		at,
	)
}

// writePoint queues a point. Dropped silently when the client is not
// connected.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
	c.points.Add(1)
}
