package automation

import (
	"fmt"
	"time"

	"github.com/nerrad567/hearth/internal/infrastructure/mqtt"
	"github.com/nerrad567/hearth/internal/state"
)

// Subscriber is the MQTT capability the sensor feed needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// SensorStore receives sensor readings.
type SensorStore interface {
	SetOccupancy(room string, occupied bool)
	SetTemperature(f float64)
	SetHumidity(pct float64)
	Context() state.Context
}

// ClimateWriter records climate readings as time series.
type ClimateWriter interface {
	WriteClimate(tempF, humidity float64, at time.Time)
}

// SensorFeed copies MQTT sensor readings into the state store so rules and
// prompts see current occupancy and climate.
type SensorFeed struct {
	store   SensorStore
	climate ClimateWriter
	hub     WSHub
	logger  Logger
	now     func() time.Time
}

// NewSensorFeed creates a feed. climate and hub may be nil.
func NewSensorFeed(store SensorStore, climate ClimateWriter, hub WSHub, logger Logger) *SensorFeed {
	if logger == nil {
		logger = noopLogger{}
	}
	return &SensorFeed{store: store, climate: climate, hub: hub, logger: logger, now: time.Now}
}

// Start subscribes to the occupancy, temperature and humidity topics.
func (f *SensorFeed) Start(sub Subscriber, qos byte) error {
	topics := mqtt.Topics{}
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{topics.AllOccupancy(), f.HandleOccupancy},
		{topics.Temperature(), f.HandleTemperature},
		{topics.Humidity(), f.HandleHumidity},
	}
	for _, s := range subs {
		if err := sub.Subscribe(s.topic, qos, s.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", s.topic, err)
		}
	}
	return nil
}

// HandleOccupancy handles hearth/sensor/{room}/occupancy.
func (f *SensorFeed) HandleOccupancy(topic string, payload []byte) error {
	room, ok := mqtt.RoomFromTopic(topic)
	if !ok {
		return fmt.Errorf("not an occupancy topic: %s", topic)
	}
	occupied, err := mqtt.ParseBool(payload)
	if err != nil {
		return err
	}
	f.store.SetOccupancy(room, occupied)
	f.logger.Debug("occupancy updated", "room", room, "occupied", occupied)
	f.broadcast(map[string]any{"room": room, "occupied": occupied})
	return nil
}

// HandleTemperature handles hearth/sensor/temperature (Fahrenheit).
func (f *SensorFeed) HandleTemperature(_ string, payload []byte) error {
	temp, err := mqtt.ParseFloat(payload)
	if err != nil {
		return err
	}
	f.store.SetTemperature(temp)
	f.recordClimate()
	f.broadcast(map[string]any{"temperature": temp})
	return nil
}

// HandleHumidity handles hearth/sensor/humidity (percent).
func (f *SensorFeed) HandleHumidity(_ string, payload []byte) error {
	pct, err := mqtt.ParseFloat(payload)
	if err != nil {
		return err
	}
	if pct < 0 || pct > 100 {
		return fmt.Errorf("humidity out of range: %.1f", pct)
	}
	f.store.SetHumidity(pct)
	f.recordClimate()
	f.broadcast(map[string]any{"humidity": pct})
	return nil
}

func (f *SensorFeed) recordClimate() {
	if f.climate == nil {
		return
	}
	c := f.store.Context()
	f.climate.WriteClimate(c.Temperature, c.Humidity, f.now())
}

func (f *SensorFeed) broadcast(payload map[string]any) {
	if f.hub != nil {
		f.hub.Broadcast("sensor.updated", payload)
	}
}
