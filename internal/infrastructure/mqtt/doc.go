// Package mqtt connects hearth to an MQTT broker.
//
// The broker carries three kinds of traffic:
//   - pin writes to an external GPIO bridge (hearth/gpio/{pin}/set) and its
//     acknowledgements (hearth/gpio/{pin}/state)
//   - sensor readings feeding the household context
//     (hearth/sensor/{room}/occupancy, hearth/sensor/temperature)
//   - retained device state events (hearth/state/{device}) and the hub's
//     own online/offline status (hearth/system/status, also the LWT)
//
// The client reconnects with exponential backoff and restores its
// subscriptions. Handlers run on paho goroutines with panic recovery.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllOccupancy(), 1, func(topic string, payload []byte) error {
//	    room, _ := mqtt.RoomFromTopic(topic)
//	    occupied, err := mqtt.ParseBool(payload)
//	    ...
//	})
package mqtt
