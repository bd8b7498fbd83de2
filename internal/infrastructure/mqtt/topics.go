package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic prefixes. Every hearth topic lives under TopicPrefix.
const (
	TopicPrefix       = "hearth"
	TopicPrefixGPIO   = TopicPrefix + "/gpio"
	TopicPrefixSensor = TopicPrefix + "/sensor"
	TopicPrefixState  = TopicPrefix + "/state"
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for hearth MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.PinSet(17)            // hearth/gpio/17/set
//	topics.DeviceState("fan_1")  // hearth/state/fan_1
type Topics struct{}

// PinSet is where pin writes are sent to the GPIO bridge.
//
// Example: hearth/gpio/17/set
func (Topics) PinSet(pin int) string {
	return fmt.Sprintf("%s/%d/set", TopicPrefixGPIO, pin)
}

// BridgeStatus carries the GPIO bridge's retained online/offline status,
// in the same StatusPayload shape the hub publishes.
func (Topics) BridgeStatus() string {
	return TopicPrefixGPIO + "/status"
}

// Occupancy carries a room's occupancy sensor.
//
// Example: hearth/sensor/bedroom/occupancy
func (Topics) Occupancy(room string) string {
	return fmt.Sprintf("%s/%s/occupancy", TopicPrefixSensor, room)
}

// Temperature carries the indoor temperature sensor in Fahrenheit.
func (Topics) Temperature() string {
	return TopicPrefixSensor + "/temperature"
}

// Humidity carries the indoor humidity sensor in percent.
func (Topics) Humidity() string {
	return TopicPrefixSensor + "/humidity"
}

// DeviceState is the retained committed state of one device.
//
// Example: hearth/state/living_room_light
func (Topics) DeviceState(name string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixState, name)
}

// SystemStatus carries the hub's online/offline status.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllPinStates matches every pin acknowledgement.
func (Topics) AllPinStates() string {
	return TopicPrefixGPIO + "/+/state"
}

// AllOccupancy matches every room occupancy sensor.
func (Topics) AllOccupancy() string {
	return TopicPrefixSensor + "/+/occupancy"
}

// PinFromTopic extracts the pin from hearth/gpio/{pin}/... topics.
func PinFromTopic(topic string) (int, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixGPIO+"/")
	if !ok {
		return 0, false
	}
	seg, _, _ := strings.Cut(rest, "/")
	pin, err := strconv.Atoi(seg)
	if err != nil || pin <= 0 {
		return 0, false
	}
	return pin, true
}

// RoomFromTopic extracts the room from hearth/sensor/{room}/occupancy.
func RoomFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixSensor+"/")
	if !ok {
		return "", false
	}
	room, tail, ok := strings.Cut(rest, "/")
	if !ok || tail != "occupancy" || room == "" {
		return "", false
	}
	return room, true
}
