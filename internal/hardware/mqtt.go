package hardware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/hearth/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of *mqtt.Client the driver needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTDriver drives pins through an external GPIO bridge.
//
// Every write carries a request ID; SetPin returns once the bridge echoes
// that ID on the pin's state topic, or fails when ctx expires. ReadPin
// answers from the last level the bridge reported. Once the bridge has
// announced itself offline, writes fail immediately with ErrBridgeOffline
// until it comes back.
type MQTTDriver struct {
	client MQTTClient
	qos    byte
	logger Logger

	mu      sync.Mutex
	levels  map[int]bool
	pending map[string]chan mqtt.PinAck
	offline bool
}

// NewMQTTDriver creates a driver. Call Start before use.
func NewMQTTDriver(client MQTTClient, qos byte, logger Logger) *MQTTDriver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTDriver{
		client:  client,
		qos:     qos,
		logger:  logger,
		levels:  make(map[int]bool),
		pending: make(map[string]chan mqtt.PinAck),
	}
}

// Start subscribes to every pin's state topic and to the bridge status.
func (d *MQTTDriver) Start() error {
	if err := d.client.Subscribe(mqtt.Topics{}.AllPinStates(), d.qos, d.handleState); err != nil {
		return fmt.Errorf("subscribing to pin states: %w", err)
	}
	if err := d.client.Subscribe(mqtt.Topics{}.BridgeStatus(), d.qos, d.handleBridgeStatus); err != nil {
		return fmt.Errorf("subscribing to bridge status: %w", err)
	}
	return nil
}

// Stop drops both subscriptions. Writes still waiting for an
// acknowledgement run into their context deadline.
func (d *MQTTDriver) Stop() error {
	var errs []error
	for _, topic := range []string{mqtt.Topics{}.AllPinStates(), mqtt.Topics{}.BridgeStatus()} {
		if err := d.client.Unsubscribe(topic); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribing from %s: %w", topic, err))
		}
	}
	return errors.Join(errs...)
}

// BridgeOnline reports false only after the bridge announced it is offline.
func (d *MQTTDriver) BridgeOnline() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.offline
}

// SetPin publishes a write and waits for its acknowledgement.
func (d *MQTTDriver) SetPin(ctx context.Context, pin int, high bool) error {
	if pin <= 0 {
		return pinError(pin, OpSet, ErrInvalidPin)
	}

	id := uuid.NewString()
	ack := make(chan mqtt.PinAck, 1)
	d.mu.Lock()
	if d.offline {
		d.mu.Unlock()
		return pinError(pin, OpSet, ErrBridgeOffline)
	}
	d.pending[id] = ack
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
	}()

	payload, err := json.Marshal(mqtt.PinCommand{RequestID: id, Pin: pin, High: high})
	if err != nil {
		return pinError(pin, OpSet, fmt.Errorf("%w: %w", ErrPinWrite, err))
	}
	if err := d.client.Publish(mqtt.Topics{}.PinSet(pin), payload, d.qos, false); err != nil {
		return pinError(pin, OpSet, fmt.Errorf("%w: %w", ErrPinWrite, err))
	}

	select {
	case a := <-ack:
		if a.Error != "" {
			return pinError(pin, OpSet, fmt.Errorf("%w: %s", ErrPinWrite, a.Error))
		}
		if a.High != high {
			return pinError(pin, OpSet, fmt.Errorf("%w: bridge reported level %v", ErrPinWrite, a.High))
		}
		return nil
	case <-ctx.Done():
		return pinError(pin, OpSet, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err()))
	}
}

// ReadPin returns the last level the bridge reported for pin.
func (d *MQTTDriver) ReadPin(ctx context.Context, pin int) (bool, error) {
	if pin <= 0 {
		return false, pinError(pin, OpRead, ErrInvalidPin)
	}
	if err := ctx.Err(); err != nil {
		return false, pinError(pin, OpRead, fmt.Errorf("%w: %w", ErrTimeout, err))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	high, ok := d.levels[pin]
	if !ok {
		return false, pinError(pin, OpRead, ErrUnknownLevel)
	}
	return high, nil
}

func (d *MQTTDriver) handleState(topic string, payload []byte) error {
	pin, ok := mqtt.PinFromTopic(topic)
	if !ok {
		return errors.New("hardware: state on unexpected topic " + topic)
	}
	var a mqtt.PinAck
	if err := json.Unmarshal(payload, &a); err != nil {
		return fmt.Errorf("decoding pin state: %w", err)
	}

	d.mu.Lock()
	if a.Error == "" {
		d.levels[pin] = a.High
	}
	ch := d.pending[a.RequestID]
	d.mu.Unlock()

	if ch != nil {
		select {
		case ch <- a:
		default:
		}
	}
	d.logger.Debug("pin state reported", "pin", pin, "high", a.High, "request_id", a.RequestID)
	return nil
}

func (d *MQTTDriver) handleBridgeStatus(_ string, payload []byte) error {
	var st mqtt.StatusPayload
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("decoding bridge status: %w", err)
	}

	d.mu.Lock()
	wasOffline := d.offline
	d.offline = st.Status == mqtt.StatusOffline
	if d.offline {
		// Levels reported before the outage can no longer be trusted.
		d.levels = make(map[int]bool)
	}
	nowOffline := d.offline
	d.mu.Unlock()

	switch {
	case nowOffline && !wasOffline:
		d.logger.Warn("gpio bridge offline", "client_id", st.ClientID, "reason", st.Reason)
	case !nowOffline && wasOffline:
		d.logger.Info("gpio bridge back online", "client_id", st.ClientID)
	}
	return nil
}
