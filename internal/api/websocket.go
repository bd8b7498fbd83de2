package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/hearth/internal/auth"
	"github.com/nerrad567/hearth/internal/infrastructure/config"
	"github.com/nerrad567/hearth/internal/infrastructure/logging"
)

// Message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeCommand     = "command"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Event channels a client can subscribe to. ChannelAll matches every one.
const (
	ChannelDeviceState = "device.state_changed"
	ChannelCommand     = "command.handled"
	ChannelScene       = "scene.activated"
	ChannelAutomation  = "automation.triggered"
	ChannelSensor      = "sensor.updated"
	ChannelAll         = "*"
)

var knownChannels = []string{
	ChannelDeviceState, ChannelCommand, ChannelScene, ChannelAutomation, ChannelSensor, ChannelAll,
}

const (
	wsSendBufferSize = 256
	wsCommandTimeout = 60 * time.Second
)

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// WSCommandPayload is the payload of a command message.
type WSCommandPayload struct {
	Text string `json:"text"`
}

// WSErrorPayload is the payload of an error message. Code uses the same
// values as the HTTP error body.
type WSErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Hub fans events out to connected WebSocket clients.
//
// The executor, pipeline and automation engine all publish through
// Broadcast; each client only receives the channels it subscribed to.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu        sync.RWMutex
	clients   map[*WSClient]struct{}
	commander Commander

	dropped atomic.Int64
}

// WSClient is one connected socket.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	role auth.Role

	mu            sync.RWMutex
	subscriptions map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware owns origin policy.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// SetCommander lets clients send commands over the socket.
func (h *Hub) SetCommander(c Commander) {
	h.mu.Lock()
	h.commander = c
	h.mu.Unlock()
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client. Only the call that actually removes it
// closes the send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// Broadcast sends payload as an event on channel. Clients with a full
// send buffer miss the event; see Dropped.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("marshalling broadcast", "channel", channel, "error", err)
		return
	}

	// Client locks are never taken while holding the hub lock.
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if !client.isSubscribed(channel) {
			continue
		}
		if client.trySend(data) {
			sent++
		} else {
			h.dropped.Add(1)
		}
	}
	if sent > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", sent)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many events were skipped for slow clients.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the connection. Browsers cannot set headers on
// the upgrade request, so the bearer token travels in the token query
// parameter when authentication is enabled.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	role := auth.RoleOperator
	if s.secCfg.JWT.Secret != "" {
		token := r.URL.Query().Get("token")
		if token == "" {
			writeError(w, ErrCodeUnauthorized, "token query parameter is required")
			return
		}
		claims, err := auth.ParseToken(token, s.secCfg.JWT.Secret)
		if err != nil {
			writeError(w, ErrCodeUnauthorized, "invalid or expired token")
			return
		}
		role = claims.Role
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		role:          role,
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// keepalive returns the ping period and how long to wait for any frame.
func keepalive(cfg config.WebSocketConfig) (ping, readWait time.Duration) {
	ping = time.Duration(cfg.PingInterval) * time.Second
	return ping, ping + time.Duration(cfg.PongTimeout)*time.Second
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	_, readWait := keepalive(cfg)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(readWait)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend() //nolint:errcheck // read error surfaces below
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Some browsers never answer protocol pings; any frame counts.
		extend() //nolint:errcheck // read error surfaces on the next loop
		c.handleMessage(message)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ping, _ := keepalive(cfg)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error surfaces below
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", ErrCodeBadRequest, "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscription(msg, true)
	case WSTypeUnsubscribe:
		c.handleSubscription(msg, false)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	case WSTypeCommand:
		c.handleCommand(msg)
	default:
		c.sendError(msg.ID, ErrCodeBadRequest, "unknown message type: "+msg.Type)
	}
}

// decodePayload re-decodes the generic payload of msg into T.
func decodePayload[T any](msg WSMessage) (T, error) {
	var out T
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}

// handleSubscription adds or removes channels. Unknown channels reject the
// whole request.
func (c *WSClient) handleSubscription(msg WSMessage, subscribe bool) {
	sub, err := decodePayload[WSSubscribePayload](msg)
	if err != nil {
		c.sendError(msg.ID, ErrCodeBadRequest, "invalid "+msg.Type+" payload")
		return
	}
	for _, ch := range sub.Channels {
		if !slices.Contains(knownChannels, ch) {
			c.sendError(msg.ID, ErrCodeBadRequest, fmt.Sprintf("unknown channel %q", ch))
			return
		}
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if subscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if subscribe {
		key = "subscribed"
		c.hub.logger.Debug("websocket client subscribed", "channels", sub.Channels)
	}
	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

// handleCommand runs the command off the read loop and replies with the
// pipeline response, or an error frame when the pipeline produced none.
func (c *WSClient) handleCommand(msg WSMessage) {
	if !auth.HasPermission(c.role, auth.PermCommandSend) {
		c.sendError(msg.ID, ErrCodeForbidden, "permission denied: "+string(auth.PermCommandSend))
		return
	}

	c.hub.mu.RLock()
	commander := c.hub.commander
	c.hub.mu.RUnlock()
	if commander == nil {
		c.sendError(msg.ID, ErrCodeUnavailable, "commands are not available")
		return
	}

	cmd, err := decodePayload[WSCommandPayload](msg)
	if err != nil {
		c.sendError(msg.ID, ErrCodeBadRequest, "invalid command payload")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), wsCommandTimeout)
		defer cancel()
		resp, err := commander.HandleCommand(ctx, cmd.Text)
		if err != nil && resp.Message == "" {
			code, _ := pipelineErrorCode(err)
			c.sendError(msg.ID, code, err.Error())
			return
		}
		c.sendResponse(msg.ID, WSTypeResponse, resp)
	}()
}

// trySend queues data without blocking. It reports false when the buffer
// is full or the client has already been unregistered.
func (c *WSClient) trySend(data []byte) (sent bool) {
	defer func() {
		if recover() != nil { // send on closed channel
			sent = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, all := c.subscriptions[ChannelAll]
	_, ok := c.subscriptions[channel]
	return all || ok
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, code, message string) {
	c.sendResponse(id, WSTypeError, WSErrorPayload{Code: code, Message: message})
}
