package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/hearth/internal/auth"
	"github.com/nerrad567/hearth/internal/infrastructure/config"
	"github.com/nerrad567/hearth/internal/infrastructure/logging"
	"github.com/nerrad567/hearth/internal/intent"
	"github.com/nerrad567/hearth/internal/pipeline"
)

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // Test cleanup
	}
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck // Test cleanup
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func errorCode(t *testing.T, msg WSMessage) string {
	t.Helper()
	p, err := decodePayload[WSErrorPayload](msg)
	if err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	return p.Code
}

func subscribe(t *testing.T, conn *websocket.Conn, channels ...string) WSMessage {
	t.Helper()
	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub",
		Payload: WSSubscribePayload{Channels: channels},
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	return readWS(t, conn)
}

func TestWebSocket_SubscribeAndBroadcast(t *testing.T) {
	env := testServer(t, "")
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	waitForClients(t, env.srv.hub, 1)

	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{"device.state_changed"}},
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if ack := readWS(t, conn); ack.Type != WSTypeResponse || ack.ID != "sub-1" {
		t.Fatalf("ack = %+v", ack)
	}

	env.srv.hub.Broadcast("scene.activated", map[string]any{"scene": "work_mode"})
	env.srv.hub.Broadcast("device.state_changed", map[string]any{"device": "office_fan", "on": true})

	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != "device.state_changed" {
		t.Errorf("event = %+v, want only the subscribed channel", msg)
	}
}

func TestWebSocket_Command(t *testing.T) {
	env := testServer(t, "")
	env.cmd.resp = pipeline.Response{ID: "cmd-9", Message: "Turned on office_fan.", Intent: intent.KindTurnOn}
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeCommand,
		ID:      "c1",
		Payload: WSCommandPayload{Text: "fan on"},
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	msg := readWS(t, conn)
	if msg.Type != WSTypeResponse || msg.ID != "c1" {
		t.Fatalf("msg = %+v", msg)
	}
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if resp["response"] != "Turned on office_fan." {
		t.Errorf("payload = %v", resp)
	}
}

func TestWebSocket_UnknownType(t *testing.T) {
	env := testServer(t, "")
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	if err := conn.WriteJSON(WSMessage{Type: "dance", ID: "x"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("msg = %+v, want error", msg)
	}
}

func TestWebSocket_Auth(t *testing.T) {
	env := testServer(t, testSecret)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() without token should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}

	viewer, err := auth.GenerateToken("tablet", auth.RoleViewer, testSecret, 60)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	conn := dialWS(t, ts, "?token="+viewer)
	if err := conn.WriteJSON(WSMessage{Type: WSTypeCommand, ID: "c1", Payload: WSCommandPayload{Text: "fan on"}}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError || errorCode(t, msg) != ErrCodeForbidden {
		t.Errorf("viewer command = %+v, want forbidden error", msg)
	}
	if len(env.cmd.texts) != 0 {
		t.Errorf("pipeline called for viewer: %v", env.cmd.texts)
	}
}

func TestWebSocket_SubscribeUnknownChannel(t *testing.T) {
	env := testServer(t, "")
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	msg := subscribe(t, conn, ChannelDeviceState, "device.exploded")
	if msg.Type != WSTypeError || errorCode(t, msg) != ErrCodeBadRequest {
		t.Fatalf("msg = %+v, want bad_request error", msg)
	}

	// The valid channel in the rejected request was not added.
	env.srv.hub.Broadcast(ChannelDeviceState, map[string]any{"device": "office_fan"})
	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypePong {
		t.Errorf("msg = %+v, want pong with no event before it", msg)
	}
}

func TestWebSocket_SubscribeAll(t *testing.T) {
	env := testServer(t, "")
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	waitForClients(t, env.srv.hub, 1)
	if ack := subscribe(t, conn, ChannelAll); ack.Type != WSTypeResponse {
		t.Fatalf("ack = %+v", ack)
	}

	env.srv.hub.Broadcast(ChannelScene, map[string]any{"scene": "movie_night"})
	env.srv.hub.Broadcast(ChannelSensor, map[string]any{"temperature_f": 71.5})
	for _, want := range []string{ChannelScene, ChannelSensor} {
		if msg := readWS(t, conn); msg.EventType != want {
			t.Errorf("event = %q, want %q", msg.EventType, want)
		}
	}
}

func TestWebSocket_CommandError(t *testing.T) {
	env := testServer(t, "")
	env.cmd.err = &intent.UnknownDeviceError{Name: "garage"}
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	if err := conn.WriteJSON(WSMessage{Type: WSTypeCommand, ID: "c2", Payload: WSCommandPayload{Text: "open garage"}}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	msg := readWS(t, conn)
	if msg.Type != WSTypeError || msg.ID != "c2" || errorCode(t, msg) != ErrCodeNotFound {
		t.Errorf("msg = %+v, want not_found error", msg)
	}
}

func TestHub_DroppedForFullBuffer(t *testing.T) {
	h := NewHub(config.WebSocketConfig{}, logging.NewWithWriter(config.LoggingConfig{}, "test", io.Discard))
	client := &WSClient{
		hub:           h,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{ChannelCommand: {}},
	}
	h.Register(client)

	h.Broadcast(ChannelCommand, "first")
	h.Broadcast(ChannelCommand, "second")
	h.Broadcast(ChannelScene, "not subscribed")

	if got := h.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}

	h.Unregister(client)
	if client.trySend([]byte("late")) {
		t.Error("trySend() after Unregister should report false")
	}
}
