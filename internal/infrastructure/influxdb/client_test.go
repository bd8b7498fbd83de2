package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/hearth/internal/infrastructure/config"
	"github.com/nerrad567/hearth/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and captures line protocol posted to /api/v2/write.
type fakeInflux struct {
	*httptest.Server

	mu     sync.Mutex
	lines  []string
	status int
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{status: http.StatusNoContent}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping", "/health":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			for _, l := range strings.Split(strings.TrimSpace(string(body)), "\n") {
				if l != "" {
					f.lines = append(f.lines, l)
				}
			}
			status := f.status
			f.mu.Unlock()
			w.WriteHeader(status)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) waitForLine(t *testing.T, prefix string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for _, l := range f.lines {
			if strings.HasPrefix(l, prefix) {
				f.mu.Unlock()
				return l
			}
		}
		f.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("no line with prefix %q written", prefix)
	return ""
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "hearth-test-token",
		Org:           "hearth",
		Bucket:        "telemetry",
		BatchSize:     1,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, f *fakeInflux) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig(f.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect(t *testing.T) {
	client := connect(t, newFakeInflux(t))
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := influxdb.Connect(testConfig("http://127.0.0.1:59999"))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteDeviceState(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.WriteDeviceState("ceiling_fan", "living_room", true, "command", time.Now())
	client.Flush()

	line := f.waitForLine(t, "device_state,")
	for _, want := range []string{"device=ceiling_fan", "room=living_room", "source=command", "on=1i"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWrite_ServiceTagAndStats(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.WriteClimate(74.5, 40, time.Now())
	client.Flush()

	line := f.waitForLine(t, "climate,")
	if !strings.Contains(line, "service=hearth") {
		t.Errorf("line %q missing service tag", line)
	}
	if s := client.Stats(); !s.Connected || s.Points != 1 || s.WriteErrors != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestWriteEnergy(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.WriteEnergy("bedroom_heater", 1500, 750, 30*time.Minute, time.Now())
	client.Flush()

	line := f.waitForLine(t, "energy,")
	for _, want := range []string{"device=bedroom_heater", "energy_wh=750", "power_watts=1500", "on_seconds=1800"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWriteCommand(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.WriteCommand("TURN_ON", "model", true, 2, 1500*time.Microsecond, time.Now())
	client.Flush()

	line := f.waitForLine(t, "command,")
	for _, want := range []string{"cache_hit=true", "intent=TURN_ON", "source=model", "elapsed_ms=1.5", "actions=2i"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWriteErrorCallback(t *testing.T) {
	f := newFakeInflux(t)
	f.status = http.StatusBadRequest
	client := connect(t, f)

	got := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case got <- err:
		default:
		}
	})

	client.WriteClimate(72, 45, time.Now())
	client.Flush()

	select {
	case err := <-got:
		if err == nil {
			t.Error("callback received nil error")
		}
	case <-time.After(5 * time.Second):
		t.Error("write error callback not invoked")
	}
	if s := client.Stats(); s.WriteErrors < 1 {
		t.Errorf("Stats().WriteErrors = %d, want at least 1", s.WriteErrors)
	}
}

func TestClose(t *testing.T) {
	f := newFakeInflux(t)
	client, err := influxdb.Connect(testConfig(f.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Writes and flushes after Close are dropped.
	client.WriteClimate(70, 40, time.Now())
	client.Flush()
	if s := client.Stats(); s.Points != 0 {
		t.Errorf("Stats().Points = %d after dropped write", s.Points)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var client influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
