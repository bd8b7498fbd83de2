package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/hearth/internal/infrastructure/influxdb"
	"github.com/nerrad567/hearth/internal/infrastructure/mqtt"
	"github.com/nerrad567/hearth/internal/pipeline"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	Devices       DeviceMetrics    `json:"devices"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
	MQTT          *mqtt.Stats      `json:"mqtt,omitempty"`
	InfluxDB      *influxdb.Stats  `json:"influxdb,omitempty"`
	Performance   pipeline.Perf    `json:"performance"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int   `json:"connected_clients"`
	DroppedEvents    int64 `json:"dropped_events"`
}

// DeviceMetrics contains device registry statistics.
type DeviceMetrics struct {
	Total  int            `json:"total"`
	On     int            `json:"on"`
	ByType map[string]int `json:"by_type"`
	ByRoom map[string]int `json:"by_room"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleSystem returns runtime, hub, device and pipeline statistics.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := s.pipeline.Status()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedEvents:    s.hub.Dropped(),
		},
		Devices: DeviceMetrics{
			Total:  len(status.Devices),
			ByType: make(map[string]int),
			ByRoom: make(map[string]int),
		},
		Performance: status.Performance,
	}

	for _, d := range status.Devices {
		metrics.Devices.ByType[d.Type]++
		metrics.Devices.ByRoom[d.Room]++
		if d.On {
			metrics.Devices.On++
		}
	}

	if s.db != nil {
		st := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
		}
	}

	if s.broker != nil {
		st := s.broker.Stats()
		metrics.MQTT = &st
	}
	if s.telemetry != nil {
		st := s.telemetry.Stats()
		metrics.InfluxDB = &st
	}

	writeJSON(w, http.StatusOK, metrics)
}
