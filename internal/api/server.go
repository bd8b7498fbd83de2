// Package api provides the HTTP REST API and WebSocket server for Hearth.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/hearth/internal/automation"
	"github.com/nerrad567/hearth/internal/device"
	"github.com/nerrad567/hearth/internal/infrastructure/config"
	"github.com/nerrad567/hearth/internal/infrastructure/influxdb"
	"github.com/nerrad567/hearth/internal/infrastructure/logging"
	"github.com/nerrad567/hearth/internal/infrastructure/mqtt"
	"github.com/nerrad567/hearth/internal/pipeline"
	"github.com/nerrad567/hearth/internal/scene"
	"github.com/nerrad567/hearth/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Commander is the part of the command pipeline the API drives.
type Commander interface {
	HandleCommand(ctx context.Context, text string) (pipeline.Response, error)
	Toggle(ctx context.Context, name string) (pipeline.Response, error)
	ActivateScene(ctx context.Context, name string) (pipeline.Response, error)
	IsOn(name string) bool
	Status() pipeline.StatusReport
	RecentCommands(ctx context.Context, limit int) ([]pipeline.LogEntry, error)
}

// HistoryReader reads the per-device transition history.
type HistoryReader interface {
	GetHistory(ctx context.Context, name string, limit int) ([]state.HistoryEntry, error)
}

// RunLister lists recorded automation runs.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]automation.Run, error)
}

// DBStatter exposes connection pool statistics.
type DBStatter interface {
	Stats() sql.DBStats
}

// BrokerStatter exposes MQTT link statistics.
type BrokerStatter interface {
	Stats() mqtt.Stats
}

// TelemetryStatter exposes InfluxDB write counters.
type TelemetryStatter interface {
	Stats() influxdb.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Pipeline  Commander
	Devices   *device.Registry
	Scenes    *scene.Registry
	History   HistoryReader    // optional
	Runs      RunLister        // optional
	DB        DBStatter        // optional
	Broker    BrokerStatter    // optional; nil when MQTT is disabled
	Telemetry TelemetryStatter // optional; nil when InfluxDB is disabled
	Metrics   http.Handler     // optional; served on /metrics
	Hub       *Hub             // If set, the server uses this hub instead of creating its own
	Version   string
}

// Server is the HTTP API server for Hearth.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	pipeline    Commander
	devices     *device.Registry
	scenes      *scene.Registry
	history     HistoryReader
	runs        RunLister
	db          DBStatter
	broker      BrokerStatter
	telemetry   TelemetryStatter
	metrics     http.Handler
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Scenes == nil {
		return nil, fmt.Errorf("scene registry is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		pipeline:  deps.Pipeline,
		devices:   deps.Devices,
		scenes:    deps.Scenes,
		history:   deps.History,
		runs:      deps.Runs,
		db:        deps.DB,
		broker:    deps.Broker,
		telemetry: deps.Telemetry,
		metrics:   deps.Metrics,
		version:   deps.Version,
		startTime: time.Now(),
	}

	// The executor and automation engine broadcast through the same hub, so
	// it is usually built before the server.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	s.hub.SetCommander(s.pipeline)

	return s, nil
}

// Handler returns the routed HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
