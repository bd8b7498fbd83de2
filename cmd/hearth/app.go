package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/hearth/migrations"

	"github.com/nerrad567/hearth/internal/api"
	"github.com/nerrad567/hearth/internal/automation"
	"github.com/nerrad567/hearth/internal/cache"
	"github.com/nerrad567/hearth/internal/catalog"
	"github.com/nerrad567/hearth/internal/cli"
	"github.com/nerrad567/hearth/internal/device"
	"github.com/nerrad567/hearth/internal/executor"
	"github.com/nerrad567/hearth/internal/hardware"
	"github.com/nerrad567/hearth/internal/infrastructure/config"
	"github.com/nerrad567/hearth/internal/infrastructure/database"
	"github.com/nerrad567/hearth/internal/infrastructure/influxdb"
	"github.com/nerrad567/hearth/internal/infrastructure/logging"
	"github.com/nerrad567/hearth/internal/infrastructure/metrics"
	"github.com/nerrad567/hearth/internal/infrastructure/mqtt"
	"github.com/nerrad567/hearth/internal/intent"
	"github.com/nerrad567/hearth/internal/language"
	"github.com/nerrad567/hearth/internal/pipeline"
	"github.com/nerrad567/hearth/internal/scene"
	"github.com/nerrad567/hearth/internal/state"
)

const (
	// State history older than this is pruned at startup.
	historyRetention = 30 * 24 * time.Hour

	// Upper bound for switching everything off on exit.
	shutdownTimeout = 10 * time.Second

	startupCheckTimeout = 5 * time.Second
)

// options selects how run presents itself.
type options struct {
	configPath  string
	interactive bool
	in          io.Reader
	out         io.Writer
}

// run wires every component, then blocks in the terminal session or until
// ctx is cancelled. Returning an error lets main handle exit codes.
func run(ctx context.Context, opts options) error {
	log := logging.Default()
	log.Info("starting Hearth",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", opts.configPath)

	log = newLogger(cfg.Logging, opts.interactive)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	devices, scenes, err := loadCatalog(cfg.Catalog.Path, log)
	if err != nil {
		return err
	}

	store := state.NewStore(devices)
	history := state.NewSQLiteRepository(db.DB)
	if pruned, pruneErr := history.PruneHistory(ctx, historyRetention); pruneErr != nil {
		log.Warn("pruning state history failed", "error", pruneErr)
	} else if pruned > 0 {
		log.Info("state history pruned", "entries", pruned)
	}

	m := metrics.New()
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	driver, err := newDriver(cfg, mqttClient, log)
	if err != nil {
		return err
	}
	if bridge, ok := driver.(*hardware.MQTTDriver); ok {
		defer func() {
			if stopErr := bridge.Stop(); stopErr != nil {
				log.Error("error stopping MQTT pin driver", "error", stopErr)
			}
		}()
	}

	respCache, redisBackend := newCache(cfg, log)
	if redisBackend != nil {
		defer redisBackend.Close() //nolint:errcheck // shutdown path
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient, redisBackend); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	execOpts := []executor.Option{
		executor.WithPinTimeout(cfg.PinTimeout()),
		executor.WithHistory(history),
		executor.WithBroadcaster(hub),
		executor.WithMetrics(m),
		executor.WithLogger(log.Component("executor")),
	}
	if influxClient != nil {
		execOpts = append(execOpts, executor.WithTelemetry(influxClient))
	}
	if mqttClient != nil {
		execOpts = append(execOpts, executor.WithEvents(mqttClient))
	}
	exec := executor.New(devices, store, driver, execOpts...)

	backend := language.NewOllamaClient(cfg.Language)
	backend.SetLogger(log.Component("language"))
	pingCtx, cancelPing := context.WithTimeout(ctx, startupCheckTimeout)
	if pingErr := backend.Ping(pingCtx); pingErr != nil {
		log.Warn("language backend not reachable, commands will fail until it is", "endpoint", cfg.Language.Endpoint, "error", pingErr)
	} else {
		log.Info("language backend reachable", "endpoint", cfg.Language.Endpoint, "model", backend.Model())
	}
	cancelPing()

	deps := pipeline.Deps{
		Devices:    devices,
		Scenes:     scenes,
		Store:      store,
		Executor:   exec,
		Backend:    backend,
		Cache:      respCache,
		CommandLog: pipeline.NewSQLiteCommandLog(db.DB),
		Metrics:    m,
		Hub:        hub,
		Logger:     log.Component("pipeline"),
	}
	if influxClient != nil {
		deps.Telemetry = influxClient
	}
	p, err := pipeline.New(pipeline.Config{
		InferenceTimeout: cfg.LanguageTimeout(),
		MinConfidence:    cfg.Language.MinConfidence,
		PowerLimitWatts:  cfg.Automation.PowerLimitWatts,
	}, deps)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	if cfg.Hardware.RestoreState {
		if _, restoreErr := p.Restore(ctx, history); restoreErr != nil {
			log.Warn("restoring device states failed", "error", restoreErr)
		}
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		p.Shutdown(shutdownCtx)
	}()

	runs := automation.NewSQLiteRepository(db.DB)
	if cfg.Automation.Enabled {
		engine := automation.NewEngine(store, exec, automationRules(cfg, devices, scenes, store),
			automation.WithInterval(cfg.AutomationInterval()),
			automation.WithQueueSize(cfg.Automation.QueueSize),
			automation.WithRepository(runs),
			automation.WithHub(hub),
			automation.WithMetrics(m),
			automation.WithLogger(log.Component("automation")),
		)
		if startErr := engine.Start(ctx); startErr != nil {
			return fmt.Errorf("starting automation engine: %w", startErr)
		}
		defer engine.Stop()
	} else {
		log.Info("automation disabled")
	}

	if mqttClient != nil {
		var climate automation.ClimateWriter
		if influxClient != nil {
			climate = influxClient
		}
		feed := automation.NewSensorFeed(store, climate, hub, log.Component("sensors"))
		if feedErr := feed.Start(mqttClient, mqttQoS(cfg)); feedErr != nil {
			return fmt.Errorf("starting sensor feed: %w", feedErr)
		}
		log.Info("sensor feed started")
	}

	if cfg.API.Enabled {
		apiDeps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.Component("api"),
			Pipeline: p,
			Devices:  devices,
			Scenes:   scenes,
			History:  history,
			Runs:     runs,
			DB:       db.DB,
			Metrics:  m.Handler(),
			Hub:      hub,
			Version:  version,
		}
		if mqttClient != nil {
			apiDeps.Broker = mqttClient
		}
		if influxClient != nil {
			apiDeps.Telemetry = influxClient
		}
		srv, apiErr := api.New(apiDeps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		if cfg.Security.JWT.Secret == "" {
			log.Warn("API authentication disabled, security.jwt.secret is empty")
		}
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete", "devices", len(devices.List()), "scenes", len(scenes.List()))

	if opts.interactive {
		if err := cli.New(p, opts.in, opts.out).Run(ctx); err != nil {
			return fmt.Errorf("interactive session: %w", err)
		}
	} else {
		<-ctx.Done()
		log.Info("shutdown signal received, cleaning up")
	}

	// Deferred calls run in reverse order: API server, automation engine,
	// device shutdown, cache, InfluxDB, MQTT, database.
	log.Info("Hearth stopped")
	return nil
}

// newLogger keeps log lines off stdout while the terminal session is
// drawing on it.
func newLogger(cfg config.LoggingConfig, interactive bool) *logging.Logger {
	if interactive && (cfg.Output == "" || strings.EqualFold(cfg.Output, "stdout")) {
		return logging.NewWithWriter(cfg, version, os.Stderr)
	}
	return logging.New(cfg, version)
}

// loadCatalog builds the device and scene registries.
func loadCatalog(path string, log *logging.Logger) (*device.Registry, *scene.Registry, error) {
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading catalog: %w", err)
	}

	devices := device.NewRegistry()
	devices.SetLogger(log)
	scenes := scene.NewRegistry(devices)
	scenes.SetLogger(log)
	if err := cat.Populate(devices, scenes); err != nil {
		return nil, nil, fmt.Errorf("loading catalog: %w", err)
	}

	source := path
	if source == "" {
		source = "built-in"
	}
	log.Info("catalog loaded", "source", source, "devices", len(cat.Devices), "scenes", len(cat.Scenes))
	return devices, scenes, nil
}

// newDriver selects the pin driver. The mqtt driver needs a connected client.
func newDriver(cfg *config.Config, client *mqtt.Client, log *logging.Logger) (hardware.Driver, error) {
	switch strings.ToLower(cfg.Hardware.Driver) {
	case "mqtt":
		if client == nil {
			return nil, fmt.Errorf("hardware driver mqtt requires mqtt.enabled")
		}
		d := hardware.NewMQTTDriver(client, mqttQoS(cfg), log.Component("gpio"))
		if err := d.Start(); err != nil {
			return nil, fmt.Errorf("starting MQTT pin driver: %w", err)
		}
		log.Info("pin driver ready", "driver", "mqtt")
		return d, nil
	default:
		sim := hardware.NewSimulator()
		sim.SetLogger(log.Component("gpio"))
		log.Info("pin driver ready", "driver", "simulated")
		return sim, nil
	}
}

// newCache builds the response cache. The Redis backend is returned
// separately so the caller can ping and close it.
func newCache(cfg *config.Config, log *logging.Logger) (*cache.Cache, *cache.RedisBackend) {
	var backend cache.Backend
	var redisBackend *cache.RedisBackend

	switch strings.ToLower(cfg.Cache.Backend) {
	case "redis":
		redisBackend = cache.NewRedisBackend(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cache.WithPrefix(cfg.Redis.Prefix),
			cache.WithMaxEntries(cfg.Cache.MaxEntries),
		)
		backend = redisBackend
	default:
		backend = cache.NewMemoryBackend(cfg.Cache.MaxEntries)
	}

	c := cache.New(backend, cfg.CacheTTL())
	c.SetLogger(log.Component("cache"))
	log.Info("response cache ready", "backend", cfg.Cache.Backend, "ttl", cfg.CacheTTL().String())
	return c, redisBackend
}

func mqttQoS(cfg *config.Config) byte {
	return byte(cfg.MQTT.QoS) // #nosec G115 -- validated to 0-2
}

// automationRules returns the rules in priority order.
func automationRules(cfg *config.Config, devices *device.Registry, scenes *scene.Registry, store *state.Store) []automation.Rule {
	return []automation.Rule{
		automation.NewIdleRule(cfg.IdleThreshold()),
		automation.NewComfortRule(cfg.Automation.ComfortMaxF, intent.NewResolver(devices, scenes, store)),
	}
}

// healthCheck verifies the infrastructure connections concurrently.
// Disabled components are passed as nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, redisBackend *cache.RedisBackend) error {
	ctx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		return nil
	})
	if mqttClient != nil {
		g.Go(func() error {
			if err := mqttClient.HealthCheck(ctx); err != nil {
				return fmt.Errorf("mqtt: %w", err)
			}
			return nil
		})
	}
	if influxClient != nil {
		g.Go(func() error {
			if err := influxClient.HealthCheck(ctx); err != nil {
				return fmt.Errorf("influxdb: %w", err)
			}
			return nil
		})
	}
	if redisBackend != nil {
		g.Go(func() error {
			if err := redisBackend.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}
