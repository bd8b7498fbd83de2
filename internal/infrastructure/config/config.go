package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Hearth.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Language   LanguageConfig   `yaml:"language"`
	Hardware   HardwareConfig   `yaml:"hardware"`
	Cache      CacheConfig      `yaml:"cache"`
	Automation AutomationConfig `yaml:"automation"`
	Security   SecurityConfig   `yaml:"security"`
	Catalog    CatalogConfig    `yaml:"catalog"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// RedisConfig contains settings for the shared response cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// LanguageConfig configures the language-understanding backend.
type LanguageConfig struct {
	// Endpoint is the Ollama base URL, e.g. http://127.0.0.1:11434.
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	// Timeout bounds a single inference call (seconds).
	Timeout       int     `yaml:"timeout"`
	MaxTokens     int     `yaml:"max_tokens"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// HardwareConfig selects the pin driver.
type HardwareConfig struct {
	// Driver is "simulated" or "mqtt".
	Driver       string `yaml:"driver"`
	RestoreState bool   `yaml:"restore_state"`
	// PinTimeout bounds a single pin write (milliseconds).
	PinTimeout int `yaml:"pin_timeout"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend    string `yaml:"backend"`
	TTL        int    `yaml:"ttl"`
	MaxEntries int    `yaml:"max_entries"`
}

// AutomationConfig configures the rule scheduler.
type AutomationConfig struct {
	Enabled bool `yaml:"enabled"`
	// Interval between ticks (seconds).
	Interval int `yaml:"interval"`
	// IdleThreshold is how long a device may stay on in an unoccupied room (minutes).
	IdleThreshold   int     `yaml:"idle_threshold"`
	ComfortMaxF     float64 `yaml:"comfort_max_f"`
	PowerLimitWatts float64 `yaml:"power_limit_watts"`
	QueueSize       int     `yaml:"queue_size"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings. An empty secret disables API authentication.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"`
}

// CatalogConfig points to an optional device/scene catalog file.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HEARTH_SECTION_KEY
// For example: HEARTH_DATABASE_PATH, HEARTH_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to defaults (plus env overrides)
// when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		applyEnvOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "home-001",
			Name: "Hearth",
		},
		Database: DatabaseConfig{
			Path:        "./data/hearth.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hearth-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    5000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "hearth:cache:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Language: LanguageConfig{
			Endpoint:      "http://127.0.0.1:11434",
			Model:         "deepseek-r1:7b",
			Timeout:       30,
			MaxTokens:     256,
			MinConfidence: 0.3,
		},
		Hardware: HardwareConfig{
			Driver:     "simulated",
			PinTimeout: 2000,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTL:        3600,
			MaxEntries: 100,
		},
		Automation: AutomationConfig{
			Enabled:         true,
			Interval:        30,
			IdleThreshold:   30,
			ComfortMaxF:     76,
			PowerLimitWatts: 3000,
			QueueSize:       16,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 1440,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HEARTH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HEARTH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("HEARTH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HEARTH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HEARTH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("HEARTH_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("HEARTH_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("HEARTH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("HEARTH_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("HEARTH_LANGUAGE_ENDPOINT"); v != "" {
		cfg.Language.Endpoint = v
	}
	if v := os.Getenv("HEARTH_LANGUAGE_MODEL"); v != "" {
		cfg.Language.Model = v
	}

	if v := os.Getenv("HEARTH_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Language.Endpoint == "" {
		errs = append(errs, "language.endpoint is required")
	}
	if c.Language.Model == "" {
		errs = append(errs, "language.model is required")
	}
	if c.Language.MinConfidence < 0 || c.Language.MinConfidence > 1 {
		errs = append(errs, "language.min_confidence must be between 0 and 1")
	}

	switch strings.ToLower(c.Hardware.Driver) {
	case "simulated":
	case "mqtt":
		if !c.MQTT.Enabled {
			errs = append(errs, "hardware.driver mqtt requires mqtt.enabled")
		}
	default:
		errs = append(errs, "hardware.driver must be simulated or mqtt")
	}

	switch strings.ToLower(c.Cache.Backend) {
	case "memory", "redis":
	default:
		errs = append(errs, "cache.backend must be memory or redis")
	}
	if c.Cache.MaxEntries < 1 {
		errs = append(errs, "cache.max_entries must be at least 1")
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, "cache.ttl must not be negative")
	}

	if c.Automation.Enabled && c.Automation.Interval < 1 {
		errs = append(errs, "automation.interval must be at least 1 second")
	}
	if c.Automation.IdleThreshold < 1 {
		errs = append(errs, "automation.idle_threshold must be at least 1 minute")
	}

	// An empty secret disables auth; a short one is a misconfiguration.
	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (a APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (a APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (a APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}

// LanguageTimeout returns the inference timeout as a Duration.
func (c *Config) LanguageTimeout() time.Duration {
	return time.Duration(c.Language.Timeout) * time.Second
}

// CacheTTL returns the response cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

// AutomationInterval returns the rule evaluation interval.
func (c *Config) AutomationInterval() time.Duration {
	return time.Duration(c.Automation.Interval) * time.Second
}

// IdleThreshold returns how long a device may stay on unobserved.
func (c *Config) IdleThreshold() time.Duration {
	return time.Duration(c.Automation.IdleThreshold) * time.Minute
}

// PinTimeout returns the per-write hardware timeout.
func (c *Config) PinTimeout() time.Duration {
	return time.Duration(c.Hardware.PinTimeout) * time.Millisecond
}
