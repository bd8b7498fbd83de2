package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-home"
database:
  path: "/tmp/test.db"
language:
  endpoint: "http://ollama:11434"
  model: "llama3"
cache:
  backend: "memory"
  ttl: 120
  max_entries: 50
automation:
  interval: 10
  idle_threshold: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-home" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-home")
	}
	if cfg.Language.Model != "llama3" {
		t.Errorf("Language.Model = %q, want %q", cfg.Language.Model, "llama3")
	}
	if cfg.CacheTTL() != 2*time.Minute {
		t.Errorf("CacheTTL() = %v, want 2m", cfg.CacheTTL())
	}
	if cfg.Cache.MaxEntries != 50 {
		t.Errorf("Cache.MaxEntries = %d, want 50", cfg.Cache.MaxEntries)
	}
	if cfg.AutomationInterval() != 10*time.Second {
		t.Errorf("AutomationInterval() = %v, want 10s", cfg.AutomationInterval())
	}
	if cfg.IdleThreshold() != 5*time.Minute {
		t.Errorf("IdleThreshold() = %v, want 5m", cfg.IdleThreshold())
	}
	// Untouched sections keep their defaults.
	if cfg.Hardware.Driver != "simulated" {
		t.Errorf("Hardware.Driver = %q, want simulated", cfg.Hardware.Driver)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.API.Port != 5000 {
		t.Errorf("API.Port = %d, want 5000", cfg.API.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
site:
  id: ""
hardware:
  driver: "gpio-magic"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// All problems are reported together.
	for _, want := range []string{"site.id", "hardware.driver"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "port ignored when API disabled", mutate: func(c *Config) { c.API.Enabled = false; c.API.Port = 0 }},
		{name: "mqtt driver without mqtt", mutate: func(c *Config) { c.Hardware.Driver = "mqtt" }, wantErr: true},
		{name: "mqtt driver with mqtt", mutate: func(c *Config) { c.Hardware.Driver = "mqtt"; c.MQTT.Enabled = true }},
		{name: "unknown cache backend", mutate: func(c *Config) { c.Cache.Backend = "disk" }, wantErr: true},
		{name: "zero cache bound", mutate: func(c *Config) { c.Cache.MaxEntries = 0 }, wantErr: true},
		{name: "confidence out of range", mutate: func(c *Config) { c.Language.MinConfidence = 1.5 }, wantErr: true},
		{name: "zero automation interval", mutate: func(c *Config) { c.Automation.Interval = 0 }, wantErr: true},
		{name: "empty JWT secret disables auth", mutate: func(c *Config) { c.Security.JWT.Secret = "" }},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
		{name: "JWT secret long enough", mutate: func(c *Config) { c.Security.JWT.Secret = "test-secret-key-at-least-32-chars!" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Language: LanguageConfig{Timeout: 12},
		Hardware: HardwareConfig{PinTimeout: 250},
	}

	if got := cfg.API.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.API.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.API.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.LanguageTimeout(); got != 12*time.Second {
		t.Errorf("LanguageTimeout() = %v, want 12s", got)
	}
	if got := cfg.PinTimeout(); got != 250*time.Millisecond {
		t.Errorf("PinTimeout() = %v, want 250ms", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("HEARTH_DATABASE_PATH", "/custom/path.db")
	t.Setenv("HEARTH_MQTT_HOST", "mqtt.example.com")
	t.Setenv("HEARTH_MQTT_USERNAME", "testuser")
	t.Setenv("HEARTH_MQTT_PASSWORD", "testpass")
	t.Setenv("HEARTH_API_HOST", "192.168.1.1")
	t.Setenv("HEARTH_API_PORT", "8088")
	t.Setenv("HEARTH_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("HEARTH_LANGUAGE_MODEL", "llama3:8b")
	t.Setenv("HEARTH_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Language.Model", cfg.Language.Model, "llama3:8b"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if cfg.API.Port != 8088 {
		t.Errorf("API.Port = %d, want 8088", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("Default MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Cache.MaxEntries != 100 {
		t.Errorf("Default Cache.MaxEntries = %d, want 100", cfg.Cache.MaxEntries)
	}
	if cfg.Automation.PowerLimitWatts != 3000 {
		t.Errorf("Default Automation.PowerLimitWatts = %v, want 3000", cfg.Automation.PowerLimitWatts)
	}
	if cfg.AutomationInterval() != 30*time.Second {
		t.Errorf("Default AutomationInterval() = %v, want 30s", cfg.AutomationInterval())
	}
}
