// Package config loads the hub configuration from config.yaml.
//
// Values are resolved in three layers: Default, then the YAML file, then
// HEARTH_* environment variables. Validate runs last and reports every
// problem at once. LoadOrDefault accepts a missing file so a fresh
// checkout starts with the built-in simulator and catalog.
//
// Secrets have environment overrides and are best kept in .env:
//
//	HEARTH_MQTT_PASSWORD
//	HEARTH_INFLUXDB_TOKEN
//	HEARTH_REDIS_PASSWORD
//	HEARTH_JWT_SECRET
//
// Durations are stored as integer seconds and read through the accessor
// methods, e.g. cfg.LanguageTimeout() or cfg.CacheTTL().
package config
