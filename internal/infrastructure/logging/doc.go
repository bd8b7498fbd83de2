// Package logging provides structured logging for Hearth.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and the same level filtering.
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("pipeline").Info("command handled", "intent", "turn_on")
//
// Never log secrets, tokens or passwords.
package logging
