// Package logging provides structured logging for the Fairland bridge,
// built on log/slog.
//
// Every entry carries service and version attributes so bridge output can
// be identified in an aggregated stream. Output is JSON by default
// (machine-parsable, for production) or text for development, configured
// via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("bridge started", "devices", 2)
//	logger.Error("cloud poll failed", "error", err)
//
// Never log credentials or session tokens. The vendor account password and
// the cloud token in particular must not appear in any log entry.
package logging
