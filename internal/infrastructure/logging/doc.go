// Package logging provides structured logging for iotc-device.
//
// This package wraps Go's standard log/slog package so the session,
// provisioning and transport layers all log the same way.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version).ForDevice(cfg.Device.ScopeID, cfg.Device.DeviceID)
//	logger.Info("connected", "host", host)
//
// # Security
//
// Never log device keys or SAS tokens. Use Redact when a credential has
// to appear in a diagnostic:
//
//	logger.Debug("token issued", "token", logging.Redact(token))
package logging
