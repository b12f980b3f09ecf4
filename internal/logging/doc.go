// Package logging provides structured logging for devfinder.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used by the discovery engine. CLI commands stay silent by
// default: nothing is written unless a level is configured.
//
// # Log Levels
//
//   - Debug: per-probe outcomes, soft failures, CLI output
//   - Info: phase transitions, devices found, IPC commands
//   - Warn: degraded phases (mesh CLI missing, interface errors)
//   - Error: unexpected failures that abort a phase
//
// # Structured Logging
//
//	logging.Info("Device found",
//	    zap.String("id", "abc123"),
//	    zap.String("source", "subnet-probe"),
//	)
//
// # Domain Helpers
//
//	logging.LogPhase("mesh", "started")
//	logging.LogProbe("http://192.168.1.20:8000/health", false, "timeout")
//	logging.LogCommand(remoteAddr, "start-scan")
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When the level argument is empty the DEVFINDER_LOG_LEVEL environment
// variable is consulted. If neither is set a no-op logger is installed.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
