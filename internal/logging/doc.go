// Package logging provides structured logging with per-module log level
// configuration, and the Sink contract used to audit child process output.
//
// # Overview
//
// Diagnostics use Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stderr when a terminal, pipe, or file is connected
//   - Keeps the most recent entries in a ring buffer (see GetBuffer)
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"process": "debug",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("process")
//	logger.Info("Process started", "pid", pid)
//
// # Sinks
//
// A Sink receives audit messages (child output lines, exit code outcomes)
// at one of six levels: trace, debug, information, warning, error and
// critical. NewSlogSink adapts any *slog.Logger; trace and critical map
// just outside slog's built-in range and render as TRACE and CRITICAL.
//
//	sink := logging.NewSlogSink(logging.GetLogger("child"))
//	sink.Log(logging.LevelInformation, "build finished")
//
// # Viewing Logs
//
// When running under systemd or on a system with journald:
//
//	journalctl -t proclaunch              # All proclaunch logs
//	journalctl -t proclaunch -p err       # Errors only
//	journalctl -t proclaunch MODULE=child # Child process output only
//
// # Configuration
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	process = "debug"
package logging
