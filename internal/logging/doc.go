// Package logging provides structured logging for NimbusDB, wrapping
// go.uber.org/zap behind a small, stable interface so the rest of the
// module never imports zap directly.
//
// # Overview
//
// The logging package provides a structured logging interface with support for:
//
//   - Multiple log levels (debug, info, warn, error)
//   - Text and JSON output formats
//   - Request ID tracking for distributed tracing
//   - Field-based contextual logging
//
// # Creating a Logger
//
// Create a logger with configuration:
//
//	logger := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "/var/log/nimbusdb/nimbusdb.log",
//	})
//
// Or use defaults:
//
//	logger := logging.NewDefault() // Info level, text format, stdout
//
// For testing, use a no-op logger:
//
//	logger := logging.NewNop()
//
// # Log Levels
//
// Four log levels are supported:
//
//	logger.Debug("detailed debugging info", "key", "value")
//	logger.Info("informational message", "key", "value")
//	logger.Warn("warning message", "key", "value")
//	logger.Error("error message", "key", "value")
//
// Parse level from string:
//
//	level := logging.ParseLevel("debug") // Returns LevelDebug
//
// # Structured Logging
//
// Add key-value pairs to log entries:
//
//	logger.Info("query executed",
//	    "collection", "authors",
//	    "main_index", "age",
//	    "result_count", 3,
//	)
//
// Output (JSON format):
//
//	{
//	    "level": "info",
//	    "ts": "2026-02-18T10:30:00Z",
//	    "msg": "query executed",
//	    "collection": "authors",
//	    "main_index": "age",
//	    "result_count": 3
//	}
//
// # Request ID Tracking
//
// Add request ID for tracing:
//
//	requestID := logging.GenerateRequestID()
//	connLogger := logger.WithRequestID(requestID)
//
//	connLogger.Info("processing request") // Includes request_id field
//
// # Contextual Fields
//
// Create loggers with persistent fields:
//
//	connLogger := logger.WithFields(
//	    "collection", "authors",
//	    "request_id", requestID,
//	)
//
//	// All subsequent logs include these fields
//	connLogger.Info("query received")
//	connLogger.Info("query executed")
//
// # Output Formats
//
// Text format (human-readable):
//
//	2026-02-18T10:30:00Z info query executed {"collection": "authors", "result_count": 3}
//
// JSON format (machine-parseable):
//
//	{"level":"info","ts":"2026-02-18T10:30:00Z","msg":"query executed",...}
//
// # Output Destinations
//
// Configure output destination:
//
//	logging.Config{Output: "stdout"}                  // Standard output
//	logging.Config{Output: "stderr"}                  // Standard error
//	logging.Config{Output: "/var/log/nimbusdb.log"}   // File path
package logging
