// Package logger provides the structured logging interface used by every
// component of the exporter.
//
// It wraps zerolog behind a small Logger interface with support for:
// - Leveled messages (Debug, Info, Warn, Error, Fatal)
// - Structured fields and child loggers
// - Colored console output on stderr, optionally teed into a JSON log file
// - A capturing TestLogger and a no-op logger for tests
//
// Components receive a Logger explicitly; the global instance set up by
// Initialize is only a fallback for the command layer.
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "exporter")
//	log.InfoWithFields("Planned export ranges", map[string]interface{}{
//	    "total":  1234,
//	    "ranges": 3,
//	})
package logger
