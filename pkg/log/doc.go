/*
Package log provides structured logging for Skulk using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers and configurable log levels. All logs include
timestamps and support filtering by severity level.

Initialize once at startup, then derive child loggers per component:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("scheduler")
	logger.Info().Str("task", "crawl").Msg("task registered")

Child logger helpers attach the fields used throughout the codebase:
WithComponent for subsystems, WithTask for scheduler tasks, WithSource for
crawl adapters, and WithWorkerID for the per-process identity used in
leader election.
*/
package log
