/*
Package log provides structured logging for surreal-sync using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

surreal-sync's logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("driver")                  │          │
	│  │  - WithSource("postgresql-logical")         │          │
	│  │  - WithTable("public.orders")               │          │
	│  │  - WithCheckpoint("postgresql:sequence:42") │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "source": "mongodb",                     │          │
	│  │    "time": "2024-10-13T10:30:00Z",         │          │
	│  │    "message": "resumed change stream"       │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF resumed change stream source=mongodb │  │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all surreal-sync packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithSource: Add source family to all logs (postgresql-logical, mongodb, kafka, ...)
  - WithTable: Add table/collection name context
  - WithCheckpoint: Add the current checkpoint's wire-form string

# Log Levels

Debug Level:
  - Purpose: Detailed debugging information
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "peeked 214 wal2json changes, next_lsn=0/1A2B3C4"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "full sync completed: table=orders rows=182044"

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "checkpoint transition incremental->pending, treating as resync"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed operations, exceptions
  - Performance: Low volume
  - Example: "failed to advance replication slot: connection reset"

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable errors only
  - Behavior: Logs message and exits process (os.Exit(1))
  - Example: "failed to open checkpoint store: %v"

# Usage

Initializing the Logger:

	import "github.com/surrealdb/surreal-sync/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("sync started")
	log.Debug("checking replication slot status")
	log.Warn("extractor lag exceeds 60s")
	log.Error("failed to connect to source database")
	log.Fatal("cannot start without a checkpoint store") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("table", "orders").
		Int("rows", 4096).
		Msg("full sync batch applied")

	log.Logger.Error().
		Err(err).
		Str("checkpoint", cp.String()).
		Msg("failed to advance checkpoint")

Context Logger Helpers:

	// Source-specific logs
	srcLog := log.WithSource("postgresql-logical")
	srcLog.Info().Msg("replication slot created")

	// Table-specific logs
	tblLog := log.WithTable("public.orders")
	tblLog.Info().Msg("full sync started")

	// Checkpoint-specific logs
	cpLog := log.WithCheckpoint(cp.String())
	cpLog.Debug().Msg("checkpoint persisted")

# Integration Points

This package integrates with:

  - pkg/driver: Logs full sync and incremental sync progress
  - pkg/source/*: Logs per-source extraction events
  - pkg/sink: Logs the fallback to the v2 dialect when the version probe fails
  - pkg/pgstate: Logs PostgreSQL logical decoding state transitions
  - cmd/surreal-sync, pkg/syncmanager, pkg/auditgc: Log command and run lifecycle

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create source- or table-specific loggers
  - Log errors with .Err() for stack traces

Don't:
  - Log row payloads containing sensitive column data
  - Use Debug level in production
  - Log in tight loops over individual rows (use batch-level summaries)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
