// Package logging configures the global zerolog logger for the crawler.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Component names attached to every log line as "component".
const (
	ComponentCLI        = "cli"
	ComponentHarvest    = "harvest"
	ComponentFetch      = "fetch"
	ComponentPagination = "pagination"
	ComponentClient     = "client"
	ComponentRateLimit  = "ratelimit"
	ComponentCache      = "cache"
	ComponentSummary    = "summary"
	ComponentMetrics    = "metrics"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. Packages that captured a
// component logger before Setup keep the previous output, so call it first.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// ParseLevel validates a user-supplied level name.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-request and per-page detail
//   - Request attempts, listing pages received
//   - Page cache hits, misses and purges
//   - Worker completion
//
// Info: run milestones
//   - Listing verified, pass started, progress ticks
//   - Fetch finished, harvest complete, summary written
//
// Warn: recoverable conditions
//   - Retry attempts and backoff
//   - Limiter interval raised or cursor pushed forward
//   - Detail returned a different id
//   - Page cache unavailable (fallback to network)
//
// Error: run-ending conditions
//   - Completeness mismatch
//   - Item failure aborting the run
//   - Items still missing after every pass
//
// Context Fields:
//   - component: emitting package
//   - run_id: one harvest run
//   - root_id: collection being harvested
//   - item_id, worker_id, pass: fetch pipeline position
//   - endpoint, status_code, error_class, attempt, backoff: request detail
//   - limiter, interval, penalty: pacing state
