// Package logging configures the zerolog logger shared by every collector.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a textual log level as accepted on the command line.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"

	// LevelDisabled silences all output, for runs that print their own summary.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written.
	Level LogLevel

	// Pretty switches from JSON lines to console output.
	Pretty bool

	// Output defaults to os.Stderr so stdout stays free for data.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog level. Unknown names are an error.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off", "none":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-unit detail
//   - Cache hit/miss, cache key
//   - Each retry attempt and its backoff
//   - Keys resolved as not found
//
// Info: run milestones
//   - Collection start/complete with the aggregation report
//   - Units that succeeded after retries
//   - Metrics server startup/shutdown
//
// Warn: a unit was lost or delayed, the run continues
//   - Pages or keys that failed after retries, or failed to decode
//   - Server-signalled cooldowns
//   - Cache or cooldown store errors
//
// Error: the run cannot continue
//   - Configuration errors
//   - Export failures
//
// Context Fields:
//   - component: emitting package (retry, pagination, fetcher, client, ...)
//   - key: unit key (page number or user slug)
//   - page: page number
//   - attempt / attempts: attempt index or count
//   - error_kind: network, server, rate_limit, client, not_found, decode
//   - status_code: HTTP status code
//   - duration: elapsed time
//   - report: Snapshot.String() of the aggregation report
