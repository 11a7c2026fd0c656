// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
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

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	// Ignored when FilePath is set.
	Output io.Writer

	// FilePath enables rotated file output via lumberjack.
	FilePath string

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int

	// Compress gzips rotated files.
	Compress bool
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Pretty:     false,
		Output:     os.Stderr,
		MaxSizeMB:  100,
		MaxBackups: 10,
		Compress:   true,
	}
}

// Setup configures the global zerolog logger. A file output that cannot be
// prepared falls back to the configured writer and logs a warning.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	output, outErr := buildOutput(cfg)
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	if outErr != nil {
		logger.Warn().Err(outErr).Str("path", cfg.FilePath).Msg("Log file unavailable, using fallback output")
	}

	return logger
}

// buildOutput returns the rotating file writer when FilePath is set,
// otherwise the configured writer.
func buildOutput(cfg Config) (io.Writer, error) {
	fallback := cfg.Output
	if fallback == nil {
		fallback = os.Stderr
	}
	if cfg.FilePath == "" {
		return fallback, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return fallback, fmt.Errorf("create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
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
// Debug: Detailed information for debugging
//   - Cache hits and misses (key, modules)
//   - Feature set and target resolution
//   - Snapshot record counts per batch
//
// Info: Normal operation events
//   - Bundle compiled and cached
//   - Priming progress per feature set
//   - Snapshot restored / saved
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Bundle too large to cache (served uncached)
//   - Priming combination failed with ContinueOnError
//   - Log file fallback
//
// Error: Error conditions requiring attention
//   - Bundle compilation failures
//   - Snapshot I/O failures
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package or subsystem
//   - key: cache key digest
//   - modules: ordered bundler entry list
//   - minify: minification flag
//   - feature_set: feature set name
//   - target: platform query or user agent
//   - elapsed: time since a priming pass started
//   - cache_entries: store size after an operation
