package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options controls where and how the logger writes.
type Options struct {
	// File receives JSON logs when set.
	File string
	// Pretty writes human-readable logs to stderr. Ignored when File is set.
	Pretty bool
	// Level overrides LOG_LEVEL when set.
	Level string
}

// Init initializes a logger writing JSON to stderr.
// Log level can be configured via LOG_LEVEL environment variable (debug, info, warn, error).
func Init() (zerolog.Logger, error) {
	return InitWithOptions(Options{})
}

// InitWithOptions initializes the logger with the specified options.
// Standard output is left to command results, so console logs go to stderr.
func InitWithOptions(opts Options) (zerolog.Logger, error) {
	levelName := opts.Level
	if levelName == "" {
		levelName = os.Getenv("LOG_LEVEL")
	}
	level := parseLogLevel(levelName)

	var output io.Writer
	switch {
	case opts.File != "":
		//nolint:gosec // G304: User-specified log file path is intentional
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		output = file
	case opts.Pretty:
		output = zerolog.ConsoleWriter{Out: os.Stderr}
	default:
		output = os.Stderr
	}

	log := New(output, level)

	switch {
	case opts.File != "":
		log.Debug().Str("path", opts.File).Str("level", level.String()).Msg("Logger initialized")
	case opts.Pretty:
		log.Debug().Str("output", "stderr").Str("format", "pretty").Str("level", level.String()).Msg("Logger initialized")
	default:
		log.Debug().Str("output", "stderr").Str("level", level.String()).Msg("Logger initialized")
	}

	return log, nil
}

// New creates a timestamped logger at level writing to w.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "trace":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}
