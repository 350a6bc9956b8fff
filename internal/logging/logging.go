// Package logging configures the process-wide zerolog logger.
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

// Config selects the log level and output format.
type Config struct {
	Level  string    // trace, debug, info, warn, error; default info
	Format string    // "json" or "console" (default)
	Out    io.Writer // default os.Stderr
}

// Setup configures the global logger and level. It returns the logger so
// callers can derive component loggers from it.
func Setup(cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if s := strings.TrimSpace(cfg.Level); s != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		zerolog.TimeFieldFormat = time.RFC3339Nano
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	case "", "console", "text":
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	default:
		return zerolog.Logger{}, fmt.Errorf("log format %q: use \"json\" or \"console\"", cfg.Format)
	}
	zerolog.SetGlobalLevel(level)
	return log.Logger, nil
}
