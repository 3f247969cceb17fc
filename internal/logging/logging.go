// Package logging builds the zerolog loggers handed to every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	Format string // "console" | "json"
	Level  string // "debug" | "info" | "warn" | "error"
}

// New returns a logger writing to w (os.Stderr when nil). Console output is
// human readable with a short timestamp and the caller; json output is one
// object per line.
func New(cfg Config, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "console":
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    w != os.Stderr && w != os.Stdout,
			TimeFormat: "15:04:05.00",
			FormatCaller: func(i interface{}) string {
				return filepath.Base(fmt.Sprintf("%s", i))
			},
		}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("logging: unknown format %q (want console|json)", cfg.Format)
	}

	return zerolog.New(w).Level(level).With().
		Timestamp().
		Caller().
		Logger(), nil
}

// ParseLevel converts a level name to a zerolog.Level; empty is info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
}

// Component returns a child logger tagged with a component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Run returns a child logger tagged with the annex and run id of one load.
func Run(l zerolog.Logger, annex, runID string) zerolog.Logger {
	c := l.With().Str("run_id", runID)
	if annex != "" {
		c = c.Str("annex", annex)
	}
	return c.Logger()
}
