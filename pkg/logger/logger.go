// Package logger provides opinionated logging for the loom system: a
// charmbracelet/log pretty handler for CLI use, slog's JSON handler for
// services, and a fan-out handler for writing to both at once.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type settings struct {
	level   slog.Level
	pretty  bool
	json    bool
	source  bool
	writers []io.Writer
}

// New creates a *slog.Logger configured by the given options. The default
// is an Info-level pretty logger on stdout.
func New(opts ...Option) *slog.Logger {
	c := &settings{
		level:  slog.LevelInfo,
		pretty: true,
	}
	for _, opt := range opts {
		opt(c)
	}

	if len(c.writers) == 0 {
		c.writers = []io.Writer{os.Stdout}
	}

	w := c.writers[0]
	if len(c.writers) > 1 {
		w = io.MultiWriter(c.writers...)
	}

	return slog.New(c.handler(w))
}

func (c *settings) handler(w io.Writer) slog.Handler {
	if c.json {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		})
	}

	if c.pretty {
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:        toCharmLevel(c.level),
			ReportCaller: c.source,
		})
	}

	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     c.level,
		AddSource: c.source,
	})
}

// Nop returns a logger that discards everything. Useful as a default for
// components whose callers did not wire a logger.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func toCharmLevel(level slog.Level) charmlog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmlog.DebugLevel
	case level <= slog.LevelInfo:
		return charmlog.InfoLevel
	case level <= slog.LevelWarn:
		return charmlog.WarnLevel
	}
	return charmlog.ErrorLevel
}
