package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger built by New.
type Option func(*settings)

// WithDebug lowers the level to Debug. The default level is Info.
func WithDebug(debug bool) Option {
	return func(s *settings) {
		if debug {
			s.level = slog.LevelDebug
		}
	}
}

// WithPretty switches to the charmbracelet/log handler for colorized
// terminal output. This is what the CLI commands use.
func WithPretty(pretty bool) Option {
	return func(s *settings) {
		s.pretty = pretty
	}
}

// WithJSON switches to slog's JSON handler. This is what the API server
// uses so log aggregators get structured records.
func WithJSON(json bool) Option {
	return func(s *settings) {
		s.json = json
	}
}

// WithWriter directs output to w instead of os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		s.writers = []io.Writer{w}
	}
}

// WithWriters directs output to every given writer via io.MultiWriter.
func WithWriters(w ...io.Writer) Option {
	return func(s *settings) {
		s.writers = w
	}
}

// WithSource annotates records with the emitting file and line.
func WithSource(source bool) Option {
	return func(s *settings) {
		s.source = source
	}
}
