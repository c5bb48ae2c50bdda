// Package logging builds the process logger.
//
// Output always goes to stderr unless a writer is supplied: stdout is the
// MCP stdio transport and anything else written there corrupts the protocol.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Formats accepted by WithFormat.
const (
	FormatPretty = "pretty"
	FormatText   = "text"
	FormatJSON   = "json"
)

type config struct {
	level  slog.Level
	format string
	writer io.Writer
	source bool
}

// Option configures a logger created with New.
type Option func(*config)

// WithLevel sets the minimum level.
func WithLevel(l slog.Level) Option {
	return func(c *config) { c.level = l }
}

// WithDebug sets the level to Debug when true, Info otherwise.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		} else {
			c.level = slog.LevelInfo
		}
	}
}

// WithFormat selects pretty (charmbracelet/log), text or json output.
func WithFormat(format string) Option {
	return func(c *config) { c.format = format }
}

// WithWriter overrides the output writer. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.writer = w }
}

// WithSource includes source file:line in log output.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}

// New creates a *slog.Logger.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:  slog.LevelInfo,
		format: FormatPretty,
		writer: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}

	switch c.format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(c.writer, &slog.HandlerOptions{Level: c.level, AddSource: c.source}))
	case FormatText:
		return slog.New(slog.NewTextHandler(c.writer, &slog.HandlerOptions{Level: c.level, AddSource: c.source}))
	default:
		h := charmlog.NewWithOptions(c.writer, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
			ReportCaller:    c.source,
			Prefix:          "hbadvisor",
		})
		return slog.New(h)
	}
}

// ParseLevel converts debug/info/warn/error into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// ValidFormat reports whether format is accepted by WithFormat.
func ValidFormat(format string) bool {
	switch format {
	case FormatPretty, FormatText, FormatJSON:
		return true
	}
	return false
}
