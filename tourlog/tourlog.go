// CLAUDE:SUMMARY Builds the engine's slog logger with the level resolved once from environment and config.
// Package tourlog builds the leveled diagnostic logger shared by every
// tour component. The level is decided once at startup from the configured
// environment; call sites never inspect the environment themselves.
package tourlog

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Environment names.
const (
	Development = "development"
	Production  = "production"
)

// Config selects the handler and level.
type Config struct {
	// Environment is development or production. Default: production.
	Environment string `yaml:"environment"`
	// Level overrides the environment default: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or text. Default: json.
	Format string `yaml:"format"`
}

// ParseLevel maps a level name to slog. Unknown names yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinLevel resolves the effective minimum level.
func (c Config) MinLevel() slog.Level {
	if c.Level != "" {
		return ParseLevel(c.Level)
	}
	if strings.EqualFold(c.Environment, Development) {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// New returns a logger writing to w (stderr when nil).
func New(cfg Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.MinLevel()}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// OrDefault returns l, or slog.Default when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
