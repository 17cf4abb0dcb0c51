// Package logging sets up log/slog for parcelas.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls the handler built by New.
type Config struct {
	Level slog.Level
	// JSON selects slog's JSON handler instead of text.
	JSON bool
	// AddSource records the caller's file and line.
	AddSource bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig reads LOG_LEVEL (DEBUG, INFO, WARN, ERROR; default INFO),
// LOG_FORMAT (json or text) and LOG_SOURCE (true to add call sites).
func DefaultConfig() Config {
	return Config{
		Level:     parseLogLevel(os.Getenv("LOG_LEVEL")),
		JSON:      strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "json"),
		AddSource: strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_SOURCE")), "true"),
		Output:    os.Stderr,
	}
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err == nil {
		return l
	}
	if strings.EqualFold(strings.TrimSpace(level), "warning") {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Setup builds a logger with New and makes it the process default.
func Setup(cfg Config) *slog.Logger {
	logger := New(cfg)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger without touching the process default. Attributes
// whose key names a credential are redacted.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redact,
	}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var secretKeys = []string{"password", "senha", "secret", "token", "authorization"}

func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, "[redacted]")
		}
	}
	return a
}
