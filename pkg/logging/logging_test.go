package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" Error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg := DefaultConfig()
	if cfg.Level != slog.LevelWarn || !cfg.JSON {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}

	t.Setenv("LOG_FORMAT", "text")
	if DefaultConfig().JSON {
		t.Error("LOG_FORMAT=text selected JSON")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, JSON: true, Output: &buf})

	logger.Debug("hidden")
	logger.Info("charge added", "count", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "charge added" || entry["count"] != float64(3) {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	logger.Info("login", "email", "ana@example.com", "password", "hunter2", "jwt_token", "abc.def")

	out := buf.String()
	if strings.Contains(out, "hunter2") || strings.Contains(out, "abc.def") {
		t.Errorf("credentials leaked: %s", out)
	}
	if !strings.Contains(out, "ana@example.com") || strings.Count(out, "[redacted]") != 2 {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestDiscard(t *testing.T) {
	if Discard().Enabled(t.Context(), slog.LevelError) {
		t.Error("Discard logger reports errors as enabled")
	}
}
