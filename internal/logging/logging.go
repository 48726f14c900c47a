// Package logging builds the shared slog.Logger used by all three binaries
// (cmd/monitor, cmd/worker, cmd/server), factored out of what the teacher
// inlines per-service since here all three share one module.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

func New(levelRaw, formatRaw string) *slog.Logger {
	level := parseLevel(levelRaw)
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
