package logging

import (
	"log/slog"
	"os"
	"strings"
)

const componentKey = "component"

// New creates the console slog.Logger the application logs through, at the
// level named in configuration.
func New(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: Level(level),
	})
	return slog.New(handler)
}

// Component derives a subsystem logger so every adapter's lines carry the
// same attribute key. A nil base falls back to a default logger.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = New("info")
	}
	return logger.With(componentKey, name)
}

// Level maps a configuration string to a slog level. Unknown values resolve
// to debug so a typo surfaces everything rather than hiding it.
func Level(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
