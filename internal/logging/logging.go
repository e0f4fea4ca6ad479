package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New creates a console slog.Logger carrying the deployment-environment tag.
func New(level, environment string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromString(level),
	})
	logger := slog.New(handler)
	if environment != "" {
		logger = logger.With("env", environment)
	}
	return logger
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
