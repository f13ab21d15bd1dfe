// Package logging builds the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
)

// New creates a structured JSON logger tagged with the service name.
func New(serviceName string) *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("service", serviceName))
}

func parseLevel(raw string) slog.Level {
	switch raw {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
