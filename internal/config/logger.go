package config

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide logger: JSON at info level in
// production, human-readable text with source locations otherwise.
func NewLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: env == "development",
	}))
}
