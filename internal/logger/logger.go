package logger

import (
	"log/slog"
	"os"

	"github.com/amaki/voicereply/internal/config"
)

// Setup configures structured JSON logging for server processes.
func Setup(cfg *config.Config) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level(cfg),
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// SetupCLI configures text logging to stderr for the interactive CLI so
// log lines do not corrupt the TUI on stdout.
func SetupCLI(cfg *config.Config) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level(cfg),
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

func level(cfg *config.Config) slog.Level {
	if cfg.LogLevel == "debug" || cfg.Env == "development" {
		return slog.LevelDebug
	}

	return slog.LevelInfo
}
