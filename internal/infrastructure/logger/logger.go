// Package logger builds the process-wide structured logger.
// Grounded on the teacher's internal/infrastructure/logger/logger.go:
// log/slog with a JSON/text handler switch driven by config, source
// location only at debug level.
package logger

import (
	"log/slog"
	"os"

	"github.com/textforge/dagflow/internal/config"
)

// New builds a *slog.Logger from LoggingConfig. Unlike the teacher,
// this returns the stdlib *slog.Logger directly rather than a
// hand-rolled wrapper type: nothing downstream needs the wrapper's
// extra surface, and slog.Logger already carries With/Context
// variants.
func New(cfg config.LoggingConfig) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.Level == "debug",
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
