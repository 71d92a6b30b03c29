// Package applog is a thin log/slog wrapper shared by the orchestrator,
// extractors, and the REST layer: JSON output in production, a
// human-readable text handler once debug mode is enabled. Callers pass
// structured key/value pairs through to any of the four level methods.
package applog

import (
	"log/slog"
	"os"
)

var (
	// Logger is the package-wide structured logger. Setup installs it;
	// until Setup is called it defaults to a JSON handler at info level
	// so early-startup logging before config is loaded still works.
	Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	level = new(slog.LevelVar)
)

// Setup installs the package logger. debug selects a human-readable
// text handler at debug level; otherwise a JSON handler at info level,
// the shape a process running under log aggregation expects.
func Setup(debug bool) {
	if debug {
		level.Set(slog.LevelDebug)
		Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		return
	}
	level.Set(slog.LevelInfo)
	Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// Debug logs at debug level. A no-op unless Setup(true) was called.
func Debug(msg string, args ...any) { Logger.Debug(msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { Logger.Info(msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { Logger.Warn(msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { Logger.Error(msg, args...) }

// IsDebugMode reports whether Setup(true) is currently in effect.
func IsDebugMode() bool { return level.Level() == slog.LevelDebug }
