// Package logger provides the engine's structured logging over log/slog:
// JSON output for services, text output for interactive use, and a
// process-wide default used by the package-level helpers.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Default is the process-wide logger instance.
var Default *slog.Logger

func init() {
	// Logs go to stderr so command output on stdout stays parseable.
	Default = New("info", os.Stderr)
}

// ParseLevel maps a configured level name to a slog.Level. Unknown names
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a JSON logger with the specified level and output.
func New(level string, output io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// NewText creates a text-formatted logger, easier to read in a terminal.
func NewText(level string, output io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// SetDefault replaces both the package default and slog's default.
func SetDefault(logger *slog.Logger) {
	Default = logger
	slog.SetDefault(logger)
}

// Debug logs a debug message through the default logger.
func Debug(msg string, args ...any) {
	Default.Debug(msg, args...)
}

// Info logs an info message through the default logger.
func Info(msg string, args ...any) {
	Default.Info(msg, args...)
}

// Warn logs a warning through the default logger.
func Warn(msg string, args ...any) {
	Default.Warn(msg, args...)
}

// Error logs an error through the default logger.
func Error(msg string, args ...any) {
	Default.Error(msg, args...)
}

// With returns a logger with additional attributes attached.
func With(args ...any) *slog.Logger {
	return Default.With(args...)
}
