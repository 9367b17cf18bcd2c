// Package log provides the structured logging interface used across mlwiz.
//
// The Logger interface is slog-compatible (alternating key/value fields) so
// estimators and the AutoML runner can log without depending on a concrete
// backend. The default backend is zerolog; see SetupLogger.
//
//	logger := log.GetLoggerWithName("automl.Runner").With(
//	    log.ProblemTypeKey, "Classification",
//	)
//	logger.Info("candidate evaluated",
//	    log.ModelNameKey, "Logistic Regression",
//	    log.AccuracyKey, 0.93,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
type Logger interface {
	// Debug logs a debug-level message with optional key/value fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key/value fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key/value fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. An error value passed as a field
	// is rendered with its message, and its stack trace when one is attached.
	Error(msg string, fields ...any)

	// With returns a child logger that adds fields to every entry.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits entries at level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging severity. Values match log/slog.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider hands out loggers that share a backend and level.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
