package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	mlerrors "github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps zl.
func NewZerologLogger(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{zl: zl}
}

func (l *ZerologLogger) Debug(msg string, fields ...any) { emit(l.zl.Debug(), msg, fields) }
func (l *ZerologLogger) Info(msg string, fields ...any)  { emit(l.zl.Info(), msg, fields) }
func (l *ZerologLogger) Warn(msg string, fields ...any)  { emit(l.zl.Warn(), msg, fields) }
func (l *ZerologLogger) Error(msg string, fields ...any) { emit(l.zl.Error(), msg, fields) }

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	forEachField(fields, func(key string, value any) {
		if err, ok := value.(error); ok {
			ctx = ctx.Str(key, err.Error())
			return
		}
		ctx = ctx.Interface(key, value)
	})
	return &ZerologLogger{zl: ctx.Logger()}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	zlevel := toZerologLevel(level)
	return zlevel >= l.zl.GetLevel() && zlevel >= zerolog.GlobalLevel()
}

// Zerolog returns the underlying zerolog logger.
func (l *ZerologLogger) Zerolog() zerolog.Logger {
	return l.zl
}

func emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return // level disabled
	}
	forEachField(fields, func(key string, value any) {
		appendField(e, key, value)
	})
	e.Msg(msg)
}

// forEachField walks alternating key/value pairs. A trailing key without a
// value, or a bare error in key position, is reported the way slog does.
func forEachField(fields []any, fn func(key string, value any)) {
	for i := 0; i < len(fields); {
		if err, ok := fields[i].(error); ok {
			fn(ErrorKey, err)
			i++
			continue
		}
		if i+1 >= len(fields) {
			fn("!BADKEY", fields[i])
			return
		}
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		fn(key, fields[i+1])
		i += 2
	}
}

func appendField(e *zerolog.Event, key string, value any) {
	switch v := value.(type) {
	case error:
		e.AnErr(key, v)
		if st := extractStacktrace(v); st != "" {
			e.Str(StacktraceKey, st)
		}
		var m zerolog.LogObjectMarshaler
		if errors.As(v, &m) {
			e.Object(ErrorDetailsKey, m)
		}
	case time.Duration:
		e.Dur(key, v)
	case zerolog.LogObjectMarshaler:
		e.Object(key, v)
	case []string:
		e.Strs(key, v)
	default:
		e.Interface(key, v)
	}
}

// extractStacktrace returns the first safe detail recorded by
// cockroachdb/errors, which holds the stack captured by WithStack.
func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

// ParseLevel converts "debug", "info", "warn" or "error" to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, mlerrors.NewValidationError("log.level", "must be one of debug, info, warn, error", level)
	}
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ===========================================================================
//
//	グローバルプロバイダ
//
// ===========================================================================

// ZerologProvider is the default LoggerProvider.
type ZerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

// NewZerologProvider creates a provider writing to w. When pretty is true the
// output goes through zerolog.ConsoleWriter.
func NewZerologProvider(w io.Writer, level Level, pretty bool) *ZerologProvider {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}
	}
	base := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologProvider{base: base}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return NewZerologLogger(p.base)
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return NewZerologLogger(p.base.With().Str(ComponentKey, name).Logger())
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
}

var (
	providerMu      sync.RWMutex
	defaultProvider LoggerProvider = NewZerologProvider(os.Stderr, LevelInfo, false)
)

// SetupLogger configures the global provider and routes library warnings
// (pkg/errors.Warn) through it.
func SetupLogger(level string, pretty bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.TimeFieldFormat = time.RFC3339
	SetProvider(NewZerologProvider(os.Stderr, lvl, pretty))
	return nil
}

// SetProvider replaces the global provider. Tests use it with a TestLoggerProvider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defaultProvider = p
	providerMu.Unlock()

	warnLogger := p.GetLoggerWithName("warnings")
	mlerrors.SetZerologWarnFunc(func(w error) {
		warnLogger.Warn(w.Error(), ErrorKey, w)
	})
}

// GetLogger returns a logger from the global provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return defaultProvider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with the given component name.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return defaultProvider.GetLoggerWithName(name)
}
