package log

import (
	"context"
	stdlog "log"
	"log/slog"
)

// Handler is a slog.Handler that writes through a Logger. Standard library
// code that only knows slog or *log.Logger (net/http's ErrorLog) ends up in
// the same zerolog sink, with error attributes rendered with their stack
// trace and details like any other field.
type Handler struct {
	logger Logger
	prefix string // WithGroup で付いたキー接頭辞
}

// NewHandler wraps l.
func NewHandler(l Logger) *Handler {
	return &Handler{logger: l}
}

// NewStdLogger returns a *log.Logger whose lines are logged to l at level.
func NewStdLogger(l Logger, level Level) *stdlog.Logger {
	return slog.NewLogLogger(NewHandler(l), slog.Level(level))
}

func (h *Handler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.logger.Enabled(ctx, Level(l))
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]any, 0, 2*r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		fields = appendAttr(fields, h.prefix, a)
		return true
	})
	switch {
	case r.Level >= slog.LevelError:
		h.logger.Error(r.Message, fields...)
	case r.Level >= slog.LevelWarn:
		h.logger.Warn(r.Message, fields...)
	case r.Level >= slog.LevelInfo:
		h.logger.Info(r.Message, fields...)
	default:
		h.logger.Debug(r.Message, fields...)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var fields []any
	for _, a := range attrs {
		fields = appendAttr(fields, h.prefix, a)
	}
	return &Handler{logger: h.logger.With(fields...), prefix: h.prefix}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{logger: h.logger, prefix: h.prefix + name + "."}
}

// appendAttr flattens groups into dotted keys, matching the attribute
// naming in attributes.go.
func appendAttr(fields []any, prefix string, a slog.Attr) []any {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return fields
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, g := range a.Value.Group() {
			fields = appendAttr(fields, p, g)
		}
		return fields
	}
	return append(fields, prefix+a.Key, a.Value.Any())
}
