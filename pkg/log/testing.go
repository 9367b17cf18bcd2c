package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// TestLogger captures log entries in memory as JSON lines so tests can
// assert on them. It is safe for concurrent use; the AutoML runner logs
// from worker goroutines.
type TestLogger struct {
	sink   *testSink
	level  Level
	fields map[string]any
}

type testSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewTestLogger creates a TestLogger capturing entries at level and above.
//
//	logger, buffer := log.NewTestLogger(log.LevelDebug)
//	logger.Info("test message", "key", "value")
//	assert.Contains(t, buffer.String(), "test message")
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	sink := &testSink{}
	return &TestLogger{sink: sink, level: level, fields: map[string]any{}}, &sink.buf
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.write(LevelDebug, msg, fields) }
func (t *TestLogger) Info(msg string, fields ...any)  { t.write(LevelInfo, msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...any)  { t.write(LevelWarn, msg, fields) }
func (t *TestLogger) Error(msg string, fields ...any) { t.write(LevelError, msg, fields) }

// With implements Logger.With.
func (t *TestLogger) With(fields ...any) Logger {
	merged := make(map[string]any, len(t.fields)+len(fields)/2)
	for k, v := range t.fields {
		merged[k] = v
	}
	forEachField(fields, func(key string, value any) {
		merged[key] = plainValue(value)
	})
	return &TestLogger{sink: t.sink, level: t.level, fields: merged}
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	return t.level <= level
}

func (t *TestLogger) write(level Level, msg string, fields []any) {
	if t.level > level {
		return
	}
	entry := map[string]any{
		"level":   level.String(),
		"message": msg,
	}
	for k, v := range t.fields {
		entry[k] = v
	}
	forEachField(fields, func(key string, value any) {
		entry[key] = plainValue(value)
	})

	data, err := json.Marshal(entry)
	if err != nil {
		data, _ = json.Marshal(map[string]any{"level": level.String(), "message": msg, "marshal_error": err.Error()})
	}

	t.sink.mu.Lock()
	t.sink.buf.Write(data)
	t.sink.buf.WriteByte('\n')
	t.sink.mu.Unlock()
}

func plainValue(v any) any {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}

// GetLogEntries parses the captured output.
func (t *TestLogger) GetLogEntries() ([]map[string]any, error) {
	t.sink.mu.Lock()
	raw := t.sink.buf.String()
	t.sink.mu.Unlock()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any captured entry contains message.
func (t *TestLogger) ContainsMessage(message string) bool {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	return strings.Contains(t.sink.buf.String(), message)
}

// ContainsField reports whether some entry has key set to value. Numbers
// come back from JSON as float64.
func (t *TestLogger) ContainsField(key string, value any) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Clear drops everything captured so far.
func (t *TestLogger) Clear() {
	t.sink.mu.Lock()
	t.sink.buf.Reset()
	t.sink.mu.Unlock()
}

// TestLoggerProvider implements LoggerProvider on top of a TestLogger.
type TestLoggerProvider struct {
	logger *TestLogger
}

// NewTestLoggerProvider creates a provider and returns the shared TestLogger.
func NewTestLoggerProvider(level Level) (*TestLoggerProvider, *TestLogger) {
	logger, _ := NewTestLogger(level)
	return &TestLoggerProvider{logger: logger}, logger
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *TestLoggerProvider) GetLogger() Logger {
	return p.logger
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.logger.With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *TestLoggerProvider) SetLevel(level Level) {
	p.logger.level = level
}
