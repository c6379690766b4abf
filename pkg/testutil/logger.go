package testutil

import (
	"context"
	"sync"

	"github.com/nimburion/movies/pkg/observability/logger"
)

// MockLogger is a test logger that captures log entries for assertion in tests.
type MockLogger struct {
	mu     sync.Mutex
	Logs   []LogEntry
	fields []any
}

// LogEntry represents a single log entry captured by MockLogger.
type LogEntry struct {
	Level  string
	Msg    string
	Fields map[string]interface{}
}

// Debug records a debug-level log entry.
func (m *MockLogger) Debug(msg string, args ...any) { m.record("debug", msg, args) }

// Info records an info-level log entry.
func (m *MockLogger) Info(msg string, args ...any) { m.record("info", msg, args) }

// Warn records a warn-level log entry.
func (m *MockLogger) Warn(msg string, args ...any) { m.record("warn", msg, args) }

// Error records an error-level log entry.
func (m *MockLogger) Error(msg string, args ...any) { m.record("error", msg, args) }

// With returns a child that records into the same buffer with extra fields.
func (m *MockLogger) With(args ...any) logger.Logger {
	return &childLogger{root: m, fields: append(append([]any{}, m.fields...), args...)}
}

// WithContext attaches the request ID found in ctx.
func (m *MockLogger) WithContext(ctx context.Context) logger.Logger {
	if id := logger.RequestIDFromContext(ctx); id != "" {
		return m.With("request_id", id)
	}
	return m
}

// Entries returns a snapshot of the captured entries.
func (m *MockLogger) Entries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogEntry(nil), m.Logs...)
}

// Find returns the first entry with the given message.
func (m *MockLogger) Find(msg string) (LogEntry, bool) {
	for _, e := range m.Entries() {
		if e.Msg == msg {
			return e, true
		}
	}
	return LogEntry{}, false
}

func (m *MockLogger) record(level, msg string, args []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Msg: msg, Fields: argsToMap(append(append([]any{}, m.fields...), args...))})
}

type childLogger struct {
	root   *MockLogger
	fields []any
}

func (c *childLogger) Debug(msg string, args ...any) { c.root.record("debug", msg, c.merge(args)) }
func (c *childLogger) Info(msg string, args ...any)  { c.root.record("info", msg, c.merge(args)) }
func (c *childLogger) Warn(msg string, args ...any)  { c.root.record("warn", msg, c.merge(args)) }
func (c *childLogger) Error(msg string, args ...any) { c.root.record("error", msg, c.merge(args)) }

func (c *childLogger) With(args ...any) logger.Logger {
	return &childLogger{root: c.root, fields: c.merge(args)}
}

func (c *childLogger) WithContext(ctx context.Context) logger.Logger {
	if id := logger.RequestIDFromContext(ctx); id != "" {
		return c.With("request_id", id)
	}
	return c
}

func (c *childLogger) merge(args []any) []any {
	return append(append([]any{}, c.fields...), args...)
}

func argsToMap(args []any) map[string]interface{} {
	fields := make(map[string]interface{})
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	return fields
}
