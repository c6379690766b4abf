package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.opentelemetry.io/otel/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name    string
		level   LogLevel
		log     func(Logger)
		visible bool
	}{
		{"debug hidden at info", InfoLevel, func(l Logger) { l.Debug("m") }, false},
		{"info visible at info", InfoLevel, func(l Logger) { l.Info("m") }, true},
		{"warn hidden at error", ErrorLevel, func(l Logger) { l.Warn("m") }, false},
		{"error visible at warn", WarnLevel, func(l Logger) { l.Error("m") }, true},
		{"unknown level defaults to info", "loud", func(l Logger) { l.Info("m") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := NewZapLogger(Config{Level: tt.level, Format: JSONFormat, Output: &buf})
			if err != nil {
				t.Fatalf("NewZapLogger() error = %v", err)
			}
			tt.log(l)
			_ = l.Sync()
			if got := buf.Len() > 0; got != tt.visible {
				t.Errorf("visible = %v, want %v (output %q)", got, tt.visible, buf.String())
			}
		})
	}
}

func TestZapLogger_StructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l, _ := NewZapLogger(Config{Level: DebugLevel, Format: JSONFormat, Output: &buf})

	l.With("component", "movies").Info("created", "id", "abc", "count", 2)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e["message"] != "created" || e["level"] != "info" {
		t.Errorf("unexpected entry: %v", e)
	}
	if e["component"] != "movies" || e["id"] != "abc" || e["count"] != float64(2) {
		t.Errorf("missing structured fields: %v", e)
	}
	if _, ok := e["timestamp"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestZapLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	l, _ := NewZapLogger(Config{Level: InfoLevel, Format: JSONFormat, Output: &buf})

	ctx := ContextWithRequestID(context.Background(), "req-12345")
	l.WithContext(ctx).Info("processing request")
	l.WithContext(context.Background()).Info("no request")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["request_id"] != "req-12345" {
		t.Errorf("request_id = %v", entries[0]["request_id"])
	}
	if _, ok := entries[1]["request_id"]; ok {
		t.Errorf("unexpected request_id in %v", entries[1])
	}
}

func TestZapLogger_WithContextTraceCorrelation(t *testing.T) {
	// Given: a context carrying a span and a request id
	var buf bytes.Buffer
	l, _ := NewZapLogger(Config{Level: InfoLevel, Format: JSONFormat, Service: "movies", Output: &buf})
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b},
		SpanID:     trace.SpanID{0x01},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(ContextWithRequestID(context.Background(), "req-1"), sc)

	// When
	l.WithContext(ctx).Info("movie created")

	// Then
	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	want := map[string]any{
		"service":    "movies",
		"request_id": "req-1",
		"trace_id":   sc.TraceID().String(),
		"span_id":    sc.SpanID().String(),
	}
	for k, v := range want {
		if entries[0][k] != v {
			t.Errorf("%s = %v, want %v", k, entries[0][k], v)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestParseLogFormat(t *testing.T) {
	for in, want := range map[string]LogFormat{"json": JSONFormat, "text": TextFormat, "console": TextFormat} {
		got, err := ParseLogFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseLogFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseLogFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestProperty_JSONEntriesCarryRequiredFields(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("every entry has timestamp, level, message and request_id", prop.ForAll(
		func(msg, requestID string) bool {
			var buf bytes.Buffer
			l, _ := NewZapLogger(Config{Level: DebugLevel, Format: JSONFormat, Output: &buf})
			l.WithContext(ContextWithRequestID(context.Background(), requestID)).Warn(msg)

			var entry map[string]any
			if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
				return false
			}
			return entry["message"] == msg && entry["level"] == "warn" &&
				entry["request_id"] == requestID && entry["timestamp"] != nil
		},
		gen.AlphaString(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
