package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"ERROR", ErrorLevel},
		{"", InfoLevel},
		{"bogus", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.input); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLogger_StructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("registry", "default").WithError(errors.New("boom")).Warn("load failed")

	entry := decodeLogLine(t, &buf)
	if entry["msg"] != "load failed" {
		t.Errorf("Expected message, got %v", entry["msg"])
	}
	if entry["level"] != "WARN" {
		t.Errorf("Expected WARN level, got %v", entry["level"])
	}
	if entry["registry"] != "default" {
		t.Errorf("Expected registry field, got %v", entry["registry"])
	}
	if entry["error"] != "boom" {
		t.Errorf("Expected error field, got %v", entry["error"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected sub-error messages suppressed, got %q", buf.String())
	}

	logger.Error("visible")
	if buf.Len() == 0 {
		t.Error("Expected error message to pass the filter")
	}
}

func TestLogger_WithErrorNil(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)
	logger.WithError(nil).Info("ok")
	entry := decodeLogLine(t, &buf)
	if _, ok := entry["error"]; ok {
		t.Error("Expected no error field for nil error")
	}
}

func TestFromContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-42")
	if got := GetRequestID(ctx); got != "req-42" {
		t.Fatalf("GetRequestID = %q", got)
	}

	FromContext(ctx).Info("handled")
	entry := decodeLogLine(t, &buf)
	if entry["request_id"] != "req-42" {
		t.Errorf("Expected request_id annotation, got %v", entry["request_id"])
	}
}
