package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func newBufferLogger(level string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Format: "json", Output: &buf}), &buf
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"json", Config{Level: "info", Format: "json", ServiceName: "comfy-worker"}},
		{"debug level", Config{Level: "debug", Format: "json"}},
		{"text format", Config{Level: "info", Format: "text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if New(tt.config) == nil {
				t.Fatal("expected logger to be non-nil")
			}
		})
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:       "debug",
		Format:      "json",
		Output:      &buf,
		ServiceName: "comfy-worker",
	})

	log.Info("job received", "images", 2)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}
	if entry["msg"] != "job received" {
		t.Errorf("expected msg='job received', got %v", entry["msg"])
	}
	if entry["images"] != float64(2) {
		t.Errorf("expected images=2, got %v", entry["images"])
	}
	if entry["service"] != "comfy-worker" {
		t.Errorf("expected service='comfy-worker', got %v", entry["service"])
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logFn     func(*Logger)
		shouldLog bool
	}{
		{"info logs info", "info", func(l *Logger) { l.Info("x") }, true},
		{"info drops debug", "info", func(l *Logger) { l.Debug("x") }, false},
		{"debug logs debug", "debug", func(l *Logger) { l.Debug("x") }, true},
		{"error drops warn", "error", func(l *Logger) { l.Warn("x") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newBufferLogger(tt.level)
			tt.logFn(log)
			if (buf.Len() > 0) != tt.shouldLog {
				t.Errorf("expected shouldLog=%v, got output %q", tt.shouldLog, buf.String())
			}
		})
	}
}

func TestEnrichment(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*Logger) *Logger
		want string
	}{
		{"request id", func(l *Logger) *Logger { return l.WithRequestID("req-123") }, `"request_id":"req-123"`},
		{"job id", func(l *Logger) *Logger { return l.WithJobID("job-456") }, `"job_id":"job-456"`},
		{"prompt id", func(l *Logger) *Logger { return l.WithPromptID("p-789") }, `"prompt_id":"p-789"`},
		{"client id", func(l *Logger) *Logger { return l.WithClientID("c-1") }, `"client_id":"c-1"`},
		{"component", func(l *Logger) *Logger { return l.WithComponent("monitor") }, `"component":"monitor"`},
		{"fields", func(l *Logger) *Logger { return l.WithFields(map[string]any{"node": "9"}) }, `"node":"9"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newBufferLogger("info")
			tt.fn(log).Info("test message")
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected output to contain %s, got: %s", tt.want, buf.String())
			}
		})
	}
}

func TestWithError(t *testing.T) {
	log, buf := newBufferLogger("info")

	if log.WithError(nil) != log {
		t.Error("WithError(nil) should return same logger")
	}

	log.WithError(context.DeadlineExceeded).Info("test message")
	if !strings.Contains(buf.String(), "deadline exceeded") {
		t.Errorf("expected output to contain error, got: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	log, buf := newBufferLogger("info")

	ctx := context.Background()
	ctx = ContextWithRequestID(ctx, "req-abc")
	ctx = ContextWithJobID(ctx, "job-xyz")
	ctx = ContextWithPromptID(ctx, "prompt-1")

	log.FromContext(ctx).Info("test message")

	for _, want := range []string{"req-abc", "job-xyz", "prompt-1"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected output to contain %s, got: %s", want, buf.String())
		}
	}
}

func TestNop(t *testing.T) {
	Nop().Error("nothing to see")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"DEBUG", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input).String(); got != tt.expected {
				t.Errorf("parseLevel(%q) = %s, expected %s", tt.input, got, tt.expected)
			}
		})
	}
}
