// ABOUTME: Tests for the logging package
// ABOUTME: Validates level filtering, output redirection, and named prefixes

package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// Tests in this file mutate global state and therefore do not run in parallel.

func capture(t *testing.T, l slog.Level) *bytes.Buffer {
	t.Helper()
	saved := GetLevel()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(l)
	t.Cleanup(func() {
		SetOutput(nil)
		SetLevel(saved)
	})
	return &buf
}

func TestSetLevel(t *testing.T) {
	saved := GetLevel()
	defer SetLevel(saved)

	SetLevel(LevelDebug)
	if GetLevel() != LevelDebug {
		t.Errorf("expected LevelDebug, got %v", GetLevel())
	}

	SetLevel(LevelError)
	if GetLevel() != LevelError {
		t.Errorf("expected LevelError, got %v", GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDebugSuppressedAtInfoLevel(t *testing.T) {
	buf := capture(t, LevelInfo)

	Debug("this should be suppressed: %s", "test")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestErrorAlwaysEmitted(t *testing.T) {
	buf := capture(t, LevelError+4)

	Error("boom %d", 1)
	if !strings.Contains(buf.String(), "[ERROR] boom 1") {
		t.Errorf("output = %q, want error line", buf.String())
	}
}

func TestNamedPrefix(t *testing.T) {
	buf := capture(t, LevelDebug)

	l := Named("pos %d", 3)
	l.Warn("overflow after %d bytes", 512)

	got := buf.String()
	if !strings.Contains(got, "[WARN] [pos 3] overflow after 512 bytes") {
		t.Errorf("output = %q, want prefixed warning", got)
	}
}

func TestNilLogger(t *testing.T) {
	buf := capture(t, LevelDebug)

	var l *Logger
	l.Info("no prefix")
	if !strings.Contains(buf.String(), "[INFO] no prefix") {
		t.Errorf("output = %q", buf.String())
	}
}
