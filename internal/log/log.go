// ABOUTME: Level-filtered logging wrapper around slog levels for posd components
// ABOUTME: Global level and output; Named loggers prefix lines with a component tag

package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level constants matching slog levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	level atomic.Int64

	outMu sync.Mutex
	out   io.Writer = os.Stderr
)

func init() {
	level.Store(int64(LevelInfo))
}

// SetLevel sets the global log level.
func SetLevel(l slog.Level) {
	level.Store(int64(l))
}

// GetLevel returns the current log level.
func GetLevel() slog.Level {
	return slog.Level(level.Load())
}

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a level.
// Unknown or empty strings map to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetOutput redirects all log output. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
}

func emit(l slog.Level, tag, prefix, format string, args ...any) {
	if l < LevelError && slog.Level(level.Load()) > l {
		return
	}
	msg := fmt.Sprintf(format, args...)
	outMu.Lock()
	defer outMu.Unlock()
	ts := time.Now().Format("15:04:05.000")
	if prefix != "" {
		fmt.Fprintf(out, "%s [%s] %s %s\n", ts, tag, prefix, msg)
		return
	}
	fmt.Fprintf(out, "%s [%s] %s\n", ts, tag, msg)
}

// Debug logs a debug message if the level allows it.
func Debug(format string, args ...any) { emit(LevelDebug, "DEBUG", "", format, args...) }

// Info logs an info message if the level allows it.
func Info(format string, args ...any) { emit(LevelInfo, "INFO", "", format, args...) }

// Warn logs a warning message if the level allows it.
func Warn(format string, args ...any) { emit(LevelWarn, "WARN", "", format, args...) }

// Error logs an error message (always emitted).
func Error(format string, args ...any) { emit(LevelError, "ERROR", "", format, args...) }

// Logger prefixes every line with a component tag such as "[pos 3]".
// The zero value and a nil *Logger log without a prefix.
type Logger struct {
	prefix string
}

// Named returns a Logger whose lines carry "[name]".
func Named(format string, args ...any) *Logger {
	return &Logger{prefix: "[" + fmt.Sprintf(format, args...) + "]"}
}

func (l *Logger) tag() string {
	if l == nil {
		return ""
	}
	return l.prefix
}

// Debug logs a debug message if the level allows it.
func (l *Logger) Debug(format string, args ...any) {
	emit(LevelDebug, "DEBUG", l.tag(), format, args...)
}

// Info logs an info message if the level allows it.
func (l *Logger) Info(format string, args ...any) {
	emit(LevelInfo, "INFO", l.tag(), format, args...)
}

// Warn logs a warning message if the level allows it.
func (l *Logger) Warn(format string, args ...any) {
	emit(LevelWarn, "WARN", l.tag(), format, args...)
}

// Error logs an error message (always emitted).
func (l *Logger) Error(format string, args ...any) {
	emit(LevelError, "ERROR", l.tag(), format, args...)
}
