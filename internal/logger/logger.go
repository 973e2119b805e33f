// ABOUTME: Structured logging configuration using log/slog
// ABOUTME: Text or JSON handler on stderr, or a log file so the TUI display stays clean

package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// New builds a logger writing to w at the given level and format.
// level: debug, info, warn, error (default: info)
// format: text, json (default: text)
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Init installs a stderr logger as the slog default
func Init(level, format string) *slog.Logger {
	l := New(os.Stderr, level, format)
	slog.SetDefault(l)
	return l
}

// InitFile installs a logger appending to debug.log in dir as the slog
// default. The returned function closes the file. An empty dir discards logs.
func InitFile(dir, level, format string) (*slog.Logger, func(), error) {
	if dir == "" {
		l := New(io.Discard, level, format)
		slog.SetDefault(l)
		return l, func() {}, nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	l := New(f, level, format)
	slog.SetDefault(l)
	return l, func() { f.Close() }, nil
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
