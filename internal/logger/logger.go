package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Logger interface for structured logging. Fields are alternating key/value
// pairs, as accepted by slog.
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Fatal(msg string, err error, fields ...interface{})
	With(fields ...interface{}) Logger
}

// Options controls where log records go.
type Options struct {
	Level string
	// File, when set, receives a JSON copy of every record.
	File string
}

// SlogLogger implements Logger on top of log/slog.
type SlogLogger struct {
	l *slog.Logger
}

// New creates a logger writing text to stdout and, if opts.File is set, JSON
// to that file. The returned cleanup closes the file.
func New(opts Options) (Logger, func() error) {
	level := ParseLevel(opts.Level)
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})

	if opts.File == "" {
		return &SlogLogger{l: slog.New(console)}, func() error { return nil }
	}

	file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		lg := &SlogLogger{l: slog.New(console)}
		lg.Error("failed to open log file, using stdout only", err, "file", opts.File)
		return lg, func() error { return nil }
	}

	jsonHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return &SlogLogger{l: slog.New(slogmulti.Fanout(console, jsonHandler))}, file.Close
}

// NewWithWriters fans out text to console and JSON to file (for testing).
func NewWithWriters(console, file io.Writer, level string) Logger {
	lvl := ParseLevel(level)
	return &SlogLogger{l: slog.New(slogmulti.Fanout(
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: lvl}),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: lvl}),
	))}
}

// NewSimpleLogger creates an info-level stdout logger.
func NewSimpleLogger() Logger {
	lg, _ := New(Options{Level: "info"})
	return lg
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &SlogLogger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Slog exposes the underlying slog.Logger.
func (l *SlogLogger) Slog() *slog.Logger {
	return l.l
}

// With returns a logger that adds fields to every record.
func (l *SlogLogger) With(fields ...interface{}) Logger {
	return &SlogLogger{l: l.l.With(fields...)}
}

// Info logs an info message
func (l *SlogLogger) Info(msg string, fields ...interface{}) {
	l.l.Info(msg, fields...)
}

// Error logs an error message
func (l *SlogLogger) Error(msg string, err error, fields ...interface{}) {
	l.l.Error(msg, append([]interface{}{"error", err}, fields...)...)
}

// Warn logs a warning message
func (l *SlogLogger) Warn(msg string, fields ...interface{}) {
	l.l.Warn(msg, fields...)
}

// Debug logs a debug message
func (l *SlogLogger) Debug(msg string, fields ...interface{}) {
	l.l.Debug(msg, fields...)
}

// Fatal logs a fatal error and exits
func (l *SlogLogger) Fatal(msg string, err error, fields ...interface{}) {
	l.Error(msg, err, fields...)
	os.Exit(1)
}
