// Package logger provides module-scoped structured logging on log/slog.
//
// Components receive a Logger by injection and derive their own scope:
//
//	log := logger.New(os.Stderr, logger.LevelInfo, false)
//	camLog := log.Module("camera")
//	camLog.Info("camera started", logger.String("stream_id", id))
//
// Tests use Discard().
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Level is a log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel maps a configuration string to a Level, defaulting to info
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "warning":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Field is a structured log field
type Field struct {
	Key   string
	Value any
}

// Logger is the logging interface used across the module
type Logger interface {
	Module(name string) Logger
	With(fields ...Field) Logger

	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// SlogLogger implements Logger on top of a slog.Handler
type SlogLogger struct {
	handler slog.Handler
	module  string
	fields  []Field
}

// New creates a logger writing text (or JSON) records to w
func New(w io.Writer, level Level, json bool) *SlogLogger {
	opts := &slog.HandlerOptions{Level: level.slogLevel()}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &SlogLogger{handler: h}
}

// Discard returns a logger that drops everything
func Discard() *SlogLogger {
	return New(io.Discard, LevelError, false)
}

// Module returns a logger scoped to name; nested modules are dot-joined
func (l *SlogLogger) Module(name string) Logger {
	module := name
	if l.module != "" {
		module = l.module + "." + name
	}
	return &SlogLogger{handler: l.handler, module: module, fields: l.fields}
}

// With returns a logger that adds fields to every record
func (l *SlogLogger) With(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &SlogLogger{handler: l.handler, module: l.module, fields: merged}
}

func (l *SlogLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *SlogLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *SlogLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *SlogLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *SlogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !l.handler.Enabled(ctx, level) {
		return
	}
	rec := slog.NewRecord(time.Now(), level, msg, 0)
	if l.module != "" {
		rec.AddAttrs(slog.String("module", l.module))
	}
	for _, f := range l.fields {
		rec.AddAttrs(slog.Any(f.Key, f.Value))
	}
	for _, f := range fields {
		rec.AddAttrs(slog.Any(f.Key, f.Value))
	}
	_ = l.handler.Handle(ctx, rec)
}

// String creates a string field
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int field
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 field
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Float64 creates a float64 field
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

// Bool creates a bool field
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration creates a duration field rendered as a string
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Any creates a field holding an arbitrary value
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Error creates an error field; the key is always "error"
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}
