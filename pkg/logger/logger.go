package logger

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"smmpanel/pkg/tracing"
)

type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
	FatalLevel LogLevel = "fatal"
	PanicLevel LogLevel = "panic"
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Fatal(msg string, fields map[string]interface{})
	Panic(msg string, fields map[string]interface{})

	WithContext(ctx context.Context) Logger
	DebugContext(ctx context.Context, msg string, fields map[string]interface{})
	InfoContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorContext(ctx context.Context, msg string, fields map[string]interface{})

	WithFields(fields map[string]interface{}) Logger
}

type ZerologLogger struct {
	logger zerolog.Logger
	fields map[string]interface{}
}

// New builds the service logger. Development environments get the human readable
// console writer, everything else writes JSON lines.
func New(level LogLevel, env string, output io.Writer) Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(env, "development") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(output).
		Level(getZerologLevel(level)).
		With().
		Timestamp().
		Str("service", "smmpanel").
		Logger()

	return &ZerologLogger{
		logger: zl,
		fields: make(map[string]interface{}),
	}
}

// NewNop discards everything. Used by tests and tools that do not care about output.
func NewNop() Logger {
	return &ZerologLogger{
		logger: zerolog.Nop(),
		fields: make(map[string]interface{}),
	}
}

func getZerologLevel(level LogLevel) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(string(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *ZerologLogger) with(extra map[string]interface{}) *ZerologLogger {
	fields := make(map[string]interface{}, len(l.fields)+len(extra))
	maps.Copy(fields, l.fields)
	maps.Copy(fields, extra)
	return &ZerologLogger{logger: l.logger, fields: fields}
}

func (l *ZerologLogger) WithFields(fields map[string]interface{}) Logger {
	return l.with(fields)
}

// WithContext binds the active trace id, if any.
func (l *ZerologLogger) WithContext(ctx context.Context) Logger {
	traceID := tracing.GetTraceID(ctx)
	if traceID == "" {
		return l
	}
	return l.with(map[string]interface{}{"trace_id": traceID})
}

func (l *ZerologLogger) addSourceInfo(event *zerolog.Event) *zerolog.Event {
	if l.logger.GetLevel() == zerolog.DebugLevel {
		if _, file, line, ok := runtime.Caller(2); ok {
			file = filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file))
			event = event.Str("source", fmt.Sprintf("%s:%d", file, line))
		}
	}
	return event
}

// write emits msg with the logger's bound fields first and the call fields on top.
// error values are rendered with Err so they keep zerolog's "error" key.
func (l *ZerologLogger) write(event *zerolog.Event, msg string, fields map[string]interface{}) {
	for k, v := range l.fields {
		event = appendField(event, k, v)
	}
	for k, v := range fields {
		event = appendField(event, k, v)
	}
	event.Msg(msg)
}

func appendField(event *zerolog.Event, k string, v interface{}) *zerolog.Event {
	switch val := v.(type) {
	case error:
		return event.AnErr(k, val)
	case fmt.Stringer:
		return event.Stringer(k, val)
	default:
		return event.Interface(k, v)
	}
}

func (l *ZerologLogger) Debug(msg string, fields map[string]interface{}) {
	l.write(l.addSourceInfo(l.logger.Debug()), msg, fields)
}

func (l *ZerologLogger) Info(msg string, fields map[string]interface{}) {
	l.write(l.logger.Info(), msg, fields)
}

func (l *ZerologLogger) Warn(msg string, fields map[string]interface{}) {
	l.write(l.logger.Warn(), msg, fields)
}

func (l *ZerologLogger) Error(msg string, fields map[string]interface{}) {
	l.write(l.logger.Error(), msg, fields)
}

func (l *ZerologLogger) Fatal(msg string, fields map[string]interface{}) {
	l.write(l.logger.Fatal(), msg, fields)
}

func (l *ZerologLogger) Panic(msg string, fields map[string]interface{}) {
	l.write(l.logger.Panic(), msg, fields)
}

func (l *ZerologLogger) DebugContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.WithContext(ctx).Debug(msg, fields)
}

func (l *ZerologLogger) InfoContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.WithContext(ctx).Info(msg, fields)
}

func (l *ZerologLogger) WarnContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.WithContext(ctx).Warn(msg, fields)
}

func (l *ZerologLogger) ErrorContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.WithContext(ctx).Error(msg, fields)
}
