// Package logging wraps zerolog behind the component/field-oriented
// façade the rest of the engine calls through, so call sites read the
// same whether the backing writer is console, JSON, or a file.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level       string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`      // "stdout", "stderr", or file path
	Component   string `json:"component"`
	JSONFormat  bool   `json:"json_format"` // false renders a console-friendly format
}

// Logger is a structured logger carrying a component name, trace ID,
// and accumulated fields. Methods return new Loggers rather than
// mutating, so a base logger can be shared safely across goroutines.
type Logger struct {
	zl        zerolog.Logger
	component string
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// New creates a new Logger with the given configuration.
func New(cfg Config) *Logger {
	var output io.Writer = os.Stdout
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "", "stdout":
		output = os.Stdout
	default:
		if f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			output = f
		}
	}
	if !cfg.JSONFormat {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	zl := zerolog.New(output).With().Timestamp().Logger().Level(level)
	if cfg.Component != "" {
		zl = zl.With().Str("component", cfg.Component).Logger()
	}
	return &Logger{zl: zl, component: cfg.Component}
}

// Default returns the process-wide default logger, created once with
// INFO/JSON defaults.
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(Config{Level: "info", Output: "stdout", Component: "engine", JSONFormat: true})
	})
	return defaultLogger
}

// SetDefault replaces the default logger.
func SetDefault(l *Logger) {
	once.Do(func() {})
	defaultLogger = l
}

// WithComponent returns a Logger tagged with the given component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger(), component: component}
}

// WithTraceID returns a Logger tagged with the given trace/trader ID.
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{zl: l.zl.With().Str("trace_id", traceID).Logger(), component: l.component}
}

// WithField returns a Logger with one additional structured field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger(), component: l.component}
}

// WithFields returns a Logger with several additional structured fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zl: ctx.Logger(), component: l.component}
}

// WithError returns a Logger with an "error" field, a no-op if err is nil.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{zl: l.zl.With().Err(err).Logger(), component: l.component}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { event(l.zl.Debug(), msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { event(l.zl.Info(), msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { event(l.zl.Warn(), msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { event(l.zl.Error(), msg, kv...) }
func (l *Logger) Fatal(msg string, kv ...interface{}) { event(l.zl.Fatal(), msg, kv...) }

// event applies loose key/value pairs to a zerolog event before
// firing it, supporting the same "msg, k1, v1, k2, v2" call shape used
// throughout the engine.
func event(e *zerolog.Event, msg string, kv ...interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

func Debug(msg string, kv ...interface{}) { Default().Debug(msg, kv...) }
func Info(msg string, kv ...interface{})  { Default().Info(msg, kv...) }
func Warn(msg string, kv ...interface{})  { Default().Warn(msg, kv...) }
func Error(msg string, kv ...interface{}) { Default().Error(msg, kv...) }
func Fatal(msg string, kv ...interface{}) { Default().Fatal(msg, kv...) }

func WithComponent(component string) *Logger { return Default().WithComponent(component) }
