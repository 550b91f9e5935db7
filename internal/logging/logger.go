package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the logging level.
type Level int

const (
	// LevelDebug is the most verbose level.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a string into a Level.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Format represents the log output format.
type Format int

const (
	// FormatText outputs logs in human-readable text format.
	FormatText Format = iota
	// FormatJSON outputs logs in JSON format.
	FormatJSON
)

// ParseFormat parses a string into a Format.
func ParseFormat(s string) Format {
	switch s {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return FormatText
	}
}

// Logger is the interface for structured logging. Key-value pairs follow
// zap's SugaredLogger convention: alternating string keys and arbitrary
// values.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})
	// Info logs an info message with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})
	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})
	// Error logs an error message with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
	// WithRequestID returns a new logger with the given request ID.
	WithRequestID(requestID string) Logger
	// WithFields returns a new logger with the given fields.
	WithFields(keysAndValues ...interface{}) Logger
	// Core exposes the underlying zap logger for collaborators (such as
	// internal/driver) that want typed zap.Field construction instead of
	// the loosely-typed keysAndValues form.
	Core() *zap.Logger
	// Sync flushes any buffered log entries.
	Sync() error
}

// logger is the default implementation of Logger, backed by zap's
// SugaredLogger for the keysAndValues surface and exposing the
// underlying *zap.Logger via Core for callers that want typed fields.
type logger struct {
	sugared *zap.SugaredLogger
	core    *zap.Logger
}

// Config holds the logger configuration.
type Config struct {
	Level  string
	Format string
	Output string
}

func encoderFor(format Format) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	if format == FormatJSON {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.ConsoleSeparator = " "
	return zapcore.NewConsoleEncoder(cfg)
}

func writerFor(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return zapcore.AddSync(os.Stdout), nil
		}
		return zapcore.AddSync(f), nil
	}
}

// New creates a new Logger with the given configuration.
func New(cfg Config) Logger {
	level := ParseLevel(cfg.Level)
	sync, err := writerFor(cfg.Output)
	if err != nil {
		sync = zapcore.AddSync(os.Stdout)
	}
	core := zapcore.NewCore(encoderFor(ParseFormat(cfg.Format)), sync, level.zapLevel())
	zl := zap.New(core)
	return &logger{sugared: zl.Sugar(), core: zl}
}

// NewDefault creates a new Logger with default settings (info level, text
// format, stdout).
func NewDefault() Logger {
	return New(Config{Level: "info", Format: "text", Output: "stdout"})
}

// NewNop creates a no-op logger that discards all output.
func NewNop() Logger {
	zl := zap.NewNop()
	return &logger{sugared: zl.Sugar(), core: zl}
}

// NewRotating creates a Logger exactly like New, plus a LogArchive that
// receives a copy of every info-level-and-above entry. Once the buffered
// copy crosses archiveCfg's MaxSize or MaxAge threshold it is written out
// through LogArchive.Archive, gzip-compressed when archiveCfg.Compress is
// set, rotating the live log the same way a size/age-based file rotator
// would. Debug-level entries (the execution driver's per-query diagnostic)
// reach the display writer but are not archived. If archiveCfg.Enabled is
// false, NewRotating behaves exactly like New and returns a nil archive.
func NewRotating(cfg Config, archiveCfg ArchiveConfig) (Logger, *LogArchive, error) {
	archive, err := NewLogArchive(archiveCfg)
	if err != nil {
		return nil, nil, err
	}

	level := ParseLevel(cfg.Level)
	sync, err := writerFor(cfg.Output)
	if err != nil {
		sync = zapcore.AddSync(os.Stdout)
	}
	display := zapcore.NewCore(encoderFor(ParseFormat(cfg.Format)), sync, level.zapLevel())

	core := zapcore.Core(display)
	if archive != nil {
		core = zapcore.NewTee(display, newRotatingCore(archive, archiveCfg, zapcore.InfoLevel))
	}

	zl := zap.New(core)
	return &logger{sugared: zl.Sugar(), core: zl}, archive, nil
}

// Debug logs a debug message.
func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugared.Debugw(msg, keysAndValues...)
}

// Info logs an info message.
func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugared.Infow(msg, keysAndValues...)
}

// Warn logs a warning message.
func (l *logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugared.Warnw(msg, keysAndValues...)
}

// Error logs an error message.
func (l *logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugared.Errorw(msg, keysAndValues...)
}

// WithRequestID returns a new logger with the given request ID attached
// to every subsequent entry as the "request_id" field.
func (l *logger) WithRequestID(requestID string) Logger {
	return l.WithFields("request_id", requestID)
}

// WithFields returns a new logger with the given fields attached to every
// subsequent entry.
func (l *logger) WithFields(keysAndValues ...interface{}) Logger {
	s := l.sugared.With(keysAndValues...)
	return &logger{sugared: s, core: s.Desugar()}
}

// Core exposes the underlying zap logger.
func (l *logger) Core() *zap.Logger { return l.core }

// Sync flushes any buffered log entries.
func (l *logger) Sync() error { return l.sugared.Sync() }

var _ Logger = (*logger)(nil)
