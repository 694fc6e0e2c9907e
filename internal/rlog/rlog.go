// Package rlog provides the structured logger used throughout the
// repository runtime. It wraps zap the same way the original pkg/logger
// package did, but is generalized from per-HTTP-request correlation to
// per-query-call correlation and carries no package-level global — every
// component receives a *Logger explicitly at construction time.
package rlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.SugaredLogger to keep call sites terse while
// retaining structured fields.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
}

// New creates a production-style JSON logger. level selects the minimum
// severity emitted ("debug", "info", "warn", "error"); unrecognized or
// empty values default to "info".
func New(level string) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		parseLevel(level),
	)

	base := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	return &Logger{SugaredLogger: base.Sugar(), base: base}
}

// Nop returns a logger that discards everything, for tests that don't
// care about log output.
func Nop() *Logger {
	base := zap.NewNop()
	return &Logger{SugaredLogger: base.Sugar(), base: base}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "critical":
		return zapcore.DPanicLevel
	default:
		return zapcore.InfoLevel
	}
}

// With returns a new Logger with additional structured fields attached,
// used to build an operation-scoped logger (e.g. with an "op_id" field)
// the same way the teacher's WithRequestID built a request-scoped one.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		base:          l.base,
	}
}

// Sync flushes any buffered log entries. Call before process exit.
func (l *Logger) Sync() {
	_ = l.base.Sync()
}
