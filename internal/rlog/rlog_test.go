package rlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"trace":    zapcore.DebugLevel,
		"debug":    zapcore.DebugLevel,
		"info":     zapcore.InfoLevel,
		"":         zapcore.InfoLevel,
		"warn":     zapcore.WarnLevel,
		"error":    zapcore.ErrorLevel,
		"critical": zapcore.DPanicLevel,
		"bogus":    zapcore.InfoLevel,
	}
	for level, want := range cases {
		assert.Equal(t, want, parseLevel(level), "level %q", level)
	}
}

func TestWith_PreservesBaseLogger(t *testing.T) {
	l := Nop()
	scoped := l.With("op_id", "abc-123")
	assert.NotNil(t, scoped)
	assert.Same(t, l.base, scoped.base)
}

func TestNop_DoesNotPanic(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Infow("hello", "key", "value")
		l.Sync()
	})
}
