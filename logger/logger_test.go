package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(VerbosityUser))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(VerbosityInfo))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(VerbosityDebug))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(99))
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Infow("test", "k", "v")
	})
}

func TestDefaultLoggerIsSafeBeforeInitialize(t *testing.T) {
	assert.NotNil(t, Logger)
	assert.NotPanics(t, func() {
		Logger.Debugw("unused default logger")
	})
}
