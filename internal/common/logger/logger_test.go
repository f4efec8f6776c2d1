// internal/common/logger/logger_test.go
package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_WritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(Fields{"taskType": "map-policy-fields"})

	log.Info("record mapped", Fields{"policyNumber": "BSE-1", "fieldCount": 4})
	log.WithError(errors.New("boom")).Error("cache write failed", nil)

	entries := logs.All()
	assert.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "map-policy-fields", first["taskType"])
	assert.Equal(t, "BSE-1", first["policyNumber"])
	assert.EqualValues(t, 4, first["fieldCount"])

	second := entries[1].ContextMap()
	assert.Equal(t, "boom", second["error"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestZapLogger_ErrorValuesAreNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.Warn("mapping pass recovered", Fields{"cause": errors.New("nil map")})

	assert.Equal(t, "nil map", logs.All()[0].ContextMap()["cause"])
}

func TestNew_LevelParsing(t *testing.T) {
	l := New("warn", "json")
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l = New("not-a-level", "console")
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestOrNoOp(t *testing.T) {
	assert.NotNil(t, OrNoOp(nil))

	l := NewTestLogger(t)
	assert.Equal(t, l, OrNoOp(l))
}
