package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New("debug", "json")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	l, err = New("WARN", "console")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))

	_, err = New("loud", "console")
	assert.Error(t, err)
	_, err = New("info", "xml")
	assert.Error(t, err)
}

func TestNewZapLoggerAddsCaller(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	NewZapLogger(core).Info("hello", zap.Int("lanes", 4))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Caller.Defined)
	assert.Equal(t, int64(4), entries[0].ContextMap()["lanes"])
}
