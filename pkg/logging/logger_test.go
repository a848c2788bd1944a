package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json").With("source", "pyth")

	l.Warn("feed rejected", "asset", "TON", "error", errors.New("stale"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "feed rejected", entry["message"])
	assert.Equal(t, "pyth", entry["source"])
	assert.Equal(t, "TON", entry["asset"])
	assert.Equal(t, "stale", entry["error"])
}

func TestLogger_OddFieldsIgnored(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json")

	l.Info("tick", "counter", 3, "dangling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, 3, entry["counter"])
	_, ok := entry["dangling"]
	assert.False(t, ok)
}

func TestNoopLogger(t *testing.T) {
	l := NewNoopLogger()
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.With("a", 1).Error("y", "error", errors.New("z"))
	})
}
