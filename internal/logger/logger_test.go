package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter("info", "mosque-manager", true, &buf)
	require.NoError(t, err)

	WithComponent(log, "readiness").Info("datastore ready", "attempt", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "datastore ready", entry["msg"])
	assert.Equal(t, "mosque-manager", entry["service"])
	assert.Equal(t, "readiness", entry["component"])
	assert.EqualValues(t, 2, entry["attempt"])
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter("warn", "svc", false, &buf)
	require.NoError(t, err)

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewWithWriter_UnknownLevel(t *testing.T) {
	_, err := NewWithWriter("verbose", "svc", false, &bytes.Buffer{})
	assert.Error(t, err)
}
