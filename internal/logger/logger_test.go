package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matatu/internal/config"
)

func TestNewWithOutput_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(config.LogConfig{Level: "debug", Service: "matatu"}, &buf)

	log.WithField("trip_id", "t-1").Info("trip created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trip created", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "matatu", entry["service"])
	assert.Equal(t, "t-1", entry["trip_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewWithOutput_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(config.LogConfig{Level: "loud"}, &buf)

	log.Debug("hidden")
	assert.Empty(t, buf.String())
}
