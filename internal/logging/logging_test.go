package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"depthbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_LevelAndFormat(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	setup(config.LogConfig{Level: "warn"}, &buf)

	log.Info().Msg("dropped")
	log.Warn().Str("symbol", "BTCUSDT").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "BTCUSDT", entry["symbol"])
	assert.Equal(t, "kept", entry["message"])
	assert.IsType(t, float64(0), entry["time"], "unix ms timestamps")
}

func TestSetup_UnknownLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	setup(config.LogConfig{Level: "chatty"}, &bytes.Buffer{})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
