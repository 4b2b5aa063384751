package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Settings{Level: "debug", Format: FormatJSON}, &buf)
	require.NoError(t, err)

	logger.Debug().Str("session_id", "s1").Msg("activated")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "s1", entry["session_id"])
	assert.Equal(t, "activated", entry["message"])
}

func TestNewLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Settings{Level: "WARN", Format: FormatJSON}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	assert.Empty(t, buf.String())
	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLoggerTextIsPlainWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(DefaultSettings(), &buf)
	require.NoError(t, err)

	logger.Info().Str("conn_id", "c1").Msg("connected")
	out := buf.String()
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, "conn_id=c1")
	assert.NotContains(t, out, "\x1b[")
}

func TestNewLoggerRejectsBadSettings(t *testing.T) {
	_, err := NewLogger(Settings{Level: "loud"}, &bytes.Buffer{})
	require.Error(t, err)
	_, err = NewLogger(Settings{Format: "xml"}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestInitLoggerToFile(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "localmind.log")
	closer, err := InitLogger(Settings{Level: "info", Format: FormatJSON, File: path})
	require.NoError(t, err)

	log.Info().Msg("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}

func TestInitLoggerBadFile(t *testing.T) {
	_, err := InitLogger(Settings{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	require.Error(t, err)
}
