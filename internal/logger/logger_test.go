package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	l, err := New(Config{Level: "warn"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, l.GetLevel())

	l, err = New(Config{Level: "warn", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())

	l, err = New(Config{})
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := WithComponent(zerolog.New(&buf), "fleet")
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fleet", entry["component"])
	assert.Equal(t, "hello", entry["message"])
}
