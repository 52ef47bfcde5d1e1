package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "debug", Format: "json", Output: &buf})
	defer Setup(Options{})

	Logger("rtps/writer").Debug("push", "seq", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "rtps/writer", entry["component"])
	assert.Equal(t, "push", entry["msg"])
	assert.EqualValues(t, 3, entry["seq"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "info", Output: &buf})
	defer Setup(Options{})

	l := Logger("test")
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	SetLevel(LevelDebug)
	assert.True(t, l.Enabled(LevelDebug))
	l.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}
