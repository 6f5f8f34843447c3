package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "info")

	log.Info("user cache miss", "email", "alice@example.com")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "user cache miss", line["msg"])
	assert.Equal(t, "alice@example.com", line["email"])
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "pretty", "warn")

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.With("component", "resolver").WithGroup("cache").Warn("fallback", "key", "user:a@b.c")
	out := buf.String()
	assert.Contains(t, out, "fallback")
	assert.Contains(t, out, "component")
	assert.Contains(t, out, "cache.key")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
