package utils

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, level string, verbose bool) *Logger {
	return NewLogger(LoggerOptions{Level: level, Format: "json", Output: buf, Verbose: verbose})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestNewLogger(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		jsonLogger(&buf, "info", false).Info().Msg("manifest loaded")
		m := decodeLine(t, &buf)
		assert.Equal(t, "manifest loaded", m["message"])
		assert.Equal(t, "info", m["level"])
		assert.Contains(t, m, "time")
	})

	t.Run("pretty format is the default", func(t *testing.T) {
		var buf bytes.Buffer
		NewLogger(LoggerOptions{Output: &buf}).Warn().Msg("layer scan failed")
		assert.Contains(t, buf.String(), "layer scan failed")
		assert.False(t, json.Valid(buf.Bytes()))
	})

	t.Run("verbose lowers the level to debug", func(t *testing.T) {
		var buf bytes.Buffer
		jsonLogger(&buf, "warn", true).Debug().Msg("cache hit")
		assert.Contains(t, buf.String(), "cache hit")
	})

	t.Run("verbose keeps trace", func(t *testing.T) {
		var buf bytes.Buffer
		l := jsonLogger(&buf, "trace", true)
		assert.Equal(t, zerolog.TraceLevel, l.GetLevel())
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{" WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"disabled", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.level))
		})
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "warn", false)
	l.Info().Msg("scanning poky")
	assert.Empty(t, buf.String())

	l.Error().Msg("manifest cycle")
	assert.Contains(t, buf.String(), "manifest cycle")
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, "info", false).WithComponent("scanner").Info().Msg("x")
	assert.Equal(t, "scanner", decodeLine(t, &buf)["component"])
}

func TestLogger_WithRepo(t *testing.T) {
	t.Run("all fields", func(t *testing.T) {
		var buf bytes.Buffer
		jsonLogger(&buf, "info", false).
			WithComponent("scanner").
			WithRepo("poky", "https://git.yoctoproject.org/poky", "scarthgap").
			Info().Msg("x")
		m := decodeLine(t, &buf)
		assert.Equal(t, "scanner", m["component"])
		assert.Equal(t, "poky", m["project"])
		assert.Equal(t, "https://git.yoctoproject.org/poky", m["url"])
		assert.Equal(t, "scarthgap", m["revision"])
	})

	t.Run("empty fields omitted", func(t *testing.T) {
		var buf bytes.Buffer
		jsonLogger(&buf, "info", false).WithRepo("poky", "", "").Info().Msg("x")
		m := decodeLine(t, &buf)
		assert.Equal(t, "poky", m["project"])
		assert.NotContains(t, m, "url")
		assert.NotContains(t, m, "revision")
	})
}

func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger()
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.WithRepo("poky", "", "").Error().Msg("dropped") })
}
