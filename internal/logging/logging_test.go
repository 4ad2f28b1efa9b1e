package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"loud", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, err == nil)
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "warn", Format: "json", Output: &buf})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept", "group", "kick_the_bucket")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "kick_the_bucket", rec["group"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Output: &buf})
	require.NoError(t, err)
	log.Debug("hidden")
	log.Info("shown", "n", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown n=2")
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	assert.Error(t, err)
	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}
