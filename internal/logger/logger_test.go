package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriters_FansOut(t *testing.T) {
	var console, file bytes.Buffer
	lg := NewWithWriters(&console, &file, "info")

	lg.With("component", "scoring").Info("lead scored", "lead_id", "abc", "score", 35)

	assert.Contains(t, console.String(), "lead scored")
	assert.Contains(t, console.String(), "component=scoring")

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(file.Bytes(), &rec))
	assert.Equal(t, "lead scored", rec["msg"])
	assert.Equal(t, float64(35), rec["score"])
}

func TestError_AttachesErr(t *testing.T) {
	var console, file bytes.Buffer
	lg := NewWithWriters(&console, &file, "debug")

	lg.Error("query failed", errors.New("boom"), "table", "leads")

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(file.Bytes(), &rec))
	assert.Equal(t, "boom", rec["error"])
	assert.Equal(t, "leads", rec["table"])
}

func TestLevelFiltering(t *testing.T) {
	var console, file bytes.Buffer
	lg := NewWithWriters(&console, &file, "warn")

	lg.Info("hidden")
	lg.Debug("hidden too")
	assert.Empty(t, console.String())

	lg.Warn("shown")
	assert.Contains(t, console.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
