package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/remedy-project/remedy/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level logging.Level) (*logging.Logger, *bytes.Buffer) {
	l := logging.NewLogger(level)
	buf := &bytes.Buffer{}
	l.SetOutput(buf)
	return l, buf
}

func TestLogger_EmitsJSONLines(t *testing.T) {
	l, buf := newBufferLogger(logging.LevelInfo)
	l.Info("recipe committed", map[string]any{"recipe_id": "null-safety"})

	var entry logging.LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, logging.LevelInfo, entry.Level)
	assert.Equal(t, "recipe committed", entry.Message)
	assert.Equal(t, "null-safety", entry.Fields["recipe_id"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(logging.LevelWarn)
	l.Debug("dropped")
	l.Info("dropped too")
	l.Warn("kept")
	l.Error("kept too")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
}

func TestLogger_WithFields(t *testing.T) {
	l, buf := newBufferLogger(logging.LevelInfo)
	child := l.WithFields(map[string]any{"session_id": "abc"})
	child.SetOutput(buf)
	child.Info("msg", map[string]any{"extra": 1})

	var entry logging.LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry.Fields["session_id"])
	assert.Equal(t, float64(1), entry.Fields["extra"])
}

func TestLogger_ErrorErr(t *testing.T) {
	l, buf := newBufferLogger(logging.LevelInfo)
	l.ErrorErr("restore failed", assert.AnError)

	var entry logging.LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry.Fields["error"], "assert.AnError")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logging.LevelDebug, logging.ParseLevel("debug"))
	assert.Equal(t, logging.LevelInfo, logging.ParseLevel("bogus"))
}
