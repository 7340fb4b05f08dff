package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*FloorLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = &buf
	return NewLogger(cfg), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestFloorLogger_Levels(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown too")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.Equal(t, "ERROR", lines[1]["level"])
}

func TestFloorLogger_Context(t *testing.T) {
	base, buf := newBufferLogger(LogLevelDebug)
	l := base.WithComponent("engine").WithSession("s1", 4).WithContext("agent_id", "sec")
	l.Info("Turn started")
	base.Info("plain")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "engine", lines[0]["component"])
	assert.Equal(t, "s1", lines[0]["session_id"])
	assert.EqualValues(t, 4, lines[0]["turn"])
	assert.Equal(t, "sec", lines[0]["agent_id"])
	assert.NotContains(t, lines[1], "component")
	assert.NotContains(t, lines[1], "agent_id")
}

func TestFloorLogger_DomainHelpers(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)
	l.LogTurn(2, 1, 0, 5*time.Millisecond, nil)
	l.LogTurn(0, 0, 0, time.Millisecond, errors.New("boom"))
	l.LogDecision("sec", true, "answer_question", 0.8, 0.6)
	l.LogShare("sec", "legal", "similar_decision", "suggested", 3)
	l.ErrorWithStack(errors.New("bad"), "Turn panicked")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 5)
	assert.Equal(t, "Turn completed", lines[0]["msg"])
	assert.EqualValues(t, 2, lines[0]["admitted"])
	assert.Equal(t, "Turn failed", lines[1]["msg"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, "Participation decided", lines[2]["msg"])
	assert.Equal(t, "legal", lines[3]["recipient_agent_id"])
	assert.Contains(t, lines[4]["stack_trace"], "goroutine")
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x")
		l.Warn("x")
		l.Error("x")
	})
}
