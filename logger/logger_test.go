package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"", InfoLevel},
		{" warn ", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"fatal", FatalLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := ParseLevel(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.level, level)
		})
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestSlogWriter(t *testing.T) {
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)
	assert.Equal(t, InfoLevel, l.Level())

	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.With("component", "txmgr").Info("frame sent", "node", 5)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "frame sent", rec["msg"])
	assert.Equal(t, "txmgr", rec["component"])
	assert.InDelta(t, 5, rec["node"], 0)
	assert.Contains(t, rec, "ts")

	buf.Reset()
	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())
	l.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestSlogWriter_ChildSharesLevel(t *testing.T) {
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	parent := NewSlogWriter(&buf, WarnLevel, false)
	child := parent.With("role", "child")

	child.Info("dropped")
	assert.Zero(t, buf.Len())

	parent.SetLevel(InfoLevel)
	child.Info("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestMockLogger(t *testing.T) {
	m := NewMockLogger()
	m.On("Warn", "txmgr: transaction timed out", []any{"node", 5}).Once()

	var l Logger = m
	l.Warn("txmgr: transaction timed out", "node", 5)

	m.AssertExpectations(t)
}

func TestMockLogger_IgnoreAndMessages(t *testing.T) {
	m := NewMockLogger().Ignore("Debug", "Info")

	var l Logger = m
	l.Debug("first", "node", 1)
	l.Info("second")
	l.With("node", 2).Debug("third")

	assert.Equal(t, []string{"first", "third"}, m.Messages("Debug"))
	assert.Equal(t, []string{"second"}, m.Messages("Info"))
	assert.Empty(t, m.Messages("Warn"))
	assert.Panics(t, func() { l.Warn("unexpected") })
}

func TestDefaultLogger(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })

	m := NewMockLogger()
	m.On("SetLevel", DebugLevel).Once()

	SetLogger(m)
	SetLogger(nil)
	assert.Same(t, m, GetLogger())

	SetLevel(DebugLevel)
	m.AssertExpectations(t)
}
