package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestLoggerPlainOutputsJSON(t *testing.T) {
	l := New("ridgeline-test")
	out := captureStdout(t, func() {
		l.Plain().WithDevice("42").WithRule("7").Info("evaluation started")
	})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace([]byte(out)), &entry))
	assert.Equal(t, LevelInfo, entry.Level)
	assert.Equal(t, "evaluation started", entry.Message)
	assert.Equal(t, "ridgeline-test", entry.Service)
	assert.Equal(t, "42", entry.DeviceID)
	assert.Equal(t, "7", entry.RuleID)
}

func TestLogEntryWithError(t *testing.T) {
	l := New("svc")
	out := captureStdout(t, func() {
		l.Plain().WithError(assertErr{"boom"}).Error("delivery failed")
	})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace([]byte(out)), &entry))
	assert.Equal(t, "boom", entry.Fields["error"])
}

func TestLogEntryWithErrorNilIsNoop(t *testing.T) {
	e := &LogEntry{}
	e.WithError(nil)
	assert.Nil(t, e.Fields)
}

func TestWithFieldsMerges(t *testing.T) {
	e := &LogEntry{}
	e.WithField("a", 1).WithFields(map[string]any{"b": 2})
	assert.Equal(t, 1, e.Fields["a"])
	assert.Equal(t, 2, e.Fields["b"])
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
