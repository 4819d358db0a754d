package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "platesolve.log")
	logger, err := New(Options{Level: "debug", File: path, Quiet: true})
	require.NoError(t, err)

	logger.Debug("hello", zap.Int64("submission_id", 42))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.Contains(t, entry, "timestamp")
	assert.EqualValues(t, 42, entry["submission_id"])
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty", Quiet: true})
	require.Error(t, err)
}

func TestNew_QuietWithoutFileIsNop(t *testing.T) {
	logger, err := New(Options{Quiet: true})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestWithOperation_AddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := WithOperation(zap.New(core), "solve", "run-1")
	logger.Info("started")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "solve", fields["operation"])
	assert.Equal(t, "run-1", fields["run_id"])

	WithOperation(zap.New(core), "fetch", "").Info("no run")
	assert.NotContains(t, logs.All()[1].ContextMap(), "run_id")
}

func TestOperationError(t *testing.T) {
	assert.NoError(t, NewOperationError("solve", "r", nil))

	base := errors.New("boom")
	err := NewOperationError("solve", "run-1", base)
	assert.Equal(t, "solve (run_id=run-1): boom", err.Error())
	assert.ErrorIs(t, err, base)

	err = NewOperationError("fetch", "", base)
	assert.Equal(t, "fetch: boom", err.Error())
}
