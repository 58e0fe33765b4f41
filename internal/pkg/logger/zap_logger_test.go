package logger

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEntries(t *testing.T) *ZapLogger {
	t.Helper()
	l := NewIsolatedLogger(filepath.Join(t.TempDir(), "console.log"))
	for i := 0; i < 5; i++ {
		l.Info("Transport", fmt.Sprintf("frame %d", i), nil)
	}
	l.Warn("Machine", "reset refused", map[string]interface{}{"stage": "factory"})
	l.Error("Transport", "dial failed", map[string]interface{}{"error": errors.New("refused")})
	require.NoError(t, l.Sync())
	return l
}

func TestGetLogsNewestFirst(t *testing.T) {
	l := writeEntries(t)

	entries, err := l.GetLogs(LogQuery{Limit: 3})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "dial failed", entries[0].Message)
	assert.Equal(t, "reset refused", entries[1].Message)
	assert.Equal(t, "frame 4", entries[2].Message)
	assert.NotEmpty(t, entries[0].Id)
}

func TestGetLogsFilters(t *testing.T) {
	l := writeEntries(t)

	entries, err := l.GetLogs(LogQuery{Level: "warn", Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Machine", entries[0].Module)
	assert.Equal(t, "factory", entries[0].Details["stage"])

	entries, err = l.GetLogs(LogQuery{Module: "transport", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, entries, 6)
}

func TestGetLogsPaging(t *testing.T) {
	l := writeEntries(t)

	entries, err := l.GetLogs(LogQuery{Module: "Transport", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "frame 4", entries[0].Message)
	assert.Equal(t, "frame 3", entries[1].Message)

	entries, err = l.GetLogs(LogQuery{Limit: 5, Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGetLogsWithoutFile(t *testing.T) {
	entries, err := NewNopLogger().GetLogs(LogQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, entries)

	missing := NewIsolatedLogger(filepath.Join(t.TempDir(), "never-written.log"))
	entries, err = missing.GetLogs(LogQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
