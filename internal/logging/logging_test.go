package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, ".graphindex", "logs"), DefaultLogDir())
	assert.Equal(t, filepath.Join(home, ".graphindex", "logs", "graphindex.log"), DefaultLogPath())
}

func TestConfigs(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, "info", def.Level)
	assert.Empty(t, def.FilePath)

	dbg := DebugConfig()
	assert.Equal(t, "debug", dbg.Level)
	assert.NotEmpty(t, dbg.FilePath)
	assert.True(t, dbg.WriteToStderr)
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelFromString(tt.in))
		})
	}
}

// TS01: file logging writes JSON records at the configured level
func TestSetup_FileLogging(t *testing.T) {
	// Given: a file config at warn level
	path := filepath.Join(t.TempDir(), "logs", "graphindex.log")
	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path, MaxSizeMB: 1, MaxFiles: 2})
	require.NoError(t, err)

	// When: logging below and at the level
	logger.Info("index_exists", slog.String("index", "people-node"))
	logger.Warn("entity_skipped", slog.String("key", "42"))
	cleanup()

	// Then: only the warning is written, as JSON
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "entity_skipped", rec["msg"])
	assert.Equal(t, "42", rec["key"])
}

func TestSetup_StderrOnly(t *testing.T) {
	logger, cleanup, err := Setup(DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.NotPanics(t, cleanup)
	assert.False(t, logger.Enabled(t.Context(), slog.LevelDebug))
}

// =============================================================================
// RotatingWriter Tests
// =============================================================================

func TestRotatingWriter_Rotation(t *testing.T) {
	// Given: a 1 MB writer keeping 2 rotated files
	path := filepath.Join(t.TempDir(), "graphindex.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	chunk := bytes.Repeat([]byte("x"), 600*1024)

	// When: writing four chunks (each pair exceeds the limit)
	for range 4 {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	// Then: the current file plus .1 and .2 exist, .3 does not
	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(chunk)), info.Size())
}

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphindex.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(data))
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "graphindex.log"), 1, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, w.Sync())
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphindex.log")
	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, _ = w.Write([]byte("line\n"))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, bytes.Count(data, []byte("\n")))
}
