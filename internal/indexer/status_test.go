package indexer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodo1014/indexer-quick/internal/core"
)

func TestWriteAndReadStatusFile_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	want := core.Status{State: core.StateRunning, ProcessedFiles: 3, SubtitleCount: 42}

	require.NoError(t, writeStatusFile(path, want))
	got, err := readStatusFile(path)
	require.NoError(t, err)
	require.Equal(t, want.State, got.State)
	require.Equal(t, want.ProcessedFiles, got.ProcessedFiles)
	require.Equal(t, want.SubtitleCount, got.SubtitleCount)
}

func TestReadStatusFile_MissingFileReturnsZeroValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	got, err := readStatusFile(path)
	require.NoError(t, err)
	require.Equal(t, core.Status{}, got)
}

func TestWriteStatusFile_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.json")
	require.NoError(t, writeStatusFile(path, core.Status{State: core.StateIdle}))

	entries, err := filepathGlobTmp(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func filepathGlobTmp(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, ".status-*.tmp"))
}

func TestAppendLogRing_TrimsToMax(t *testing.T) {
	var ring []core.LogEntry
	for i := 0; i < 5; i++ {
		ring = appendLogRing(ring, core.LogEntry{Message: "x"}, 3)
	}
	require.Len(t, ring, 3)
}
