package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestScan_SameDirAndSiblingSubsFolder(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "movie.mkv"))
	touch(t, filepath.Join(root, "movie.srt"))
	touch(t, filepath.Join(root, "show", "ep1.mp4"))
	touch(t, filepath.Join(root, "show", "subs", "ep1.srt"))
	touch(t, filepath.Join(root, "show", "ep2.mp4")) // no subtitle

	out, err := Scan(context.Background(), Options{
		Root:               root,
		MediaExtensions:    []string{".mkv", ".mp4"},
		SubtitleExtensions: []string{".srt"},
		Logger:             zerolog.Nop(),
	})
	require.NoError(t, err)

	var results []string
	hasSubtitle := map[string]bool{}
	for p := range out {
		results = append(results, p.MediaPath)
		hasSubtitle[p.MediaPath] = p.SubtitlePath != ""
	}

	require.Len(t, results, 3)
	require.True(t, hasSubtitle[filepath.Join(root, "movie.mkv")])
	require.True(t, hasSubtitle[filepath.Join(root, "show", "ep1.mp4")])
	require.False(t, hasSubtitle[filepath.Join(root, "show", "ep2.mp4")])
}

func TestScan_EmptyRootEmitsNothing(t *testing.T) {
	out, err := Scan(context.Background(), Options{
		Root:            "",
		MediaExtensions: []string{".mkv"},
		Logger:          zerolog.Nop(),
	})
	require.NoError(t, err)

	count := 0
	for range out {
		count++
	}
	require.Zero(t, count)
}

func TestScan_CancellationStopsEarly(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 50; i++ {
		touch(t, filepath.Join(root, "d", "movie.mkv"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := Scan(ctx, Options{
		Root:            root,
		MediaExtensions: []string{".mkv"},
		Logger:          zerolog.Nop(),
	})
	require.NoError(t, err)

	count := 0
	for range out {
		count++
	}
	require.LessOrEqual(t, count, 1)
}
