package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nodo1014/indexer-quick/internal/core"
	"github.com/nodo1014/indexer-quick/internal/lang"
	"github.com/nodo1014/indexer-quick/internal/repository"
)

func newTestPool(t *testing.T, workers int) (*Pool, *repository.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := repository.Open(filepath.Join(dir, "test.db"), 5000, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return NewPool(repo, workers, lang.DefaultMinEnglishRatio, zerolog.Nop()), repo
}

func writeSRT(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := "1\n00:00:00,000 --> 00:00:02,000\nHello there, this is an English line.\n\n" +
		"2\n00:00:02,000 --> 00:00:04,000\nAnother clean english sentence follows.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeMedia(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("fake media bytes"), 0o644))
	return path
}

func TestPool_IndexesOnePairEndToEnd(t *testing.T) {
	pool, repo := newTestPool(t, 2)
	dir := t.TempDir()

	mediaPath := writeMedia(t, dir, "movie.mkv")
	subPath := writeSRT(t, dir, "movie.srt")

	in := make(chan core.Pair, 1)
	in <- core.Pair{MediaPath: mediaPath, SubtitlePath: subPath}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var outcomes []Outcome
	for o := range pool.Run(ctx, in) {
		outcomes = append(outcomes, o)
	}

	require.Len(t, outcomes, 1)
	require.Nil(t, outcomes[0].Err)
	require.Equal(t, 2, outcomes[0].Inserted)

	count, err := repo.CountSubtitlesForMedia(context.Background(), mustMediaID(t, repo, mediaPath))
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func mustMediaID(t *testing.T, repo *repository.Repository, path string) int64 {
	t.Helper()
	m, ok, err := repo.FindMediaByPath(context.Background(), path)
	require.NoError(t, err)
	require.True(t, ok)
	return m.ID
}

func TestPool_SkipsPairWithNoSubtitle(t *testing.T) {
	pool, _ := newTestPool(t, 1)
	dir := t.TempDir()
	mediaPath := writeMedia(t, dir, "lonely.mkv")

	in := make(chan core.Pair, 1)
	in <- core.Pair{MediaPath: mediaPath, SubtitlePath: ""}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var outcomes []Outcome
	for o := range pool.Run(ctx, in) {
		outcomes = append(outcomes, o)
	}

	require.Len(t, outcomes, 1)
	require.Equal(t, SkipNoSubtitle, outcomes[0].SkipReason)
	require.Equal(t, 0, outcomes[0].Inserted)
}

func TestPool_RejectsNonEnglishTrack(t *testing.T) {
	pool, _ := newTestPool(t, 1)
	dir := t.TempDir()

	mediaPath := writeMedia(t, dir, "foreign.mkv")
	subPath := filepath.Join(dir, "foreign.srt")
	content := "1\n00:00:00,000 --> 00:00:02,000\n日本語の字幕です\n"
	require.NoError(t, os.WriteFile(subPath, []byte(content), 0o644))

	in := make(chan core.Pair, 1)
	in <- core.Pair{MediaPath: mediaPath, SubtitlePath: subPath}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var outcomes []Outcome
	for o := range pool.Run(ctx, in) {
		outcomes = append(outcomes, o)
	}

	require.Len(t, outcomes, 1)
	require.Equal(t, SkipLangRejected, outcomes[0].SkipReason)
}

// TestPool_PauseBlocksNewWork checks the pause gate: once paused, a
// worker must not pick up any further pair until Resume is called, even
// though the input channel still has items queued.
func TestPool_PauseBlocksNewWork(t *testing.T) {
	pool, _ := newTestPool(t, 1)
	dir := t.TempDir()

	mediaA := writeMedia(t, dir, "a.mkv")
	subA := writeSRT(t, dir, "a.srt")
	mediaB := writeMedia(t, dir, "b.mkv")
	subB := writeSRT(t, dir, "b.srt")

	pool.Pause()

	in := make(chan core.Pair, 2)
	in <- core.Pair{MediaPath: mediaA, SubtitlePath: subA}
	in <- core.Pair{MediaPath: mediaB, SubtitlePath: subB}
	close(in)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := pool.Run(ctx, in)

	select {
	case o, ok := <-out:
		if ok {
			t.Fatalf("expected no outcome while paused, got %+v", o)
		}
	case <-time.After(150 * time.Millisecond):
		// no outcome yet: pause gate held, as expected
	}

	pool.Resume()

	var outcomes []Outcome
	for o := range out {
		outcomes = append(outcomes, o)
	}
	require.Len(t, outcomes, 2)
}

// TestPool_CancellationStopsPromptly checks that cancelling ctx must close
// the outcome channel without hanging, regardless of how much work is queued.
func TestPool_CancellationStopsPromptly(t *testing.T) {
	pool, _ := newTestPool(t, 2)
	dir := t.TempDir()

	in := make(chan core.Pair, 50)
	for i := 0; i < 50; i++ {
		in <- core.Pair{MediaPath: writeMedia(t, dir, "m.mkv"), SubtitlePath: ""}
	}
	close(in)

	ctx, cancel := context.WithCancel(context.Background())
	out := pool.Run(ctx, in)
	cancel()

	done := make(chan struct{})
	go func() {
		for range out {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not drain within timeout after cancellation")
	}
}

// TestPool_UnreadableSubtitleYieldsErrorOutcome checks that a failure inside
// one pair's pipeline is reported as that pair's outcome and does not crash
// the pool.
func TestPool_UnreadableSubtitleYieldsErrorOutcome(t *testing.T) {
	pool, _ := newTestPool(t, 1)
	dir := t.TempDir()

	// A subtitle path with a directory where a file is expected forces an
	// I/O error deep in encoding.DetectAndDecode; process() must turn it
	// into an outcome carrying the error rather than a panic.
	badSub := filepath.Join(dir, "not-a-file")
	require.NoError(t, os.Mkdir(badSub, 0o755))
	mediaPath := writeMedia(t, dir, "m.mkv")

	in := make(chan core.Pair, 1)
	in <- core.Pair{MediaPath: mediaPath, SubtitlePath: badSub}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var outcomes []Outcome
	require.NotPanics(t, func() {
		for o := range pool.Run(ctx, in) {
			outcomes = append(outcomes, o)
		}
	})
	require.Len(t, outcomes, 1)
	require.NotNil(t, outcomes[0].Err)
}

func TestDefaultWorkerCount_Bounded(t *testing.T) {
	n := DefaultWorkerCount()
	require.GreaterOrEqual(t, n, 1)
	require.LessOrEqual(t, n, 8)
}
