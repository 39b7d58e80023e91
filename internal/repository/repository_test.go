package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/nodo1014/indexer-quick/internal/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dir := t.TempDir()
	repo, err := Open(filepath.Join(dir, "test.db"), 5000, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func insertMediaWithCues(t *testing.T, repo *Repository, path string, cues []core.Cue) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := repo.UpsertMedia(ctx, core.MediaFile{
		Path: path, Size: 100, LastModified: time.Now(), Extension: filepath.Ext(path),
	})
	require.NoError(t, err)
	n, err := repo.BulkInsertSubtitles(ctx, id, path+".srt", cues)
	require.NoError(t, err)
	require.Equal(t, len(cues), n)
	return id
}

func TestFTSConsistency_AfterInsertAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	insertMediaWithCues(t, repo, "/media/a.mkv", []core.Cue{
		{StartMs: 0, EndMs: 1000, Content: "hello world", Lang: "en"},
		{StartMs: 1000, EndMs: 2000, Content: "goodbye", Lang: "en"},
	})

	require.NoError(t, repo.EnsureFTSConsistent(ctx))

	base, fts, err := repo.ftsRowCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, base, fts)
	require.EqualValues(t, 2, base)
}

func TestCueOrdering_NonDecreasingStartMs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id := insertMediaWithCues(t, repo, "/media/b.mkv", []core.Cue{
		{StartMs: 0, EndMs: 500, Content: "one", Lang: "en"},
		{StartMs: 600, EndMs: 900, Content: "two", Lang: "en"},
		{StartMs: 1000, EndMs: 1200, Content: "three", Lang: "en"},
	})

	rows, err := repo.db.QueryContext(ctx, "SELECT start_ms FROM subtitles WHERE media_id = ? ORDER BY id", id)
	require.NoError(t, err)
	defer rows.Close()

	var last int64 = -1
	for rows.Next() {
		var startMs int64
		require.NoError(t, rows.Scan(&startMs))
		require.GreaterOrEqual(t, startMs, last)
		last = startMs
	}
}

func TestBulkInsert_RollsBackEntireTrackOnFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.UpsertMedia(ctx, core.MediaFile{Path: "/media/c.mkv", Size: 1, LastModified: time.Now(), Extension: ".mkv"})
	require.NoError(t, err)

	// Force a failure by inserting into a bogus media_id via a direct bad
	// statement isn't representative of the public API; instead pass a
	// context that is already cancelled, which must leave 0 rows.
	cancelledCtx, cancel := context.WithCancel(ctx)
	cancel()

	_, err = repo.BulkInsertSubtitles(cancelledCtx, id, "", []core.Cue{
		{StartMs: 0, EndMs: 100, Content: "x", Lang: "en"},
		{StartMs: 100, EndMs: 200, Content: "y", Lang: "en"},
	})
	require.Error(t, err)

	count, err := repo.CountSubtitlesForMedia(ctx, id)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestSearchLike_EscapesMetacharacters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	insertMediaWithCues(t, repo, "/media/d.mkv", []core.Cue{
		{StartMs: 0, EndMs: 1000, Content: "100% literal_match", Lang: "en"},
		{StartMs: 1000, EndMs: 2000, Content: "100X literalXmatch", Lang: "en"},
	})

	rows, total, err := repo.SearchLike(ctx, core.SearchRequest{Query: "100% literal_match", PerPage: 10, Page: 1})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, rows, 1)
	require.Contains(t, rows[0].Content, "100% literal_match")
}

func TestResetAll_EmptiesEverything(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	insertMediaWithCues(t, repo, "/media/e.mkv", []core.Cue{
		{StartMs: 0, EndMs: 1000, Content: "hello", Lang: "en"},
	})
	require.NoError(t, repo.ToggleBookmark(ctx, "/media/e.mkv", 0, true))
	require.NoError(t, repo.AddTag(ctx, "/media/e.mkv", 0, "favorite"))

	require.NoError(t, repo.ResetAll(ctx))

	base, fts, err := repo.ftsRowCounts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, base)
	require.EqualValues(t, 0, fts)

	var mediaCount int
	require.NoError(t, repo.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media_files").Scan(&mediaCount))
	require.Equal(t, 0, mediaCount)
}

func TestBookmarkToggle_Idempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ToggleBookmark(ctx, "/media/f.mkv", 500, true))
	require.NoError(t, repo.ToggleBookmark(ctx, "/media/f.mkv", 500, true))

	var count int
	require.NoError(t, repo.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookmarks WHERE media_path = ? AND start_ms = ?", "/media/f.mkv", 500).Scan(&count))
	require.Equal(t, 1, count)
}

func TestSearchFTS_MatchesAllTerms(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	insertMediaWithCues(t, repo, "/media/h.mkv", []core.Cue{
		{StartMs: 0, EndMs: 1000, Content: "the quick brown fox", Lang: "en"},
		{StartMs: 1000, EndMs: 2000, Content: "a slow brown turtle", Lang: "en"},
	})

	rows, total, usedLike, err := repo.SearchFTS(ctx, core.SearchRequest{Query: "quick brown", PerPage: 10, Page: 1})
	require.NoError(t, err)
	require.False(t, usedLike)
	require.Equal(t, 1, total)
	require.Len(t, rows, 1)
	require.Contains(t, rows[0].Content, "quick brown fox")
}

func TestSearchFTS_BooleanOperatorsPassThroughVerbatim(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	insertMediaWithCues(t, repo, "/media/s6.mkv", []core.Cue{
		{StartMs: 0, EndMs: 1000, Content: "hello world", Lang: "en"},
		{StartMs: 1000, EndMs: 2000, Content: "hello there", Lang: "en"},
	})

	rows, total, usedLike, err := repo.SearchFTS(ctx, core.SearchRequest{Query: "hello AND world", PerPage: 10, Page: 1})
	require.NoError(t, err)
	require.False(t, usedLike)
	require.Equal(t, 1, total)
	require.Len(t, rows, 1)
	require.Contains(t, rows[0].Content, "hello world")
}

// TestSearchLike_PaginationCoversWholeResultSet checks that walking every
// page with per_page=k yields exactly the rows of a single unpaged query,
// with no row repeated or dropped.
func TestSearchLike_PaginationCoversWholeResultSet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var cues []core.Cue
	for i := 0; i < 7; i++ {
		cues = append(cues, core.Cue{
			StartMs: int64(i * 1000), EndMs: int64(i*1000 + 500),
			Content: fmt.Sprintf("shared phrase number %d", i), Lang: "en",
		})
	}
	insertMediaWithCues(t, repo, "/media/paged.mkv", cues)

	all, total, err := repo.SearchLike(ctx, core.SearchRequest{Query: "shared phrase", PerPage: 200, Page: 1})
	require.NoError(t, err)
	require.Equal(t, 7, total)

	var paged []Row
	perPage := 3
	for page := 1; page <= (total+perPage-1)/perPage; page++ {
		rows, _, err := repo.SearchLike(ctx, core.SearchRequest{Query: "shared phrase", PerPage: perPage, Page: page})
		require.NoError(t, err)
		paged = append(paged, rows...)
	}
	require.Equal(t, all, paged)
}

func TestBatchLookupAnnotations_NoNPlusOne(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ToggleBookmark(ctx, "/media/g.mkv", 0, true))
	require.NoError(t, repo.AddTag(ctx, "/media/g.mkv", 0, "funny"))

	result, err := repo.BatchLookupAnnotations(ctx, []core.CuePosition{
		{MediaPath: "/media/g.mkv", StartMs: 0},
		{MediaPath: "/media/g.mkv", StartMs: 1000},
	})
	require.NoError(t, err)
	require.True(t, result[core.CuePosition{MediaPath: "/media/g.mkv", StartMs: 0}].Bookmarked)
	require.Equal(t, []string{"funny"}, result[core.CuePosition{MediaPath: "/media/g.mkv", StartMs: 0}].Tags)
	require.False(t, result[core.CuePosition{MediaPath: "/media/g.mkv", StartMs: 1000}].Bookmarked)
}
