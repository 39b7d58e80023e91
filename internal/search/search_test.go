package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nodo1014/indexer-quick/internal/core"
	"github.com/nodo1014/indexer-quick/internal/repository"
)

func newTestService(t *testing.T) (*Service, *repository.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := repository.Open(filepath.Join(dir, "test.db"), 5000, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return New(repo, zerolog.Nop()), repo
}

func seedMedia(t *testing.T, repo *repository.Repository, path string, cues []core.Cue) {
	t.Helper()
	ctx := context.Background()
	id, err := repo.UpsertMedia(ctx, core.MediaFile{
		Path: path, Size: 10, LastModified: time.Now(), Extension: filepath.Ext(path),
	})
	require.NoError(t, err)
	_, err = repo.BulkInsertSubtitles(ctx, id, path+".srt", cues)
	require.NoError(t, err)
}

func TestSearch_EmptyQueryShortCircuits(t *testing.T) {
	svc, _ := newTestService(t)
	resp, err := svc.Search(context.Background(), core.SearchRequest{Query: ""})
	require.NoError(t, err)
	require.Equal(t, 0, resp.Total)
	require.Empty(t, resp.Results)
}

func TestSearch_LikeModeAttachesAnnotations(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	seedMedia(t, repo, "/media/x.mkv", []core.Cue{
		{StartMs: 0, EndMs: 1000, Content: "hello world", Lang: "en"},
	})
	require.NoError(t, repo.ToggleBookmark(ctx, "/media/x.mkv", 0, true))
	require.NoError(t, repo.AddTag(ctx, "/media/x.mkv", 0, "funny"))

	resp, err := svc.Search(ctx, core.SearchRequest{Query: "hello", PerPage: 10, Page: 1})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.Len(t, resp.Results, 1)
	require.True(t, resp.Results[0].IsBookmarked)
	require.Equal(t, []string{"funny"}, resp.Results[0].Tags)
	require.NotEmpty(t, resp.Results[0].StreamingHint)

	path, err := DecodeStreamingHint(resp.Results[0].StreamingHint)
	require.NoError(t, err)
	require.Equal(t, "/media/x.mkv", path)
}

func TestSearch_MediaOnlyDropsMissingFiles(t *testing.T) {
	svc, repo := newTestService(t)
	dir := t.TempDir()
	existing := filepath.Join(dir, "exists.mkv")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))
	missing := filepath.Join(dir, "gone.mkv")

	seedMedia(t, repo, existing, []core.Cue{{StartMs: 0, EndMs: 1000, Content: "match term here", Lang: "en"}})
	seedMedia(t, repo, missing, []core.Cue{{StartMs: 0, EndMs: 1000, Content: "match term there", Lang: "en"}})

	resp, err := svc.Search(context.Background(), core.SearchRequest{Query: "match term", PerPage: 10, Page: 1, MediaOnly: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.Equal(t, existing, resp.Results[0].MediaPath)
}

func TestSearch_FTSFallsBackToLikeOnBadSyntax(t *testing.T) {
	svc, repo := newTestService(t)
	seedMedia(t, repo, "/media/y.mkv", []core.Cue{{StartMs: 0, EndMs: 1000, Content: "quoted text here", Lang: "en"}})

	// An unbalanced double quote round-trips cleanly since quoteFTSQuery
	// escapes embedded quotes, but an unbalanced parenthesis is passed
	// through and is an FTS5 syntax error: the service must answer it
	// through the LIKE engine, with a warning, rather than an error.
	resp, err := svc.Search(context.Background(), core.SearchRequest{Query: "quoted (", Mode: core.ModeFTS, PerPage: 10, Page: 1})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Warning)
	require.Equal(t, 0, resp.Total)
}
