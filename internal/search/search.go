// Package search implements the query service: request validation,
// dispatch to the repository's LIKE or FTS engine, the media_only
// liveness filter, batched annotation lookup, and streaming_hint
// derivation.
package search

import (
	"context"
	"encoding/base64"
	"os"

	"github.com/rs/zerolog"

	"github.com/nodo1014/indexer-quick/internal/core"
	"github.com/nodo1014/indexer-quick/internal/repository"
)

// Service answers SearchRequests against a Repository.
type Service struct {
	Repo *repository.Repository
	Log  zerolog.Logger
}

func New(repo *repository.Repository, log zerolog.Logger) *Service {
	return &Service{Repo: repo, Log: log}
}

// Search implements the query contract: empty query short-circuits to a
// zero-result response, mode=fts falls back to mode=like on parse error
// with a warning, per-page is clamped by the repository layer, and
// is_bookmarked/tags are filled by a single batched lookup over the
// returned page.
func (s *Service) Search(ctx context.Context, req core.SearchRequest) (core.SearchResponse, error) {
	if req.Query == "" {
		return core.SearchResponse{}, nil
	}

	var (
		rows    []repository.Row
		total   int
		warning string
		err     error
	)

	switch req.Mode {
	case core.ModeFTS:
		var usedLike bool
		rows, total, usedLike, err = s.Repo.SearchFTS(ctx, req)
		if usedLike {
			warning = "fts query could not be parsed; fell back to substring search"
		}
	default:
		rows, total, err = s.Repo.SearchLike(ctx, req)
	}
	if err != nil {
		return core.SearchResponse{}, err
	}

	if req.MediaOnly {
		rows = filterExistingMedia(rows)
	}

	hits, err := s.attachAnnotations(ctx, rows)
	if err != nil {
		return core.SearchResponse{}, err
	}

	return core.SearchResponse{Total: total, Results: hits, Warning: warning}, nil
}

// filterExistingMedia drops rows whose backing media file is no longer
// on disk; the database doesn't track live filesystem existence, so this
// is a post-query pass rather than a SQL filter.
func filterExistingMedia(rows []repository.Row) []repository.Row {
	out := make([]repository.Row, 0, len(rows))
	for _, r := range rows {
		if _, err := os.Stat(r.MediaPath); err == nil {
			out = append(out, r)
		}
	}
	return out
}

func (s *Service) attachAnnotations(ctx context.Context, rows []repository.Row) ([]core.SubtitleHit, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	positions := make([]core.CuePosition, len(rows))
	for i, r := range rows {
		positions[i] = core.CuePosition{MediaPath: r.MediaPath, StartMs: r.StartMs}
	}

	annotations, err := s.Repo.BatchLookupAnnotations(ctx, positions)
	if err != nil {
		return nil, err
	}

	hits := make([]core.SubtitleHit, len(rows))
	for i, r := range rows {
		ann := annotations[core.CuePosition{MediaPath: r.MediaPath, StartMs: r.StartMs}]
		hits[i] = core.SubtitleHit{
			MediaPath:     r.MediaPath,
			MediaKind:     core.KindForExtension(r.Extension),
			StreamingHint: streamingHint(r.MediaPath),
			StartMs:       r.StartMs,
			EndMs:         r.EndMs,
			Content:       r.Content,
			Lang:          r.Lang,
			IsBookmarked:  ann.Bookmarked,
			Tags:          ann.Tags,
		}
	}
	return hits, nil
}

// streamingHint is a transport-neutral, URL-safe token the HTTP layer
// composes into an absolute streaming URL; plain stdlib base64 is the
// right tool for "opaque reversible path token".
func streamingHint(mediaPath string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(mediaPath))
}

// DecodeStreamingHint reverses streamingHint, used by the HTTP layer to
// resolve a hint back to a filesystem path.
func DecodeStreamingHint(hint string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(hint)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
