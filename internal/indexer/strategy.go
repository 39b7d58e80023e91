package indexer

import (
	"context"
	"os"
	"time"

	"github.com/nodo1014/indexer-quick/internal/core"
	"github.com/nodo1014/indexer-quick/internal/repository"
	"github.com/nodo1014/indexer-quick/internal/worker"
)

// applyStrategy wraps in with a filter appropriate to strategy: full
// indexing passes every pair through unchanged; incremental indexing
// drops a pair whose media row already matches the filesystem and
// already has subtitles, so unchanged media is not re-ingested.
func applyStrategy(ctx context.Context, strategy core.Strategy, repo *repository.Repository, in <-chan core.Pair) <-chan core.Pair {
	if strategy != core.StrategyIncremental {
		return in
	}

	out := make(chan core.Pair, worker.DefaultWorkerCount())
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case pair, ok := <-in:
				if !ok {
					return
				}
				if skipIncremental(ctx, repo, pair) {
					continue
				}
				select {
				case out <- pair:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func skipIncremental(ctx context.Context, repo *repository.Repository, pair core.Pair) bool {
	if pair.SubtitlePath == "" {
		return false
	}

	existing, ok, err := repo.FindMediaByPath(ctx, pair.MediaPath)
	if err != nil || !ok {
		return false
	}

	info, err := statForCompare(pair.MediaPath)
	if err != nil {
		return false
	}
	if existing.Size != info.size || !existing.LastModified.Equal(info.modTime) {
		return false
	}

	count, err := repo.CountSubtitlesForMedia(ctx, existing.ID)
	if err != nil {
		return false
	}
	return count > 0
}

type statInfo struct {
	size    int64
	modTime time.Time
}

func statForCompare(path string) (statInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return statInfo{}, err
	}
	return statInfo{size: info.Size(), modTime: info.ModTime()}, nil
}
