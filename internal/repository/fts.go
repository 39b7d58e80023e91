package repository

import (
	"context"
	"fmt"

	"github.com/nodo1014/indexer-quick/internal/core"
)

// EnsureFTSConsistent compares row counts between subtitles and
// subtitles_fts and rebuilds the index if they disagree. Safe to call on startup and after any repair path.
func (r *Repository) EnsureFTSConsistent(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	baseCount, ftsCount, err := r.ftsRowCounts(ctx)
	if err != nil {
		return err
	}
	if baseCount == ftsCount {
		return nil
	}

	r.log.Warn().
		Int64("subtitles", baseCount).
		Int64("subtitles_fts", ftsCount).
		Msg("repository: fts row count mismatch, rebuilding")

	if _, err := r.db.ExecContext(ctx, "INSERT INTO subtitles_fts(subtitles_fts) VALUES('rebuild')"); err != nil {
		return core.NewError(core.KindFtsCorruption, core.AbortAll, "rebuild fts index", err)
	}

	baseCount, ftsCount, err = r.ftsRowCounts(ctx)
	if err != nil {
		return err
	}
	if baseCount != ftsCount {
		return core.NewError(core.KindFtsCorruption, core.AbortAll,
			fmt.Sprintf("fts rebuild did not restore consistency: %d base rows, %d fts rows", baseCount, ftsCount),
			core.ErrFtsMismatch)
	}
	return nil
}

func (r *Repository) ftsRowCounts(ctx context.Context) (base, fts int64, err error) {
	if err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subtitles").Scan(&base); err != nil {
		return 0, 0, fmt.Errorf("count subtitles: %w", err)
	}
	if err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subtitles_fts").Scan(&fts); err != nil {
		return 0, 0, fmt.Errorf("count subtitles_fts: %w", err)
	}
	return base, fts, nil
}
