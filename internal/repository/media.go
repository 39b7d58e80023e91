package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nodo1014/indexer-quick/internal/core"
)

// UpsertMedia inserts or updates a media_files row, keyed by unique path.
func (r *Repository) UpsertMedia(ctx context.Context, m core.MediaFile) (int64, error) {
	var id int64
	err := withRetry(func() error {
		r.writeMu.Lock()
		defer r.writeMu.Unlock()
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO media_files(path, size, last_modified, has_subtitle, extension)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				size = excluded.size,
				last_modified = excluded.last_modified,
				has_subtitle = excluded.has_subtitle,
				extension = excluded.extension
		`, m.Path, m.Size, m.LastModified.UTC(), boolToInt(m.HasSubtitle), m.Extension)
		if err != nil {
			return fmt.Errorf("upsert media: %w", err)
		}
		// ON CONFLICT updates don't populate LastInsertId reliably across
		// drivers, so look the row up by its unique path instead.
		row := r.db.QueryRowContext(ctx, "SELECT id FROM media_files WHERE path = ?", m.Path)
		if err := row.Scan(&id); err != nil {
			return fmt.Errorf("read back media id: %w", err)
		}
		_ = res
		return nil
	})
	return id, err
}

// FindMediaByPath returns the media_files row for path, or (core.MediaFile{}, false, nil)
// if none exists.
func (r *Repository) FindMediaByPath(ctx context.Context, path string) (core.MediaFile, bool, error) {
	var m core.MediaFile
	var hasSub int
	var lastMod time.Time
	row := r.db.QueryRowContext(ctx, `
		SELECT id, path, size, last_modified, has_subtitle, extension
		FROM media_files WHERE path = ?
	`, path)
	err := row.Scan(&m.ID, &m.Path, &m.Size, &lastMod, &hasSub, &m.Extension)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MediaFile{}, false, nil
	}
	if err != nil {
		return core.MediaFile{}, false, fmt.Errorf("find media by path: %w", err)
	}
	m.LastModified = lastMod
	m.HasSubtitle = hasSub != 0
	return m, true, nil
}

// CountSubtitlesForMedia returns how many cue rows exist for mediaID.
func (r *Repository) CountSubtitlesForMedia(ctx context.Context, mediaID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subtitles WHERE media_id = ?", mediaID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count subtitles for media: %w", err)
	}
	return count, nil
}

// BulkInsertSubtitles inserts every cue of one track in a single
// transaction; any failure rolls back the whole track.
// Cues must already be ordered by start_ms.
func (r *Repository) BulkInsertSubtitles(ctx context.Context, mediaID int64, sourcePath string, cues []core.Cue) (int, error) {
	if len(cues) == 0 {
		return 0, nil
	}

	var inserted int
	err := withRetry(func() error {
		r.writeMu.Lock()
		defer r.writeMu.Unlock()

		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin bulk insert tx: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO subtitles(media_id, start_ms, end_ms, content, lang, source_path)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare bulk insert: %w", err)
		}
		defer stmt.Close()

		inserted = 0
		for _, c := range cues {
			lang := c.Lang
			if lang == "" {
				lang = core.UnknownLang
			}
			if _, err := stmt.ExecContext(ctx, mediaID, c.StartMs, c.EndMs, c.Content, lang, sourcePath); err != nil {
				return fmt.Errorf("insert cue: %w", err)
			}
			inserted++
		}

		if _, err := tx.ExecContext(ctx, "UPDATE media_files SET has_subtitle = 1 WHERE id = ?", mediaID); err != nil {
			return fmt.Errorf("mark media has_subtitle: %w", err)
		}

		if err := tx.Commit(); err != nil {
			inserted = 0
			return fmt.Errorf("commit bulk insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
