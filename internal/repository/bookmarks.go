package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nodo1014/indexer-quick/internal/core"
)

// ToggleBookmark sets the bookmark state for (media_path, start_ms).
// Idempotent: setting to the value already stored is a no-op write.
func (r *Repository) ToggleBookmark(ctx context.Context, mediaPath string, startMs int64, bookmarked bool) error {
	return withRetry(func() error {
		r.writeMu.Lock()
		defer r.writeMu.Unlock()
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO bookmarks(media_path, start_ms, bookmarked, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(media_path, start_ms) DO UPDATE SET bookmarked = excluded.bookmarked
		`, mediaPath, startMs, boolToInt(bookmarked), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("toggle bookmark: %w", err)
		}
		return nil
	})
}

// AddTag attaches tag to (media_path, start_ms). Idempotent: adding an
// already-present tag is a no-op.
func (r *Repository) AddTag(ctx context.Context, mediaPath string, startMs int64, tag string) error {
	return withRetry(func() error {
		r.writeMu.Lock()
		defer r.writeMu.Unlock()
		_, err := r.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO tags(media_path, start_ms, tag, created_at)
			VALUES (?, ?, ?, ?)
		`, mediaPath, startMs, tag, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("add tag: %w", err)
		}
		return nil
	})
}

// RemoveTag detaches tag from (media_path, start_ms). Idempotent: removing
// an absent tag is a no-op.
func (r *Repository) RemoveTag(ctx context.Context, mediaPath string, startMs int64, tag string) error {
	return withRetry(func() error {
		r.writeMu.Lock()
		defer r.writeMu.Unlock()
		_, err := r.db.ExecContext(ctx, `
			DELETE FROM tags WHERE media_path = ? AND start_ms = ? AND tag = ?
		`, mediaPath, startMs, tag)
		if err != nil {
			return fmt.Errorf("remove tag: %w", err)
		}
		return nil
	})
}

// ListTags returns every tag recorded for (media_path, start_ms).
func (r *Repository) ListTags(ctx context.Context, mediaPath string, startMs int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tag FROM tags WHERE media_path = ? AND start_ms = ? ORDER BY tag
	`, mediaPath, startMs)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// Annotations is the batched bookmark/tag lookup result for one cue
// position, keyed by (media_path, start_ms); used by the search service
// to avoid an N+1 query per result page.
type Annotations struct {
	Bookmarked bool
	Tags       []string
}

// BatchLookupAnnotations fetches bookmark and tag state for every position
// in one round trip each, rather than per-row.
func (r *Repository) BatchLookupAnnotations(ctx context.Context, positions []core.CuePosition) (map[core.CuePosition]Annotations, error) {
	result := make(map[core.CuePosition]Annotations, len(positions))
	if len(positions) == 0 {
		return result, nil
	}

	paths := make(map[string]bool, len(positions))
	for _, p := range positions {
		paths[p.MediaPath] = true
		result[p] = Annotations{}
	}

	pathList := make([]string, 0, len(paths))
	for p := range paths {
		pathList = append(pathList, p)
	}
	placeholders := strings.Repeat("?,", len(pathList))
	placeholders = strings.TrimSuffix(placeholders, ",")
	args := make([]interface{}, len(pathList))
	for i, p := range pathList {
		args[i] = p
	}

	bmRows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT media_path, start_ms, bookmarked FROM bookmarks
		WHERE media_path IN (%s) AND bookmarked = 1
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("batch lookup bookmarks: %w", err)
	}
	defer bmRows.Close()
	for bmRows.Next() {
		var path string
		var startMs int64
		var bookmarked int
		if err := bmRows.Scan(&path, &startMs, &bookmarked); err != nil {
			return nil, err
		}
		key := core.CuePosition{MediaPath: path, StartMs: startMs}
		if entry, ok := result[key]; ok {
			entry.Bookmarked = bookmarked != 0
			result[key] = entry
		}
	}
	if err := bmRows.Err(); err != nil {
		return nil, err
	}

	tagRows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT media_path, start_ms, tag FROM tags
		WHERE media_path IN (%s)
		ORDER BY tag
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("batch lookup tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var path, tag string
		var startMs int64
		if err := tagRows.Scan(&path, &startMs, &tag); err != nil {
			return nil, err
		}
		key := core.CuePosition{MediaPath: path, StartMs: startMs}
		if entry, ok := result[key]; ok {
			entry.Tags = append(entry.Tags, tag)
			result[key] = entry
		}
	}
	return result, tagRows.Err()
}
