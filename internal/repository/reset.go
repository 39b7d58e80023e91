package repository

import (
	"context"
	"fmt"
)

// ResetAll truncates every corpus table and rebuilds the FTS index from
// scratch. Must succeed even if the FTS index was corrupt going in.
func (r *Repository) ResetAll(ctx context.Context) error {
	r.writeMu.Lock()
	tables := []string{"tags", "bookmarks", "subtitles", "media_files"}
	for _, t := range tables {
		if _, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", t)); err != nil {
			r.writeMu.Unlock()
			return fmt.Errorf("truncate %s: %w", t, err)
		}
	}
	// subtitles_fts is external-content; deleting its source rows via
	// DELETE FROM subtitles already drained it through the triggers, but a
	// forced rebuild guarantees a clean index even if triggers were
	// bypassed by a prior direct-repair path.
	if _, err := r.db.ExecContext(ctx, "INSERT INTO subtitles_fts(subtitles_fts) VALUES('rebuild')"); err != nil {
		r.writeMu.Unlock()
		return fmt.Errorf("rebuild fts after reset: %w", err)
	}
	r.writeMu.Unlock()

	return r.EnsureFTSConsistent(ctx)
}

// ListTables reports the user tables currently present, excluding SQLite's
// internal tables and the FTS tables.
func (r *Repository) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name NOT LIKE '%_fts%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
