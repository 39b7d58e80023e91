// Package repository is the sole database citizen: schema bootstrap, FTS
// consistency, cue/media persistence, substring and full-text search, and
// the bookmark/tag store. All reads and writes go through one
// *sql.DB guarded by a mutex for writes, matching the single-shared-
// connection discipline.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const busyTimeoutDefaultMs = 5000

// Repository owns the database handle and all schema/migration authority.
type Repository struct {
	db      *sql.DB
	writeMu sync.Mutex
	log     zerolog.Logger
	busyMs  int
}

// Open opens (creating if absent) the SQLite database at path, applies
// pragmas, and bootstraps the schema.
func Open(path string, busyTimeoutMs int, log zerolog.Logger) (*Repository, error) {
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = busyTimeoutDefaultMs
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // a single shared connection, guarded by writeMu for writes

	r := &Repository{db: db, log: log, busyMs: busyTimeoutMs}
	if err := r.applyPragmas(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	if err := r.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	if err := r.EnsureFTSConsistent(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := r.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS media_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	size INTEGER NOT NULL,
	last_modified DATETIME NOT NULL,
	has_subtitle INTEGER NOT NULL DEFAULT 0,
	extension TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_media_files_path ON media_files(path);

CREATE TABLE IF NOT EXISTS subtitles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	media_id INTEGER NOT NULL REFERENCES media_files(id) ON DELETE CASCADE,
	start_ms INTEGER NOT NULL,
	end_ms INTEGER NOT NULL,
	content TEXT NOT NULL,
	lang TEXT NOT NULL DEFAULT 'unknown',
	source_path TEXT
);
CREATE INDEX IF NOT EXISTS idx_subtitles_media_start ON subtitles(media_id, start_ms);
CREATE INDEX IF NOT EXISTS idx_subtitles_start ON subtitles(start_ms);

CREATE TABLE IF NOT EXISTS bookmarks (
	media_path TEXT NOT NULL,
	start_ms INTEGER NOT NULL,
	bookmarked INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (media_path, start_ms)
);

CREATE TABLE IF NOT EXISTS tags (
	media_path TEXT NOT NULL,
	start_ms INTEGER NOT NULL,
	tag TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (media_path, start_ms, tag)
);
`

// FTS and its maintenance triggers are created in a second pass, after the
// base tables they index. The rebuild path (EnsureFTSConsistent) refills
// the index with FTS5's 'rebuild' command and does not recreate this DDL.
const ftsDDL = `
CREATE VIRTUAL TABLE IF NOT EXISTS subtitles_fts USING fts5(
	content,
	content='subtitles',
	content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS subtitles_ai AFTER INSERT ON subtitles BEGIN
	INSERT INTO subtitles_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS subtitles_ad AFTER DELETE ON subtitles BEGIN
	INSERT INTO subtitles_fts(subtitles_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;

CREATE TRIGGER IF NOT EXISTS subtitles_au AFTER UPDATE ON subtitles BEGIN
	INSERT INTO subtitles_fts(subtitles_fts, rowid, content) VALUES ('delete', old.id, old.content);
	INSERT INTO subtitles_fts(rowid, content) VALUES (new.id, new.content);
END;
`

func (r *Repository) initSchema(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if _, err := r.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("bootstrap base schema: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, ftsDDL); err != nil {
		return fmt.Errorf("bootstrap fts schema: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_meta").Scan(&count); err != nil {
		return fmt.Errorf("read schema_meta: %w", err)
	}
	if count == 0 {
		if _, err := r.db.ExecContext(ctx, "INSERT INTO schema_meta(version) VALUES (1)"); err != nil {
			return fmt.Errorf("seed schema_meta: %w", err)
		}
	}
	return nil
}

// withRetry makes up to three attempts at a write, retrying on SQLITE_BUSY
// with a short exponential backoff.
func withRetry(fn func() error) error {
	var err error
	backoff := 20 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		err = fn()
		if err == nil || !isBusyErr(err) {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite surfaces busy as a plain error whose message
	// contains "SQLITE_BUSY"; string-matching is sufficient here because
	// the driver does not export a typed sentinel for it.
	return strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked")
}
