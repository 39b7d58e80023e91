package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/nodo1014/indexer-quick/internal/core"
)

// Row is one raw search result straight out of the database, before the
// search service attaches bookmark/tag state.
type Row struct {
	MediaPath   string
	Extension   string
	StartMs     int64
	EndMs       int64
	Content     string
	Lang        string
	MediaExists bool
}

// SearchLike runs the substring search: case-insensitive LIKE with
// SQL metacharacters escaped so '%' and '_' match literally.
func (r *Repository) SearchLike(ctx context.Context, req core.SearchRequest) ([]Row, int, error) {
	escaped := escapeLike(req.Query)
	pattern := "%" + escaped + "%"

	where, args := buildFilters(req)
	where = append([]string{"s.content LIKE ? ESCAPE '\\'"}, where...)
	args = append([]interface{}{pattern}, args...)

	order := orderClauseLike(req.Sort)
	whereSQL := strings.Join(where, " AND ")

	total, err := r.countRows(ctx, whereSQL, args)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT s.start_ms, s.end_ms, s.content, s.lang, m.path, m.extension
		FROM subtitles s JOIN media_files m ON m.id = s.media_id
		WHERE %s
		ORDER BY %s
		LIMIT ? OFFSET ?
	`, whereSQL, order)

	rows, err := r.queryPage(ctx, query, args, req)
	if err != nil {
		return nil, 0, core.NewError(core.KindQuery, core.Warning, "search_like failed", err)
	}
	return rows, total, nil
}

// SearchFTS runs the full-text query mode, falling back to LIKE on a
// parse error. The base table for this query is
// subtitles_fts itself (joined out to subtitles/media_files), not a
// subquery against it, because FTS5's "rank" column is only visible on
// the virtual table that was actually MATCHed.
func (r *Repository) SearchFTS(ctx context.Context, req core.SearchRequest) (rows []Row, total int, usedLike bool, err error) {
	ftsQuery := quoteFTSQuery(req.Query)

	where, args := buildFilters(req)
	where = append([]string{"f.subtitles_fts MATCH ?"}, where...)
	args = append([]interface{}{ftsQuery}, args...)

	whereSQL := strings.Join(where, " AND ")
	order := orderClauseFTS(req.Sort)

	total, err = r.countFTSRows(ctx, whereSQL, args)
	if err != nil {
		if isQuerySyntaxErr(err) {
			likeRows, likeTotal, likeErr := r.SearchLike(ctx, req)
			return likeRows, likeTotal, true, likeErr
		}
		return nil, 0, false, err
	}

	query := fmt.Sprintf(`
		SELECT s.start_ms, s.end_ms, s.content, s.lang, m.path, m.extension
		FROM subtitles_fts f
		JOIN subtitles s ON s.id = f.rowid
		JOIN media_files m ON m.id = s.media_id
		WHERE %s
		ORDER BY %s
		LIMIT ? OFFSET ?
	`, whereSQL, order)

	rows, err = r.queryPage(ctx, query, args, req)
	if err != nil {
		if isQuerySyntaxErr(err) {
			likeRows, likeTotal, likeErr := r.SearchLike(ctx, req)
			return likeRows, likeTotal, true, likeErr
		}
		return nil, 0, false, core.NewError(core.KindQuery, core.Warning, "search_fts failed", err)
	}
	return rows, total, false, nil
}

func (r *Repository) countRows(ctx context.Context, whereSQL string, args []interface{}) (int, error) {
	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM subtitles s JOIN media_files m ON m.id = s.media_id
		WHERE %s
	`, whereSQL)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *Repository) countFTSRows(ctx context.Context, whereSQL string, args []interface{}) (int, error) {
	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM subtitles_fts f
		JOIN subtitles s ON s.id = f.rowid
		JOIN media_files m ON m.id = s.media_id
		WHERE %s
	`, whereSQL)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *Repository) queryPage(ctx context.Context, query string, args []interface{}, req core.SearchRequest) ([]Row, error) {
	perPage := clampPerPage(req.PerPage)
	page := req.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage

	fullArgs := append(append([]interface{}{}, args...), perPage, offset)
	rows, err := r.db.QueryContext(ctx, query, fullArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.StartMs, &row.EndMs, &row.Content, &row.Lang, &row.MediaPath, &row.Extension); err != nil {
			return nil, err
		}
		row.MediaExists = true
		out = append(out, row)
	}
	return out, rows.Err()
}

// clampPerPage enforces the [1, 200] bound, default 50.
func clampPerPage(perPage int) int {
	if perPage <= 0 {
		return 50
	}
	if perPage > 200 {
		return 200
	}
	return perPage
}

func buildFilters(req core.SearchRequest) ([]string, []interface{}) {
	var clauses []string
	var args []interface{}

	if req.Lang != "" {
		clauses = append(clauses, "s.lang = ?")
		args = append(args, req.Lang)
	}
	if req.MediaKind != "" && req.MediaKind != core.MediaKindUnknown {
		clauses = append(clauses, "m.extension IN ("+extensionPlaceholders(req.MediaKind)+")")
		args = append(args, extensionsForKind(req.MediaKind)...)
	}
	if req.TimeRange.MinStartMs != nil {
		clauses = append(clauses, "s.start_ms >= ?")
		args = append(args, *req.TimeRange.MinStartMs)
	}
	if req.TimeRange.MaxStartMs != nil {
		clauses = append(clauses, "s.start_ms <= ?")
		args = append(args, *req.TimeRange.MaxStartMs)
	}
	return clauses, args
}

func extensionsForKind(kind core.MediaKind) []interface{} {
	var exts []string
	switch kind {
	case core.MediaKindVideo:
		exts = []string{".mp4", ".mkv", ".avi", ".mov", ".m4v", ".webm"}
	case core.MediaKindAudio:
		exts = []string{".mp3", ".wav", ".flac", ".m4a"}
	}
	out := make([]interface{}, len(exts))
	for i, e := range exts {
		out[i] = e
	}
	return out
}

func extensionPlaceholders(kind core.MediaKind) string {
	n := len(extensionsForKind(kind))
	placeholders := make([]string, n)
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return strings.Join(placeholders, ", ")
}

// orderClauseLike ranks LIKE results by inverse length
// of content (shorter matches first), with a stable tie-break.
func orderClauseLike(sort core.SortOrder) string {
	switch sort {
	case core.SortRecent:
		return "m.last_modified DESC, m.path ASC, s.start_ms ASC"
	case core.SortOldest:
		return "m.last_modified ASC, m.path ASC, s.start_ms ASC"
	default:
		return "LENGTH(s.content) ASC, m.path ASC, s.start_ms ASC"
	}
}

func orderClauseFTS(sort core.SortOrder) string {
	switch sort {
	case core.SortRecent:
		return "m.last_modified DESC, m.path ASC, s.start_ms ASC"
	case core.SortOldest:
		return "m.last_modified ASC, m.path ASC, s.start_ms ASC"
	default:
		return "rank, m.path ASC, s.start_ms ASC"
	}
}

var likeEscaper = strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")

func escapeLike(q string) string {
	return likeEscaper.Replace(q)
}

// quoteFTSQuery passes the query through to FTS5's MATCH operator
// verbatim, escaping only user-supplied double quotes so an unbalanced
// quote can't break the query syntax. It does not wrap the whole
// query in quotes: callers rely on FTS5 boolean operators like AND/OR/NOT
// working across words, which a phrase-quoted query would defeat.
func quoteFTSQuery(q string) string {
	return strings.ReplaceAll(q, `"`, `""`)
}

func isQuerySyntaxErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "fts5") || strings.Contains(msg, "syntax error") || strings.Contains(msg, "malformed MATCH")
}
