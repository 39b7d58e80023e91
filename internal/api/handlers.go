package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/nodo1014/indexer-quick/internal/core"
)

// writeJSON writes status and encodes v as the JSON response body.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusForControlError maps a control-interface error onto an HTTP
// status: invalid state transitions are a client error (409), everything
// else the controller surfaces is a server-side failure.
func statusForControlError(err error) int {
	if pe, ok := err.(*core.ProcessingError); ok && pe.Kind == core.KindQuery {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

type startRequest struct {
	Strategy string `json:"strategy"`
}

// handleStart implements POST /index/start.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	strategy := core.Strategy(req.Strategy)
	switch strategy {
	case core.StrategyFull, core.StrategyIncremental:
	case "":
		strategy = core.StrategyIncremental
	default:
		writeError(w, http.StatusBadRequest, core.NewError(core.KindConfig, core.Continue,
			"strategy must be \"full\" or \"incremental\"", nil))
		return
	}

	if err := s.controller.Start(strategy); err != nil {
		writeError(w, statusForControlError(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.controller.Snapshot())
}

// handlePause implements POST /index/pause.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Pause(); err != nil {
		writeError(w, statusForControlError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// handleResume implements POST /index/resume.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Resume(); err != nil {
		writeError(w, statusForControlError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// handleStop implements POST /index/stop.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Stop(); err != nil {
		writeError(w, statusForControlError(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.controller.Snapshot())
}

// handleReset implements POST /index/reset.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Reset(r.Context()); err != nil {
		writeError(w, statusForControlError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// handleStatus implements GET /index/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

var progressUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleProgress upgrades GET /index/progress to a websocket and pushes
// every status snapshot the controller publishes until the peer hangs up.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := progressUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("progress: websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.controller.Subscribe()
	defer s.controller.Unsubscribe(sub)

	if err := conn.WriteJSON(s.controller.Snapshot()); err != nil {
		return
	}

	// Drain client reads on a separate goroutine purely to notice when the
	// peer closes the connection; the progress feed is one-directional.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case status, ok := <-sub:
			if !ok {
				return
			}
			if err := conn.WriteJSON(status); err != nil {
				return
			}
		}
	}
}

// parseSearchRequest builds a core.SearchRequest from query parameters.
func parseSearchRequest(r *http.Request) core.SearchRequest {
	q := r.URL.Query()

	req := core.SearchRequest{
		Query:     q.Get("query"),
		Mode:      core.SearchMode(q.Get("mode")),
		Lang:      q.Get("lang"),
		MediaKind: core.MediaKind(q.Get("media_kind")),
		Sort:      core.SortOrder(q.Get("sort")),
		MediaOnly: q.Get("media_only") == "true",
	}
	if req.Mode == "" {
		req.Mode = core.ModeLike
	}
	if req.Sort == "" {
		req.Sort = core.SortRelevance
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		req.Page = page
	} else {
		req.Page = 1
	}
	if perPage, err := strconv.Atoi(q.Get("per_page")); err == nil {
		req.PerPage = perPage
	}
	if v := q.Get("min_start_ms"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.TimeRange.MinStartMs = &n
		}
	}
	if v := q.Get("max_start_ms"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.TimeRange.MaxStartMs = &n
		}
	}
	return req
}

// handleSearch implements GET /search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req := parseSearchRequest(r)
	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type bookmarkToggleRequest struct {
	MediaPath  string `json:"media_path"`
	StartMs    int64  `json:"start_ms"`
	Bookmarked bool   `json:"bookmarked"`
}

// handleBookmarkToggle implements POST /bookmarks/toggle.
func (s *Server) handleBookmarkToggle(w http.ResponseWriter, r *http.Request) {
	var req bookmarkToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.MediaPath == "" {
		writeError(w, http.StatusBadRequest, core.NewError(core.KindConfig, core.Continue, "media_path is required", nil))
		return
	}
	if err := s.repo.ToggleBookmark(r.Context(), req.MediaPath, req.StartMs, req.Bookmarked); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"media_path": req.MediaPath,
		"start_ms":   req.StartMs,
		"bookmarked": req.Bookmarked,
	})
}

type tagRequest struct {
	MediaPath string `json:"media_path"`
	StartMs   int64  `json:"start_ms"`
	Tag       string `json:"tag"`
}

// handleTagAdd implements POST /tags/add.
func (s *Server) handleTagAdd(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.MediaPath == "" || req.Tag == "" {
		writeError(w, http.StatusBadRequest, core.NewError(core.KindConfig, core.Continue, "media_path and tag are required", nil))
		return
	}
	if err := s.repo.AddTag(r.Context(), req.MediaPath, req.StartMs, req.Tag); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	tags, err := s.repo.ListTags(r.Context(), req.MediaPath, req.StartMs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tags": tags})
}

// handleTagRemove implements POST /tags/remove.
func (s *Server) handleTagRemove(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.MediaPath == "" || req.Tag == "" {
		writeError(w, http.StatusBadRequest, core.NewError(core.KindConfig, core.Continue, "media_path and tag are required", nil))
		return
	}
	if err := s.repo.RemoveTag(r.Context(), req.MediaPath, req.StartMs, req.Tag); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	tags, err := s.repo.ListTags(r.Context(), req.MediaPath, req.StartMs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tags": tags})
}
