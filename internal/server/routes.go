package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/pulse/internal/engine"
	"github.com/lazypower/pulse/internal/store"
)

// maxObservationBody bounds a single observation request. Content beyond
// engine.MaxContentBytes is truncated later; this only stops abuse.
const maxObservationBody = 1 << 20

func (s *Server) handleObservation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxObservationBody)

	var obs engine.Observation
	if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	profile := s.engine.ProcessObservation(obs)
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ExportProfile())
}

func (s *Server) handleDebugProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.CurrentProfile())
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ExportForMatching())
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	n, ok := intParam(w, r, "n", 0)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tags": s.engine.TopTags(n),
	})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	res := s.engine.Sweep()
	writeJSON(w, http.StatusOK, map[string]any{
		"removed_tags":   res.RemovedTags,
		"removed_boosts": res.RemovedBoosts,
		"active_tags":    res.ActiveTags,
		"active_boosts":  res.ActiveBoosts,
	})
}

// Row limits for the audit routes.
const (
	defaultAuditLimit = 20
	maxAuditLimit     = 500
)

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return false
	}
	return true
}

// auditLimitParam reads ?limit=, defaulting when absent or zero and capping
// large values.
func auditLimitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit, ok := intParam(w, r, "limit", defaultAuditLimit)
	if !ok {
		return 0, false
	}
	switch {
	case limit == 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}
	return limit, true
}

func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	limit, ok := auditLimitParam(w, r)
	if !ok {
		return
	}

	exports, err := s.db.RecentExports(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"exports": exports,
		"count":   len(exports),
	})
}

// handleExport looks up the audit row of one commitment, letting a consumer
// check that an export it received was produced here.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	commitment := chi.URLParam(r, "commitment")

	e, err := s.db.GetExportByCommitment(commitment)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleObservationLog serves the observation audit log, for one session
// with ?session= or across sessions otherwise.
func (s *Server) handleObservationLog(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	limit, ok := auditLimitParam(w, r)
	if !ok {
		return
	}

	body := map[string]any{}
	var (
		obs []store.ObservationLog
		err error
	)
	if session := r.URL.Query().Get("session"); session != "" {
		obs, err = s.db.GetObservations(session, limit)
		if err == nil {
			var total int
			total, err = s.db.GetSessionObservationCount(session)
			body["session"] = session
			body["total"] = total
		}
	} else {
		obs, err = s.db.GetRecentObservations(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	body["observations"] = obs
	body["count"] = len(obs)
	writeJSON(w, http.StatusOK, body)
}

// intParam parses an optional integer query parameter, writing a 400 and
// returning false when it is malformed.
func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}
