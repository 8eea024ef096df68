package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/okian/posfit/internal/domain/position"
)

// ResultHandler serves stored results.
type ResultHandler struct {
	deps Dependencies
}

// NewResultHandler creates a new result handler.
func NewResultHandler(deps Dependencies) *ResultHandler {
	return &ResultHandler{deps: deps}
}

// HandleGetResult handles GET /players/{id}/positions requests.
func (h *ResultHandler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Result(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PositionsHandler serves per-position rankings.
type PositionsHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewPositionsHandler creates a new rankings handler.
func NewPositionsHandler(deps Dependencies, maxLimit int) *PositionsHandler {
	return &PositionsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleTop handles GET /positions/{pos}/top?limit=N requests.
func (h *PositionsHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	pos, err := position.ParseOutfield(mux.Vars(r)["pos"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	n := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: limit must not exceed %d", ErrBadRequest, h.maxLimit))
		return
	}

	entries, err := h.deps.TopN(r.Context(), pos, n)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleRank handles GET /positions/{pos}/rank/{id} requests.
func (h *PositionsHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pos, err := position.ParseOutfield(vars["pos"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	entry, err := h.deps.Rank(r.Context(), pos, vars["id"])
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
