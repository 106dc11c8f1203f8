package api

import (
	"encoding/json"
	"net/http"

	"github.com/dennisdiepolder/qmconsole/internal/filter"
	"github.com/go-chi/chi/v5"
)

// FiltersResponse is a view with the user's filter state for it
type FiltersResponse struct {
	View  filter.View  `json:"view"`
	State filter.State `json:"state"`
}

// session opens the user's filter session for the {view} URL parameter
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*filter.Session, filter.View, bool) {
	username, ok := requireUser(w, r)
	if !ok {
		return nil, filter.View{}, false
	}

	v, err := h.views.View(chi.URLParam(r, "view"))
	if err != nil {
		h.fail(w, r, err)
		return nil, filter.View{}, false
	}

	session, err := filter.NewSession(r.Context(), v, h.prefs, username, func(st filter.State) {
		if h.onFilterChange != nil {
			h.onFilterChange(username, st)
		}
	})
	if err != nil {
		h.fail(w, r, err)
		return nil, filter.View{}, false
	}
	return session, v, true
}

// handleGetFilters handles GET /api/filters/{view}
func (h *Handler) handleGetFilters(w http.ResponseWriter, r *http.Request) {
	session, v, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, FiltersResponse{View: v, State: session.State()})
}

// handlePutFilters handles PUT /api/filters/{view}
func (h *Handler) handlePutFilters(w http.ResponseWriter, r *http.Request) {
	session, v, ok := h.session(w, r)
	if !ok {
		return
	}

	var st filter.State
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := session.Replace(r.Context(), st); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FiltersResponse{View: v, State: session.State()})
}

// handleResetFilters handles POST /api/filters/{view}/reset
func (h *Handler) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	session, v, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.Reset(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FiltersResponse{View: v, State: session.State()})
}

// handleToggleSort handles POST /api/filters/{view}/sort/{field}
func (h *Handler) handleToggleSort(w http.ResponseWriter, r *http.Request) {
	session, v, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.ToggleSort(r.Context(), chi.URLParam(r, "field")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FiltersResponse{View: v, State: session.State()})
}
