package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// readJSONBody reads a request body that must hold a single JSON value
func readJSONBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("body: %w: %v", errBadParam, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("body: %w: not JSON", errBadParam)
	}
	return body, nil
}

// handleAllPreferences handles GET /api/preferences
func (h *Handler) handleAllPreferences(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUser(w, r)
	if !ok {
		return
	}

	all, err := h.prefs.All(r.Context(), username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// handleGetPreference handles GET /api/preferences/{name}
func (h *Handler) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUser(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")

	value, found, err := h.prefs.Load(r.Context(), name, username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "preference not found")
		return
	}
	writeRawJSON(w, value)
}

// handlePutPreference handles PUT /api/preferences/{name}
func (h *Handler) handlePutPreference(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUser(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")

	body, err := readJSONBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.prefs.Save(r.Context(), name, body, username); err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Debug().Str("username", username).Str("name", name).Msg("preference saved")
	w.WriteHeader(http.StatusNoContent)
}

// handleGetCache handles GET /api/cache/{name}. Expired entries are a 404.
func (h *Handler) handleGetCache(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUser(w, r)
	if !ok {
		return
	}

	entry, found, err := h.prefs.LoadCache(r.Context(), chi.URLParam(r, "name"), username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "cache miss")
		return
	}
	writeRawJSON(w, entry)
}

// handlePutCache handles PUT /api/cache/{name}?ttl=seconds
func (h *Handler) handlePutCache(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUser(w, r)
	if !ok {
		return
	}

	ttl := defaultCacheTTL
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid ttl %q", raw))
			return
		}
		ttl = time.Duration(seconds) * time.Second
	}

	body, err := readJSONBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.prefs.SaveCache(r.Context(), chi.URLParam(r, "name"), body, username, ttl); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteCache handles DELETE /api/cache/{name}
func (h *Handler) handleDeleteCache(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.prefs.DeleteCache(r.Context(), chi.URLParam(r, "name"), username); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearCache handles DELETE /api/cache
func (h *Handler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.prefs.ClearCache(r.Context(), username); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info().Str("username", username).Msg("cache cleared")
	w.WriteHeader(http.StatusNoContent)
}
