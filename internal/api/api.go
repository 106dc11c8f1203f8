// Package api serves the console's REST endpoints: filtered queue, agent and
// call lists, statistics and charts, the CSV export, and per-user
// preferences, caches and saved filters.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/auth"
	"github.com/dennisdiepolder/qmconsole/internal/filter"
	"github.com/dennisdiepolder/qmconsole/internal/preferences"
	"github.com/dennisdiepolder/qmconsole/internal/state"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// errBadParam marks a malformed query parameter
var errBadParam = errors.New("invalid parameter")

const (
	defaultCacheTTL = 5 * time.Minute
	maxBodyBytes    = 1 << 20
)

// Preferences is the per-user store behind the preference, cache and
// filter endpoints
type Preferences interface {
	filter.Preferences
	Load(ctx context.Context, name, username string) (json.RawMessage, bool, error)
	All(ctx context.Context, username string) (map[string]json.RawMessage, error)
	SaveCache(ctx context.Context, name string, payload any, username string, ttl time.Duration) error
	LoadCache(ctx context.Context, name, username string) (json.RawMessage, bool, error)
	DeleteCache(ctx context.Context, name, username string) error
	ClearCache(ctx context.Context, username string) error
}

// Panels triggers fetches of the live panels
type Panels interface {
	Refresh(panel string) error
	SelectCallPage(page int) error
}

// Handler serves the /api routes
type Handler struct {
	store  *state.Store
	views  *filter.Registry
	prefs  Preferences
	panels Panels
	logger zerolog.Logger

	onFilterChange func(username string, st filter.State)
}

// NewHandler creates a new Handler
func NewHandler(store *state.Store, views *filter.Registry, prefs Preferences, panels Panels, logger zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		views:  views,
		prefs:  prefs,
		panels: panels,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// OnFilterChange registers a callback run after a user's saved filters
// change. It must be set before Routes is served.
func (h *Handler) OnFilterChange(fn func(username string, st filter.State)) {
	h.onFilterChange = fn
}

// Routes registers every endpoint under /api
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/queues", h.handleQueues)
		r.Get("/queues/failures", h.handleQueueFailures)
		r.Get("/queues/alarms", h.handleQueueAlarms)

		r.Get("/agents", h.handleAgents)
		r.Get("/agents/ranking", h.handleAgentRanking)

		r.Get("/calls", h.handleCalls)
		r.Get("/calls/hourly", h.handleCallsHourly)
		r.Get("/calls/export.csv", h.handleCallsExport)

		r.Get("/charts/{kind}", h.handleChart)
		r.Post("/refresh/{panel}", h.handleRefresh)

		r.Get("/preferences", h.handleAllPreferences)
		r.Get("/preferences/{name}", h.handleGetPreference)
		r.Put("/preferences/{name}", h.handlePutPreference)

		r.Delete("/cache", h.handleClearCache)
		r.Get("/cache/{name}", h.handleGetCache)
		r.Put("/cache/{name}", h.handlePutCache)
		r.Delete("/cache/{name}", h.handleDeleteCache)

		r.Get("/filters/{view}", h.handleGetFilters)
		r.Put("/filters/{view}", h.handlePutFilters)
		r.Post("/filters/{view}/reset", h.handleResetFilters)
		r.Post("/filters/{view}/sort/{field}", h.handleToggleSort)
	})
}

// viewState returns the state a list request is served with: the user's
// saved filters for the view overlaid with the request's query parameters
func (h *Handler) viewState(r *http.Request, name string) (filter.State, error) {
	v, err := h.views.View(name)
	if err != nil {
		return filter.State{}, err
	}

	base := v.Defaults()
	if username := auth.Username(r.Context()); username != "" {
		session, err := filter.NewSession(r.Context(), v, h.prefs, username, nil)
		if err != nil {
			h.logger.Warn().Err(err).Str("view", name).Str("username", username).Msg("using default filters")
		} else {
			base = session.State()
		}
	}
	return v.ParseFrom(base, r.URL.Query())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps err to a status code and writes it. Server-side failures are
// logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, filter.ErrUnknownView):
		return http.StatusNotFound
	case errors.Is(err, filter.ErrUnknownFacet), errors.Is(err, filter.ErrUnknownOption), errors.Is(err, errBadParam):
		return http.StatusBadRequest
	case errors.Is(err, preferences.ErrStoreClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// requireUser returns the authenticated username or writes a 401
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := auth.Username(r.Context())
	if username == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return username, true
}
