package api

import (
	"net/http"

	"github.com/dennisdiepolder/qmconsole/internal/auth"
	"github.com/dennisdiepolder/qmconsole/internal/chart"
	"github.com/dennisdiepolder/qmconsole/internal/filter"
	"github.com/dennisdiepolder/qmconsole/internal/stats"
	"github.com/dennisdiepolder/qmconsole/internal/types"
	"github.com/go-chi/chi/v5"
)

// ThemePreference is the preference holding the user's chart theme
const ThemePreference = "theme"

// handleChart handles GET /api/charts/{kind}
func (h *Handler) handleChart(w http.ResponseWriter, r *http.Request) {
	theme := h.theme(r)

	var c chart.Chart
	switch kind := chi.URLParam(r, "kind"); kind {
	case "hourly":
		series, err := h.callSeries(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		start, err := hourlyStart(r, series)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		c = chart.Line(stats.BucketByHour(series, start), theme)

	case "ranking":
		ranking, err := h.ranking(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		c = chart.Bar(ranking.Items, ranking.Metric, theme)

	case "failures":
		st, err := h.viewState(r, types.PanelQueues)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		queues := filter.ApplyState(h.store.State().Queues, st)
		c = chart.Doughnut(stats.FailureBreakdown(queues), "failures", theme)

	case "outcomes":
		st, err := h.viewState(r, types.PanelCalls)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		calls := filter.ApplyState(h.store.State().Calls.Records, st)
		c = chart.Doughnut(stats.OutcomeCounts(calls), "outcomes", theme)

	default:
		writeError(w, http.StatusNotFound, "unknown chart "+kind)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// theme returns the theme query parameter, falling back to the user's saved
// theme preference
func (h *Handler) theme(r *http.Request) chart.Theme {
	if raw := r.URL.Query().Get("theme"); raw != "" {
		return chart.ParseTheme(raw)
	}

	username := auth.Username(r.Context())
	if username == "" {
		return chart.ThemeLight
	}
	var saved string
	if _, err := h.prefs.LoadInto(r.Context(), ThemePreference, username, &saved); err != nil {
		h.logger.Debug().Err(err).Str("username", username).Msg("theme preference unavailable")
	}
	return chart.ParseTheme(saved)
}

// handleRefresh handles POST /api/refresh/{panel}
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	panel := chi.URLParam(r, "panel")
	if err := h.panels.Refresh(panel); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"panel": panel, "status": "refreshing"})
}
