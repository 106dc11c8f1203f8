package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/export"
	"github.com/dennisdiepolder/qmconsole/internal/filter"
	"github.com/dennisdiepolder/qmconsole/internal/stats"
	"github.com/dennisdiepolder/qmconsole/internal/types"
)

// CallsResponse is one filtered page of call history
type CallsResponse struct {
	ListResponse[types.CallRecord]
	Page      int `json:"page"`
	PageSize  int `json:"page_size"`
	PageTotal int `json:"page_total"` // total records across all pages
}

// HourlyResponse is the call history bucketed by hour and outcome
type HourlyResponse struct {
	Start   *time.Time         `json:"start,omitempty"`
	Series  []string           `json:"series"`
	Buckets []stats.HourBucket `json:"buckets"`
}

// handleCalls handles GET /api/calls. A page other than the loaded one is
// selected on the calls poller and answered with 202; the page arrives with
// the next fetch.
func (h *Handler) handleCalls(w http.ResponseWriter, r *http.Request) {
	s := h.store.State()

	page, err := positiveInt(r.URL.Query(), "page", s.CallPage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if page != s.Calls.Page {
		if page != s.CallPage {
			if err := h.panels.SelectCallPage(page); err != nil {
				h.fail(w, r, err)
				return
			}
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"page": page, "status": "fetching"})
		return
	}

	st, err := h.viewState(r, types.PanelCalls)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CallsResponse{
		ListResponse: ListResponse[types.CallRecord]{
			Items:  filter.ApplyState(s.Calls.Records, st),
			Total:  len(s.Calls.Records),
			Filter: st,
			Status: s.CallsStatus,
		},
		Page:      s.Calls.Page,
		PageSize:  s.Calls.Size,
		PageTotal: s.Calls.Total,
	})
}

// handleCallsHourly handles GET /api/calls/hourly. start (RFC 3339) drops
// calls before its hour; by default every loaded call is bucketed.
func (h *Handler) handleCallsHourly(w http.ResponseWriter, r *http.Request) {
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

	resp := HourlyResponse{
		Series:  stats.SeriesNames(series),
		Buckets: stats.BucketByHour(series, start),
	}
	if !start.IsZero() {
		resp.Start = &start
	}
	writeJSON(w, http.StatusOK, resp)
}

// callSeries returns the filtered loaded calls split by outcome
func (h *Handler) callSeries(r *http.Request) (map[string][]time.Time, error) {
	st, err := h.viewState(r, types.PanelCalls)
	if err != nil {
		return nil, err
	}
	return stats.SeriesByOutcome(filter.ApplyState(h.store.State().Calls.Records, st)), nil
}

func hourlyStart(r *http.Request, series map[string][]time.Time) (time.Time, error) {
	if raw := r.URL.Query().Get("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("start: %w: %q", errBadParam, raw)
		}
		return start, nil
	}
	start, _ := stats.EarliestHour(series)
	return start, nil
}

// handleCallsExport handles GET /api/calls/export.csv. Only the loaded page
// can be exported.
func (h *Handler) handleCallsExport(w http.ResponseWriter, r *http.Request) {
	s := h.store.State()

	page, err := positiveInt(r.URL.Query(), "page", s.Calls.Page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if page != s.Calls.Page {
		writeError(w, http.StatusConflict, fmt.Sprintf("page %d is not loaded", page))
		return
	}

	st, err := h.viewState(r, types.PanelCalls)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	records := filter.ApplyState(s.Calls.Records, st)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(page)))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCalls(w, records); err != nil {
		h.logger.Warn().Err(err).Int("page", page).Msg("csv export interrupted")
		return
	}

	h.logger.Debug().Int("page", page).Int("records", len(records)).Msg("calls exported")
}
