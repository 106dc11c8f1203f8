package api

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/dennisdiepolder/qmconsole/internal/alerts"
	"github.com/dennisdiepolder/qmconsole/internal/filter"
	"github.com/dennisdiepolder/qmconsole/internal/state"
	"github.com/dennisdiepolder/qmconsole/internal/stats"
	"github.com/dennisdiepolder/qmconsole/internal/types"
)

const defaultRankingLimit = 10

// ListResponse is a filtered list together with the state it was filtered
// with. Total counts the records before filtering.
type ListResponse[T any] struct {
	Items  []T               `json:"items"`
	Total  int               `json:"total"`
	Filter filter.State      `json:"filter"`
	Status state.PanelStatus `json:"status"`
}

// RankingResponse is an agent ranking by one metric
type RankingResponse struct {
	Metric    string          `json:"metric"`
	Direction stats.Direction `json:"direction"`
	Items     []stats.Ranked  `json:"items"`
}

// handleQueues handles GET /api/queues
func (h *Handler) handleQueues(w http.ResponseWriter, r *http.Request) {
	st, err := h.viewState(r, types.PanelQueues)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	s := h.store.State()
	writeJSON(w, http.StatusOK, ListResponse[types.QueueRecord]{
		Items:  filter.ApplyState(s.Queues, st),
		Total:  len(s.Queues),
		Filter: st,
		Status: s.QueuesStatus,
	})
}

// handleQueueFailures handles GET /api/queues/failures
func (h *Handler) handleQueueFailures(w http.ResponseWriter, r *http.Request) {
	st, err := h.viewState(r, types.PanelQueues)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	queues := filter.ApplyState(h.store.State().Queues, st)
	writeJSON(w, http.StatusOK, map[string]any{
		"queues":   len(queues),
		"failures": stats.FailureBreakdown(queues),
	})
}

// handleQueueAlarms handles GET /api/queues/alarms
func (h *Handler) handleQueueAlarms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": alerts.Active(h.store.State().Queues)})
}

// handleAgents handles GET /api/agents
func (h *Handler) handleAgents(w http.ResponseWriter, r *http.Request) {
	st, err := h.viewState(r, types.PanelAgents)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	s := h.store.State()
	writeJSON(w, http.StatusOK, ListResponse[types.AgentStat]{
		Items:  filter.ApplyAgents(s.Agents, st),
		Total:  len(s.Agents),
		Filter: st,
		Status: s.AgentsStatus,
	})
}

// handleAgentRanking handles GET /api/agents/ranking
func (h *Handler) handleAgentRanking(w http.ResponseWriter, r *http.Request) {
	resp, err := h.ranking(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ranking ranks the agents of the request's agent view by metric
// (default calls_taken), dir (default desc) and limit (default 10)
func (h *Handler) ranking(r *http.Request) (RankingResponse, error) {
	q := r.URL.Query()

	metric := q.Get("metric")
	if metric == "" {
		metric = types.MetricCallsTaken
	}
	if !slices.Contains(types.AgentMetrics, metric) {
		return RankingResponse{}, fmt.Errorf("metric: %w: %q", filter.ErrUnknownOption, metric)
	}

	limit, err := positiveInt(q, "limit", defaultRankingLimit)
	if err != nil {
		return RankingResponse{}, err
	}

	st, err := h.viewState(r, types.PanelAgents)
	if err != nil {
		return RankingResponse{}, err
	}

	dir := stats.ParseDirection(q.Get("dir"))
	agg := stats.Aggregate(filter.ApplyAgents(h.store.State().Agents, st), types.AgentMetrics)
	return RankingResponse{
		Metric:    metric,
		Direction: dir,
		Items:     stats.Top(stats.Rank(agg, metric, dir), limit),
	}, nil
}

// positiveInt reads an optional integer parameter that must be at least 1
func positiveInt(q url.Values, key string, def int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s: %w: %q", key, errBadParam, raw)
	}
	return n, nil
}
