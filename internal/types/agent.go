package types

// AgentStatus represents the current status of an agent
type AgentStatus string

const (
	AgentAvailable AgentStatus = "available"
	AgentBusy      AgentStatus = "busy"
	AgentPaused    AgentStatus = "paused"
	AgentLoggedOut AgentStatus = "logged_out"
)

// AllAgentStatuses lists every agent status in display order
var AllAgentStatuses = []AgentStatus{AgentAvailable, AgentBusy, AgentPaused, AgentLoggedOut}

// Agent metric keys understood by AgentCounters.Metric
const (
	MetricCallsTaken    = "calls_taken"
	MetricNoAnswer      = "no_answer"
	MetricPauseTime     = "pause_time"
	MetricLoginTime     = "login_time"
	MetricAvgRecallTime = "avg_recall_time"
)

// AgentMetrics lists every agent metric key
var AgentMetrics = []string{
	MetricCallsTaken,
	MetricNoAnswer,
	MetricPauseTime,
	MetricLoginTime,
	MetricAvgRecallTime,
}

// AgentCounters contains performance counters for an agent
type AgentCounters struct {
	CallsTaken    int     `json:"calls_taken"`
	NoAnswer      int     `json:"no_answer"`
	PauseTime     float64 `json:"pause_time"`      // seconds
	LoginTime     float64 `json:"login_time"`      // seconds
	AvgRecallTime float64 `json:"avg_recall_time"` // seconds
}

// Metric returns a counter by key
func (c AgentCounters) Metric(key string) (float64, bool) {
	switch key {
	case MetricCallsTaken:
		return float64(c.CallsTaken), true
	case MetricNoAnswer:
		return float64(c.NoAnswer), true
	case MetricPauseTime:
		return c.PauseTime, true
	case MetricLoginTime:
		return c.LoginTime, true
	case MetricAvgRecallTime:
		return c.AvgRecallTime, true
	}
	return 0, false
}

// AgentStat is one agent with cross-queue and per-queue counters
type AgentStat struct {
	Agent  string      `json:"agent"`
	Name   string      `json:"name"`
	Group  string      `json:"group,omitempty"`
	Status AgentStatus `json:"status"`
	AgentCounters
	Queues map[string]AgentCounters `json:"queues,omitempty"` // queue id -> counters
}

// ForQueue returns a copy of the agent whose counters are the ones recorded
// for a single queue. Agents without activity in the queue get zero counters.
func (a AgentStat) ForQueue(queue string) AgentStat {
	out := a
	out.AgentCounters = a.Queues[queue]
	out.Queues = nil
	return out
}

// EntityName returns the display name, falling back to the agent id
func (a AgentStat) EntityName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Agent
}

// SearchFields returns the fields matched by text search
func (a AgentStat) SearchFields() []string {
	return []string{a.Agent, a.Name, a.Group}
}

// FacetValue returns the agent's value for a facet
func (a AgentStat) FacetValue(facet string) string {
	switch facet {
	case "status":
		return string(a.Status)
	case "group":
		return a.Group
	}
	return ""
}

// SortValue returns the value used when sorting agents by field
func (a AgentStat) SortValue(field string) SortValue {
	switch field {
	case "name":
		return TextValue(a.EntityName())
	case "agent":
		return TextValue(a.Agent)
	case "group":
		return TextValue(a.Group)
	case "status":
		return TextValue(string(a.Status))
	}
	v, _ := a.Metric(field)
	return NumberValue(v)
}
