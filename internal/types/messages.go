package types

import "time"

// Panel names used in snapshots and fetch errors
const (
	PanelQueues = "queues"
	PanelAgents = "agents"
	PanelCalls  = "calls"
)

// LiveSnapshot is the payload pushed to console clients on every state change
type LiveSnapshot struct {
	Type      string            `json:"type"` // always "snapshot"
	Timestamp time.Time         `json:"timestamp"`
	Queues    []QueueRecord     `json:"queues"`
	Agents    []AgentStat       `json:"agents"`
	Errors    map[string]string `json:"errors,omitempty"` // panel -> last fetch error
}

// Client message types
const (
	ClientRefresh = "refresh" // refresh a panel now, e.g. on tab switch
)

// ClientMessage is sent by console clients over the live feed
type ClientMessage struct {
	Type  string `json:"type"`
	Panel string `json:"panel,omitempty"`
}
