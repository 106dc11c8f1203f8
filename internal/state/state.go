// Package state holds the console's application state: the latest queues,
// agents and call page plus per-panel fetch status. State only changes
// through Reduce, and Store notifies subscribers after every action.
package state

import (
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/alerts"
	"github.com/dennisdiepolder/qmconsole/internal/types"
)

// PanelStatus is the fetch status of one panel
type PanelStatus struct {
	Loaded    bool      `json:"loaded"`
	Err       string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State is an immutable snapshot of the application state
type State struct {
	Version  uint64              `json:"version"`
	Queues   []types.QueueRecord `json:"queues"`
	Agents   []types.AgentStat   `json:"agents"`
	Calls    types.CallPage      `json:"calls"`
	CallPage int                 `json:"call_page"` // page requested by the calls poller

	QueuesStatus PanelStatus `json:"queues_status"`
	AgentsStatus PanelStatus `json:"agents_status"`
	CallsStatus  PanelStatus `json:"calls_status"`
}

// Initial returns the empty state
func Initial() State {
	return State{
		Queues:   []types.QueueRecord{},
		Agents:   []types.AgentStat{},
		Calls:    types.CallPage{Page: 1, Size: types.CallPageSize, Records: []types.CallRecord{}},
		CallPage: 1,
	}
}

// Errors returns the last fetch error per panel
func (s State) Errors() map[string]string {
	errs := make(map[string]string)
	if s.QueuesStatus.Err != "" {
		errs[types.PanelQueues] = s.QueuesStatus.Err
	}
	if s.AgentsStatus.Err != "" {
		errs[types.PanelAgents] = s.AgentsStatus.Err
	}
	if s.CallsStatus.Err != "" {
		errs[types.PanelCalls] = s.CallsStatus.Err
	}
	return errs
}

// Action is a state transition. The set of actions is closed.
type Action interface {
	isAction()
}

// QueuesLoaded replaces the queue list
type QueuesLoaded struct {
	Queues []types.QueueRecord
	At     time.Time
}

// AgentsLoaded replaces the agent list
type AgentsLoaded struct {
	Agents []types.AgentStat
	At     time.Time
}

// CallsLoaded replaces the current call page
type CallsLoaded struct {
	Page types.CallPage
	At   time.Time
}

// CallPageSelected changes the call page fetched on the next refresh
type CallPageSelected struct {
	Page int
}

// FetchFailed records a failed fetch for one panel. Loaded data is kept.
type FetchFailed struct {
	Panel string
	Err   string
	At    time.Time
}

func (QueuesLoaded) isAction()     {}
func (AgentsLoaded) isAction()     {}
func (CallsLoaded) isAction()      {}
func (CallPageSelected) isAction() {}
func (FetchFailed) isAction()      {}

// Reduce applies an action and returns the new state. The input state and
// the action's slices are never modified.
func Reduce(s State, a Action) State {
	next := s
	next.Version = s.Version + 1

	switch a := a.(type) {
	case QueuesLoaded:
		next.Queues = append([]types.QueueRecord{}, a.Queues...)
		alerts.CheckQueueAlerts(next.Queues, agentsIfLoaded(next))
		next.QueuesStatus = PanelStatus{Loaded: true, UpdatedAt: a.At}

	case AgentsLoaded:
		next.Agents = append([]types.AgentStat{}, a.Agents...)
		next.AgentsStatus = PanelStatus{Loaded: true, UpdatedAt: a.At}
		// availability alarms depend on agents
		next.Queues = append([]types.QueueRecord{}, s.Queues...)
		alerts.CheckQueueAlerts(next.Queues, next.Agents)

	case CallsLoaded:
		next.Calls = a.Page
		next.Calls.Records = append([]types.CallRecord{}, a.Page.Records...)
		next.CallsStatus = PanelStatus{Loaded: true, UpdatedAt: a.At}

	case CallPageSelected:
		if a.Page < 1 {
			return s
		}
		next.CallPage = a.Page

	case FetchFailed:
		switch a.Panel {
		case types.PanelQueues:
			next.QueuesStatus = failed(s.QueuesStatus, a)
		case types.PanelAgents:
			next.AgentsStatus = failed(s.AgentsStatus, a)
		case types.PanelCalls:
			next.CallsStatus = failed(s.CallsStatus, a)
		default:
			return s
		}

	default:
		return s
	}
	return next
}

func failed(prev PanelStatus, a FetchFailed) PanelStatus {
	return PanelStatus{Loaded: prev.Loaded, Err: a.Err, UpdatedAt: a.At}
}

func agentsIfLoaded(s State) []types.AgentStat {
	if !s.AgentsStatus.Loaded {
		return nil
	}
	return s.Agents
}
