package alerts

import (
	"fmt"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/types"
)

// Wait thresholds for the longest waiting caller of a queue
const (
	WaitWarning  = 2 * time.Minute
	WaitCritical = 5 * time.Minute
)

// CheckQueueAlerts evaluates alarm rules for a slice of queues, mutating
// each queue's Status and Alerts fields in place. A nil agents slice means
// agent state is unknown and the availability rule is skipped.
func CheckQueueAlerts(queues []types.QueueRecord, agents []types.AgentStat) {
	for i := range queues {
		q := &queues[i]
		q.Alerts = nil

		if len(q.Waiting) == 0 {
			q.Status = types.QueueIdle
			continue
		}

		wait := secondsToDuration(q.LongestWait())
		switch {
		case wait > WaitCritical:
			q.Alerts = append(q.Alerts, types.QueueAlert{
				Rule:     "wait_critical",
				Severity: types.SeverityCritical,
				Message:  fmt.Sprintf("Caller waiting for %s", formatDuration(wait)),
			})
		case wait > WaitWarning:
			q.Alerts = append(q.Alerts, types.QueueAlert{
				Rule:     "wait_long",
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("Caller waiting for %s", formatDuration(wait)),
			})
		}

		if agents != nil && !hasAvailableAgent(*q, agents) {
			q.Alerts = append(q.Alerts, types.QueueAlert{
				Rule:     "no_agents",
				Severity: types.SeverityCritical,
				Message:  fmt.Sprintf("%d waiting, no agents available", len(q.Waiting)),
			})
		}

		if len(q.Alerts) > 0 {
			q.Status = types.QueueAlarm
		} else {
			q.Status = types.QueueWaiting
		}
	}
}

// hasAvailableAgent reports whether an available agent serves the queue,
// either as a queue member or through the queue group
func hasAvailableAgent(q types.QueueRecord, agents []types.AgentStat) bool {
	for _, a := range agents {
		if a.Status != types.AgentAvailable {
			continue
		}
		if _, member := a.Queues[q.Queue]; member {
			return true
		}
		if q.Group != "" && a.Group == q.Group {
			return true
		}
	}
	return false
}

// Active returns the queues that currently raise at least one alarm
func Active(queues []types.QueueRecord) []types.QueueRecord {
	out := []types.QueueRecord{}
	for _, q := range queues {
		if len(q.Alerts) > 0 {
			out = append(out, q)
		}
	}
	return out
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func formatDuration(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
