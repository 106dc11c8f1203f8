package types

import "strings"

// QueueStatus is the derived state of a queue shown in the queue list
type QueueStatus string

const (
	QueueIdle    QueueStatus = "idle"    // nobody waiting
	QueueWaiting QueueStatus = "waiting" // callers waiting, no alarm raised
	QueueAlarm   QueueStatus = "alarm"   // at least one alarm raised
)

// AllQueueStatuses lists every queue status in display order
var AllQueueStatuses = []QueueStatus{QueueIdle, QueueWaiting, QueueAlarm}

// FailureReason is a reason a queued call left the queue unanswered
type FailureReason string

const (
	FailureTimeout     FailureReason = "timeout"
	FailureFull        FailureReason = "full"
	FailureJoinEmpty   FailureReason = "joinempty"
	FailureLeaveEmpty  FailureReason = "leaveempty"
	FailureExitWithKey FailureReason = "exitwithkey"
	FailureAbandon     FailureReason = "abandon"
)

// AllFailureReasons lists every failure reason in display order
var AllFailureReasons = []FailureReason{
	FailureTimeout,
	FailureFull,
	FailureJoinEmpty,
	FailureLeaveEmpty,
	FailureExitWithKey,
	FailureAbandon,
}

// Queue metric keys understood by QueueRecord.Metric
const (
	MetricTot          = "tot"
	MetricTotProcessed = "tot_processed"
	MetricTotFailed    = "tot_failed"
	MetricTotNull      = "tot_null"
	MetricWaiting      = "waiting"
	MetricLongestWait  = "longest_wait"
)

// WaitingCaller is a caller currently waiting in a queue
type WaitingCaller struct {
	Position   int     `json:"position"`
	CallerID   string  `json:"caller_id"`
	CallerName string  `json:"caller_name,omitempty"`
	Wait       float64 `json:"wait"` // seconds
}

// AlertSeverity represents the severity of a queue alarm
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// QueueAlert represents an alarm condition on a queue
type QueueAlert struct {
	Rule     string        `json:"rule"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// QueueRecord is one queue as reported by the PBX API
type QueueRecord struct {
	Queue        string                `json:"queue"`
	Name         string                `json:"name"`
	Group        string                `json:"group,omitempty"`
	Tot          int                   `json:"tot"`
	TotProcessed int                   `json:"tot_processed"`
	TotFailed    int                   `json:"tot_failed"`
	TotNull      int                   `json:"tot_null"`
	Failures     map[FailureReason]int `json:"failures,omitempty"`
	Waiting      []WaitingCaller       `json:"waiting,omitempty"`
	Status       QueueStatus           `json:"status,omitempty"` // set by alerts.CheckQueueAlerts
	Alerts       []QueueAlert          `json:"alerts,omitempty"`
}

// EntityName returns the display name, falling back to the queue id
func (q QueueRecord) EntityName() string {
	if q.Name != "" {
		return q.Name
	}
	return q.Queue
}

// Metric returns the value of a counter by key. Failure reasons are
// addressable by their reason name.
func (q QueueRecord) Metric(key string) (float64, bool) {
	switch key {
	case MetricTot:
		return float64(q.Tot), true
	case MetricTotProcessed:
		return float64(q.TotProcessed), true
	case MetricTotFailed:
		return float64(q.TotFailed), true
	case MetricTotNull:
		return float64(q.TotNull), true
	case MetricWaiting:
		return float64(len(q.Waiting)), true
	case MetricLongestWait:
		return q.LongestWait(), true
	}
	if n, ok := q.Failures[FailureReason(key)]; ok {
		return float64(n), true
	}
	return 0, false
}

// LongestWait returns the wait time of the longest waiting caller in seconds
func (q QueueRecord) LongestWait() float64 {
	longest := 0.0
	for _, c := range q.Waiting {
		if c.Wait > longest {
			longest = c.Wait
		}
	}
	return longest
}

// SearchFields returns the fields matched by text search
func (q QueueRecord) SearchFields() []string {
	return []string{q.Queue, q.Name, q.Group}
}

// FacetValue returns the record's value for a facet, or "" if the facet
// does not apply to queues
func (q QueueRecord) FacetValue(facet string) string {
	switch facet {
	case "status":
		if q.Status == "" {
			if len(q.Waiting) > 0 {
				return string(QueueWaiting)
			}
			return string(QueueIdle)
		}
		return string(q.Status)
	case "group":
		return q.Group
	case "queue":
		return q.Queue
	}
	return ""
}

// SortValue returns the value used when sorting queues by field
func (q QueueRecord) SortValue(field string) SortValue {
	switch field {
	case "name":
		return TextValue(q.EntityName())
	case "queue":
		return TextValue(q.Queue)
	case "group":
		return TextValue(q.Group)
	}
	v, _ := q.Metric(field)
	return NumberValue(v)
}

// SortValue is a comparable value extracted from a record for sorting
type SortValue struct {
	Number  float64
	Text    string
	Numeric bool
}

// NumberValue wraps a number as a SortValue
func NumberValue(v float64) SortValue { return SortValue{Number: v, Numeric: true} }

// TextValue wraps a string as a SortValue
func TextValue(s string) SortValue { return SortValue{Text: s} }

// Compare orders two sort values. Numbers sort before text; text compares
// case-insensitively.
func (v SortValue) Compare(o SortValue) int {
	switch {
	case v.Numeric && o.Numeric:
		switch {
		case v.Number < o.Number:
			return -1
		case v.Number > o.Number:
			return 1
		}
		return 0
	case v.Numeric:
		return -1
	case o.Numeric:
		return 1
	}
	return strings.Compare(strings.ToLower(v.Text), strings.ToLower(o.Text))
}
