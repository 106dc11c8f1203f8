package types

import "time"

// CallPageSize is the number of call records the PBX API returns per page
const CallPageSize = 50

// Outcome is the final result of a historical call
type Outcome string

const (
	OutcomeAnswered  Outcome = "answered"
	OutcomeFailed    Outcome = "failed"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeAbandoned Outcome = "abandoned"
	OutcomeTimeout   Outcome = "timeout"
)

// AllOutcomes lists every call outcome in display order
var AllOutcomes = []Outcome{OutcomeAnswered, OutcomeFailed, OutcomeInvalid, OutcomeAbandoned, OutcomeTimeout}

// CallRecord is a single historical call event. Records are immutable once
// fetched.
type CallRecord struct {
	Time     time.Time `json:"time"`
	Queue    string    `json:"queue"`
	ToQueue  string    `json:"to_queue,omitempty"`
	CallerID string    `json:"caller_id"`
	Name     string    `json:"name"`
	Company  string    `json:"company"`
	Outcome  Outcome   `json:"outcome"`
}

// SearchFields returns the fields matched by text search
func (c CallRecord) SearchFields() []string {
	return []string{c.CallerID, c.Name, c.Company, c.Queue}
}

// FacetValue returns the call's value for a facet
func (c CallRecord) FacetValue(facet string) string {
	switch facet {
	case "outcome":
		return string(c.Outcome)
	case "queue":
		return c.Queue
	}
	return ""
}

// SortValue returns the value used when sorting calls by field
func (c CallRecord) SortValue(field string) SortValue {
	switch field {
	case "time":
		return NumberValue(float64(c.Time.UnixMilli()))
	case "queue":
		return TextValue(c.Queue)
	case "company":
		return TextValue(c.Company)
	case "outcome":
		return TextValue(string(c.Outcome))
	}
	return TextValue(c.Name)
}

// CallPage is one page of call history
type CallPage struct {
	Page    int          `json:"page"`
	Size    int          `json:"size"`
	Total   int          `json:"total"`
	Records []CallRecord `json:"records"`
}
