// Package filter narrows and orders the console's record lists. Apply and
// Sort are pure; Session keeps a user's selections for one view and
// persists them as a preference.
package filter

import (
	"sort"
	"strings"
	"unicode"

	"github.com/dennisdiepolder/qmconsole/internal/stats"
	"github.com/dennisdiepolder/qmconsole/internal/types"
)

// Record is anything the filter engine can search, facet and sort
type Record interface {
	SearchFields() []string
	FacetValue(facet string) string
	SortValue(field string) types.SortValue
}

// normalize lowercases s and strips everything that is not a letter or digit
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Matches reports whether rec passes the text query and facet selections
func Matches(rec Record, query string, selections map[FacetKind]string) bool {
	for kind, option := range selections {
		if kind == FacetSortBy || option == "" || option == All {
			continue
		}
		if rec.FacetValue(string(kind)) != option {
			return false
		}
	}

	q := normalize(query)
	if q == "" {
		return true
	}
	for _, field := range rec.SearchFields() {
		if strings.Contains(normalize(field), q) {
			return true
		}
	}
	return false
}

// Apply returns the records matching query and selections, in input order.
// The input slice is not modified.
func Apply[R Record](records []R, query string, selections map[FacetKind]string) []R {
	out := make([]R, 0, len(records))
	for _, r := range records {
		if Matches(r, query, selections) {
			out = append(out, r)
		}
	}
	return out
}

// SortOrder is a sort field and direction
type SortOrder struct {
	Field string          `json:"field"`
	Dir   stats.Direction `json:"dir"`
}

// Toggle flips the direction when field is already the sort field, otherwise
// sorts ascending by field
func (o SortOrder) Toggle(field string) SortOrder {
	if o.Field == field {
		if o.Dir == stats.Asc {
			return SortOrder{Field: field, Dir: stats.Desc}
		}
		return SortOrder{Field: field, Dir: stats.Asc}
	}
	return SortOrder{Field: field, Dir: stats.Asc}
}

// Sort returns a stably sorted copy of records
func Sort[R Record](records []R, order SortOrder) []R {
	out := append([]R(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		c := out[i].SortValue(order.Field).Compare(out[j].SortValue(order.Field))
		if order.Dir == stats.Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// ApplyState filters then sorts records by a view state
func ApplyState[R Record](records []R, st State) []R {
	return Sort(Apply(records, st.Query, st.Selections), st.Order)
}

// ApplyAgents filters and sorts agents. A queue selection keeps the agents
// serving that queue and swaps their counters for the per-queue ones.
func ApplyAgents(agents []types.AgentStat, st State) []types.AgentStat {
	queue := st.Selections[FacetQueue]
	if queue == "" || queue == All {
		return ApplyState(agents, st)
	}

	scoped := make([]types.AgentStat, 0, len(agents))
	for _, a := range agents {
		if _, ok := a.Queues[queue]; ok {
			scoped = append(scoped, a.ForQueue(queue))
		}
	}

	rest := st
	rest.Selections = make(map[FacetKind]string, len(st.Selections))
	for k, v := range st.Selections {
		if k != FacetQueue {
			rest.Selections[k] = v
		}
	}
	return ApplyState(scoped, rest)
}
