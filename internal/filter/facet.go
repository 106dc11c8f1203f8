package filter

import (
	"errors"
	"fmt"

	"github.com/dennisdiepolder/qmconsole/internal/types"
)

var (
	ErrUnknownFacet  = errors.New("unknown facet")
	ErrUnknownOption = errors.New("unknown option")
	ErrUnknownView   = errors.New("unknown view")
)

// All disables a facet
const All = "all"

// FacetKind enumerates the facets a view can offer
type FacetKind string

const (
	FacetStatus  FacetKind = "status"
	FacetGroup   FacetKind = "group"
	FacetOutcome FacetKind = "outcome"
	FacetQueue   FacetKind = "queue"
	FacetSortBy  FacetKind = "sort-by"
)

// FacetKinds lists every facet kind
var FacetKinds = []FacetKind{FacetStatus, FacetGroup, FacetOutcome, FacetQueue, FacetSortBy}

// ParseFacetKind validates a facet name
func ParseFacetKind(s string) (FacetKind, error) {
	for _, k := range FacetKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFacet, s)
}

// Facet is one selectable filter of a view. Open facets accept any value
// because their options come from the loaded data (queue ids, groups).
type Facet struct {
	Kind    FacetKind `json:"kind"`
	Options []string  `json:"options,omitempty"`
	Default string    `json:"default"`
	Open    bool      `json:"open,omitempty"`
}

// Allows reports whether option is a valid selection
func (f Facet) Allows(option string) bool {
	if f.Open {
		return option != ""
	}
	for _, o := range f.Options {
		if o == option {
			return true
		}
	}
	return false
}

func statusOptions[S ~string](statuses []S) []string {
	out := []string{All}
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func openFacet(kind FacetKind) Facet {
	return Facet{Kind: kind, Default: All, Open: true}
}

func sortFacet(fields ...string) Facet {
	return Facet{Kind: FacetSortBy, Options: fields, Default: "name"}
}

// QueuesView is the queue list
func QueuesView() View {
	return View{
		Name: types.PanelQueues,
		Facets: []Facet{
			{Kind: FacetStatus, Options: statusOptions(types.AllQueueStatuses), Default: All},
			openFacet(FacetGroup),
			sortFacet("name", "queue", "group",
				types.MetricTot, types.MetricTotProcessed, types.MetricTotFailed,
				types.MetricTotNull, types.MetricWaiting, types.MetricLongestWait),
		},
	}
}

// AgentsView is the agent list
func AgentsView() View {
	return View{
		Name: types.PanelAgents,
		Facets: []Facet{
			{Kind: FacetStatus, Options: statusOptions(types.AllAgentStatuses), Default: All},
			openFacet(FacetGroup),
			openFacet(FacetQueue),
			sortFacet(append([]string{"name", "agent", "group", "status"}, types.AgentMetrics...)...),
		},
	}
}

// CallsView is the call history list
func CallsView() View {
	return View{
		Name: types.PanelCalls,
		Facets: []Facet{
			{Kind: FacetOutcome, Options: statusOptions(types.AllOutcomes), Default: All},
			openFacet(FacetQueue),
			sortFacet("name", "time", "queue", "company", "outcome"),
		},
	}
}
