package stats

import (
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/types"
)

// NotManaged labels calls that never reached a queue decision (tot_null)
const NotManaged = "not_managed"

// Count is a labelled count
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// FailureBreakdown sums failure reasons across queues in display order,
// followed by the not-managed total.
func FailureBreakdown(queues []types.QueueRecord) []Count {
	totals := make(map[types.FailureReason]int, len(types.AllFailureReasons))
	notManaged := 0
	for _, q := range queues {
		for reason, n := range q.Failures {
			totals[reason] += n
		}
		notManaged += q.TotNull
	}

	out := make([]Count, 0, len(types.AllFailureReasons)+1)
	for _, reason := range types.AllFailureReasons {
		out = append(out, Count{Label: string(reason), Count: totals[reason]})
	}
	return append(out, Count{Label: NotManaged, Count: notManaged})
}

// OutcomeCounts counts calls per outcome in display order. Unknown outcomes
// are ignored.
func OutcomeCounts(calls []types.CallRecord) []Count {
	totals := make(map[types.Outcome]int, len(types.AllOutcomes))
	for _, c := range calls {
		totals[c.Outcome]++
	}

	out := make([]Count, 0, len(types.AllOutcomes))
	for _, o := range types.AllOutcomes {
		out = append(out, Count{Label: string(o), Count: totals[o]})
	}
	return out
}

// SeriesByOutcome groups call times by outcome, ready for BucketByHour
func SeriesByOutcome(calls []types.CallRecord) map[string][]time.Time {
	series := make(map[string][]time.Time)
	for _, c := range calls {
		series[string(c.Outcome)] = append(series[string(c.Outcome)], c.Time)
	}
	return series
}
