// Package stats turns queue, agent and call records into the numbers the
// console charts: per-entity sums, rankings, hour buckets and failure
// breakdowns. Every function is pure.
package stats

import (
	"math"
	"sort"
)

// Measurable is a record that exposes named numeric metrics
type Measurable interface {
	EntityName() string
	Metric(key string) (float64, bool)
}

// Aggregation maps entity names to summed metric values. Entities keeps the
// order in which each entity first appeared.
type Aggregation struct {
	Entities []string                      `json:"entities"`
	Values   map[string]map[string]float64 `json:"values"`
}

// Value returns the summed metric for an entity, zero when absent
func (a Aggregation) Value(entity, key string) float64 {
	return a.Values[entity][key]
}

// Aggregate sums the requested metrics per entity. Entities that appear more
// than once are summed. A metric the record does not expose, or one that is
// NaN or infinite, counts as zero.
func Aggregate[M Measurable](records []M, keys []string) Aggregation {
	agg := Aggregation{
		Entities: make([]string, 0, len(records)),
		Values:   make(map[string]map[string]float64, len(records)),
	}

	for _, r := range records {
		name := r.EntityName()
		values, ok := agg.Values[name]
		if !ok {
			values = make(map[string]float64, len(keys))
			for _, k := range keys {
				values[k] = 0
			}
			agg.Values[name] = values
			agg.Entities = append(agg.Entities, name)
		}

		for _, k := range keys {
			v, ok := r.Metric(k)
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			values[k] += v
		}
	}

	return agg
}

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection returns Asc for "asc" and Desc for anything else
func ParseDirection(s string) Direction {
	if Direction(s) == Asc {
		return Asc
	}
	return Desc
}

// Ranked is one entry of a ranking
type Ranked struct {
	Entity string  `json:"entity"`
	Value  float64 `json:"value"`
}

// Rank orders entities by one metric. Ties keep the aggregation's entity
// order in both directions.
func Rank(agg Aggregation, key string, dir Direction) []Ranked {
	out := make([]Ranked, 0, len(agg.Entities))
	for _, e := range agg.Entities {
		out = append(out, Ranked{Entity: e, Value: agg.Value(e, key)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if dir == Asc {
			return out[i].Value < out[j].Value
		}
		return out[i].Value > out[j].Value
	})
	return out
}

// Top returns the first n entries of a ranking
func Top(ranked []Ranked, n int) []Ranked {
	if n <= 0 {
		return []Ranked{}
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return append([]Ranked(nil), ranked[:n]...)
}
