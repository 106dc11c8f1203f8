package stats

import (
	"sort"
	"time"
)

// HourBucket holds the number of records per series within one hour
type HourBucket struct {
	Hour   time.Time      `json:"hour"`
	Counts map[string]int `json:"counts"`
}

// HourOf truncates t to the start of its wall-clock hour in t's own
// location. It steps back from the instant instead of rebuilding the date so
// the two occurrences of a repeated DST hour stay distinct.
func HourOf(t time.Time) time.Time {
	return t.Add(-time.Duration(t.Minute())*time.Minute -
		time.Duration(t.Second())*time.Second -
		time.Duration(t.Nanosecond()))
}

// EarliestHour returns the earliest hour present in any series
func EarliestHour(series map[string][]time.Time) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, times := range series {
		for _, t := range times {
			if !found || t.Before(earliest) {
				earliest = t
				found = true
			}
		}
	}
	if !found {
		return time.Time{}, false
	}
	return HourOf(earliest), true
}

// SeriesNames returns the series names in lexical order
func SeriesNames(series map[string][]time.Time) []string {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BucketByHour counts records per hour for every series. Records whose hour
// precedes the hour of start are dropped; a zero start keeps everything.
// Every hour present in any series is emitted in ascending order and carries
// a count for every series, zeros included.
func BucketByHour(series map[string][]time.Time, start time.Time) []HourBucket {
	var boundary time.Time
	if !start.IsZero() {
		boundary = HourOf(start)
	}

	byHour := make(map[int64]*HourBucket)
	for name, times := range series {
		for _, t := range times {
			hour := HourOf(t)
			if !boundary.IsZero() && hour.Before(boundary) {
				continue
			}
			b, ok := byHour[hour.Unix()]
			if !ok {
				b = &HourBucket{Hour: hour, Counts: make(map[string]int, len(series))}
				byHour[hour.Unix()] = b
			}
			b.Counts[name]++
		}
	}

	out := make([]HourBucket, 0, len(byHour))
	for _, b := range byHour {
		for name := range series {
			if _, ok := b.Counts[name]; !ok {
				b.Counts[name] = 0
			}
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out
}
