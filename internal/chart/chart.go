// Package chart converts statistics into label/dataset payloads a browser
// charting library can render directly.
package chart

import (
	"sort"

	"github.com/dennisdiepolder/qmconsole/internal/stats"
)

// Chart types
const (
	TypeLine     = "line"
	TypeBar      = "bar"
	TypeDoughnut = "doughnut"
)

// Dataset is one series of a chart
type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor"`
	BorderColor     string    `json:"borderColor,omitempty"`
}

// Chart is a render-ready chart description
type Chart struct {
	Type     string    `json:"type"`
	Theme    Theme     `json:"theme"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
	Text     string    `json:"textColor"`
	Grid     string    `json:"gridColor"`
}

func newChart(kind string, theme Theme) Chart {
	theme = ParseTheme(string(theme))
	p := PaletteFor(theme)
	return Chart{
		Type:     kind,
		Theme:    theme,
		Labels:   []string{},
		Datasets: []Dataset{},
		Text:     p.Text,
		Grid:     p.Grid,
	}
}

// HourLabel formats an hour bucket as HH:00, or as MM-DD HH:00 when withDate
// is set
func HourLabel(b stats.HourBucket, withDate bool) string {
	if withDate {
		return b.Hour.Format("01-02 15") + ":00"
	}
	return b.Hour.Format("15") + ":00"
}

// hourLabels labels buckets by hour, adding the date when they span more than
// one day and the zone when a DST change repeats an hour
func hourLabels(buckets []stats.HourBucket) []string {
	withDate := false
	for _, b := range buckets[min(1, len(buckets)):] {
		y, d := b.Hour.Year(), b.Hour.YearDay()
		if y != buckets[0].Hour.Year() || d != buckets[0].Hour.YearDay() {
			withDate = true
			break
		}
	}

	labels := make([]string, len(buckets))
	for i, b := range buckets {
		labels[i] = HourLabel(b, withDate)
	}
	for i := 1; i < len(labels); i++ {
		if labels[i] == labels[i-1] {
			labels[i-1] += " " + buckets[i-1].Hour.Format("MST")
			labels[i] += " " + buckets[i].Hour.Format("MST")
		}
	}
	return labels
}

// Line builds a line chart with one label per hour bucket and one dataset
// per series, series ordered by name.
func Line(buckets []stats.HourBucket, theme Theme) Chart {
	c := newChart(TypeLine, theme)
	p := PaletteFor(c.Theme)

	seen := make(map[string]bool)
	var series []string
	c.Labels = append(c.Labels, hourLabels(buckets)...)
	for _, b := range buckets {
		for name := range b.Counts {
			if !seen[name] {
				seen[name] = true
				series = append(series, name)
			}
		}
	}
	sort.Strings(series)

	for i, name := range series {
		data := make([]float64, len(buckets))
		for j, b := range buckets {
			data[j] = float64(b.Counts[name])
		}
		color := p.Color(i)
		c.Datasets = append(c.Datasets, Dataset{
			Label:           name,
			Data:            data,
			BackgroundColor: []string{color},
			BorderColor:     color,
		})
	}
	return c
}

// Bar builds a bar chart from a ranking, one bar per entity
func Bar(ranked []stats.Ranked, metric string, theme Theme) Chart {
	c := newChart(TypeBar, theme)
	p := PaletteFor(c.Theme)

	data := make([]float64, len(ranked))
	for i, r := range ranked {
		c.Labels = append(c.Labels, r.Entity)
		data[i] = r.Value
	}
	c.Datasets = append(c.Datasets, Dataset{
		Label:           metric,
		Data:            data,
		BackgroundColor: []string{p.Color(0)},
		BorderColor:     p.Color(0),
	})
	return c
}

// Doughnut builds a doughnut chart with one coloured slice per count
func Doughnut(counts []stats.Count, label string, theme Theme) Chart {
	c := newChart(TypeDoughnut, theme)
	p := PaletteFor(c.Theme)

	data := make([]float64, len(counts))
	for i, n := range counts {
		c.Labels = append(c.Labels, n.Label)
		data[i] = float64(n.Count)
	}
	c.Datasets = append(c.Datasets, Dataset{
		Label:           label,
		Data:            data,
		BackgroundColor: p.colors(len(counts)),
	})
	return c
}
