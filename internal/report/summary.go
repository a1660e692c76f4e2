package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/psantana5/regtimer/pkg/stopwatch"
)

// LabelStats aggregates one label across several runs
type LabelStats struct {
	Label   string  `json:"label" yaml:"label"`
	Samples int     `json:"samples" yaml:"samples"`
	Min     float64 `json:"min" yaml:"min"`
	Mean    float64 `json:"mean" yaml:"mean"`
	Max     float64 `json:"max" yaml:"max"`
	Total   float64 `json:"total" yaml:"total"`
}

// Summarize aggregates measurements per label across completed results,
// ordered by label. Child-reported timings are included under their own
// labels. Failed or interrupted runs are left out.
func Summarize(results []*Result) []LabelStats {
	byLabel := make(map[string]*LabelStats)
	add := func(ms []stopwatch.Measurement) {
		for _, m := range ms {
			s, ok := byLabel[m.Label]
			if !ok {
				s = &LabelStats{Label: m.Label, Min: math.Inf(1), Max: math.Inf(-1)}
				byLabel[m.Label] = s
			}
			s.Samples++
			s.Total += m.Seconds
			s.Min = math.Min(s.Min, m.Seconds)
			s.Max = math.Max(s.Max, m.Seconds)
		}
	}
	for _, r := range results {
		if !r.Completed {
			continue
		}
		add(r.Measurements)
		add(r.Reported)
	}

	out := make([]LabelStats, 0, len(byLabel))
	for _, s := range byLabel {
		s.Mean = s.Total / float64(s.Samples)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// WriteSummaryTable prints per-label statistics
func WriteSummaryTable(w io.Writer, stats []LabelStats) error {
	table := tablewriter.NewWriter(w)
	table.Header("Label", "Samples", "Min", "Mean", "Max")

	for _, s := range stats {
		table.Append(
			s.Label,
			fmt.Sprintf("%d", s.Samples),
			stopwatch.FormatSeconds(s.Min),
			stopwatch.FormatSeconds(s.Mean),
			stopwatch.FormatSeconds(s.Max),
		)
	}
	return table.Render()
}
