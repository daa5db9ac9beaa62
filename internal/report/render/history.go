// Package render is the supplemental --history-chart surface: it charts an
// internal/cache.DurationCache snapshot with go-echarts/go-echarts/v2, the
// same library the teacher's internal/analyzers/imports/plot.go uses to
// chart per-developer import usage, so a `karva test --history-chart`
// invocation leaves behind an HTML file showing which tests dominate the
// suite's wall-clock time.
package render

import (
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/karva-go/karva/internal/cache"
)

const (
	chartWidth  = "100%"
	chartHeight = "600px"
	xAxisRotate = 60

	// topN bounds the bar chart to the slowest tests; charting every test in
	// a large suite produces an unreadable, unusably wide axis.
	topN = 30
)

// HistoryChart renders the topN slowest qualified tests in snapshot as a bar
// chart of observed mean duration (seconds) and writes the resulting HTML
// page to w.
func HistoryChart(w io.Writer, snapshot map[string]cache.Duration) error {
	type entry struct {
		name     string
		duration cache.Duration
	}

	entries := make([]entry, 0, len(snapshot))
	for name, d := range snapshot {
		entries = append(entries, entry{name: name, duration: d})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].duration.Seconds > entries[j].duration.Seconds
	})

	if len(entries) > topN {
		entries = entries[:topN]
	}

	labels := make([]string, len(entries))
	data := make([]opts.BarData, len(entries))

	for i, e := range entries {
		labels[i] = e.name
		data[i] = opts.BarData{Value: e.duration.Seconds}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Slowest tests (duration history)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate, Interval: "0"},
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Seconds"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("Mean duration", data)

	return bar.Render(w)
}
