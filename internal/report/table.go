// Package report renders an orchestrator.Summary and snapshot workflow
// listings for the CLI, per spec.md §6's "full"/"concise" output formats.
// It carries the domain stack's presentation libraries: fatih/color for
// pass/fail coloring, jedib0t/go-pretty/v6 for tabular layout, and
// dustin/go-humanize for large counts and byte sizes, following the same
// idioms the teacher's internal/analyzers/common/formatter.go and
// cmd/uast/validate.go use for its own result rendering.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/karva-go/karva/internal/orchestrator"
)

// Format is one of the two output formats spec.md §6 names for `karva test`.
type Format int

const (
	Full Format = iota
	Concise
)

var (
	passColor = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	skipColor = color.New(color.FgYellow)
)

// outcomeColor returns the color.Color matching a TestRecord.Outcome string,
// falling back to no styling for outcomes that aren't pass/fail/skip.
func outcomeColor(outcome string) *color.Color {
	switch outcome {
	case "passed", "expected_failure":
		return passColor
	case "failed", "unexpected_success":
		return failColor
	case "skipped":
		return skipColor
	default:
		return color.New()
	}
}

// RenderSummary writes summary to w as a go-pretty table, one row per test
// in Full format, collapsed to only non-passing tests in Concise format,
// followed by a colorized totals line.
func RenderSummary(w io.Writer, summary orchestrator.Summary, format Format) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendHeader(table.Row{"Test", "Outcome", "Elapsed", "Retries"})

	for _, rec := range summary.Tests {
		if format == Concise && (rec.Outcome == "passed" || rec.Outcome == "expected_failure") {
			continue
		}

		c := outcomeColor(rec.Outcome)
		tbl.AppendRow(table.Row{
			rec.ID,
			c.Sprint(rec.Outcome),
			time.Duration(rec.ElapsedSecs * float64(time.Second)).Round(time.Millisecond),
			rec.Retries,
		})

		for _, d := range rec.Diagnostics {
			tbl.AppendRow(table.Row{"", fmt.Sprintf("  %s: %s", d.Kind, d.Message), "", ""})
		}
	}

	tbl.AppendFooter(table.Row{"Total", humanize.Comma(int64(summary.Total)), summary.Elapsed.Round(time.Millisecond), ""})
	tbl.Render()

	fmt.Fprintf(w, "\n%s passed, %s failed, %s skipped across %d worker(s) in %s\n",
		passColor.Sprint(humanize.Comma(int64(summary.Passed))),
		failColor.Sprint(humanize.Comma(int64(summary.Failed))),
		skipColor.Sprint(humanize.Comma(int64(summary.Skipped))),
		summary.WorkerCount,
		summary.Elapsed.Round(time.Millisecond),
	)
}
