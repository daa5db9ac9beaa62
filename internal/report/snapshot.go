package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/karva-go/karva/internal/snapshot/storage"
)

// RenderPending writes one row per pending snapshot (spec.md §4.5's
// "review" listing), showing the source it belongs to and whether it
// targets an inline literal or a standalone .snap file.
func RenderPending(w io.Writer, pending []storage.PendingSnapshot) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendHeader(table.Row{"Source", "Kind", "Path"})

	for _, p := range pending {
		kind := "file"
		if p.Meta.IsInline() {
			kind = "inline"
		}

		tbl.AppendRow(table.Row{p.Meta.Source, kind, p.NewPath})
	}

	tbl.AppendFooter(table.Row{"", "", fmt.Sprintf("%d pending", len(pending))})
	tbl.Render()
}

// RenderPrune writes the stale-snapshot paths Prune reported, with the
// mandatory accuracy warning spec.md §4.5 requires for this purely
// syntactic check.
func RenderPrune(w io.Writer, stale []string) {
	fmt.Fprintln(w, "warning: prune detection is syntactic and may flag snapshots that are still live")

	for _, path := range stale {
		fmt.Fprintln(w, path)
	}

	fmt.Fprintf(w, "%d stale snapshot(s)\n", len(stale))
}

// CacheDirSize reports the total on-disk size of cacheDir as a
// human-readable string formatted with dustin/go-humanize.
func CacheDirSize(cacheDir string) (string, error) {
	var total uint64

	err := filepath.WalkDir(cacheDir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return err
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		total += uint64(info.Size()) //nolint:gosec // file sizes are never negative.

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("report: measuring cache dir %s: %w", cacheDir, err)
	}

	return humanize.Bytes(total), nil
}
