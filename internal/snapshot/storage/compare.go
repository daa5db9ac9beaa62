package storage

import (
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Outcome classifies the result of one assert_snapshot compare/write cycle.
type Outcome int

const (
	// Pass means the snapshot matched (or update mode overwrote it).
	Pass Outcome = iota
	// WrittenNew means no committed snapshot existed and one was written
	// (update mode: the .snap itself; otherwise a pending .snap.new).
	WrittenNew
	// Mismatch means the snapshot existed, differed, and a .snap.new with
	// the new content was written alongside a diff diagnostic.
	Mismatch
)

// Result is the full outcome of CompareOrWrite, including the diff
// diagnostic spec.md §4.5 step 3 requires on a non-update mismatch.
type Result struct {
	Outcome Outcome
	Diff    string // populated only for Mismatch
}

// CompareOrWrite implements spec.md §4.5's four-step compare/write state
// machine for a single assert_snapshot(value) call. meta.Content is the
// already-filtered, serialized actual value; snapPath is the committed
// ".snap" location for this test+name.
func CompareOrWrite(snapPath string, meta SnapshotFile, updateMode bool) (Result, error) {
	existing, err := ReadFile(snapPath)

	switch {
	case err == nil:
		return compareExisting(snapPath, existing, meta, updateMode)
	case os.IsNotExist(err):
		return writeMissing(snapPath, meta, updateMode)
	default:
		return Result{}, err
	}
}

func compareExisting(snapPath string, existing, meta SnapshotFile, updateMode bool) (Result, error) {
	if TrimTrailing(existing.Content) == TrimTrailing(meta.Content) {
		return Result{Outcome: Pass}, nil
	}

	if updateMode {
		if err := WriteFile(snapPath, meta); err != nil {
			return Result{}, err
		}

		return Result{Outcome: Pass}, nil
	}

	diff := Diff(existing.Content, meta.Content)

	if err := WriteFile(newPathFor(snapPath), meta); err != nil {
		return Result{}, err
	}

	return Result{Outcome: Mismatch, Diff: diff}, nil
}

func writeMissing(snapPath string, meta SnapshotFile, updateMode bool) (Result, error) {
	target := newPathFor(snapPath)
	if updateMode {
		target = snapPath
	}

	if err := WriteFile(target, meta); err != nil {
		return Result{}, err
	}

	return Result{Outcome: WrittenNew}, nil
}

// newPathFor derives the ".snap.new" sibling of a ".snap" path.
func newPathFor(snapPath string) string {
	return strings.TrimSuffix(snapPath, snapExt) + pendingExt
}

// Diff renders a human-readable diff between the previously committed
// content and the newly observed content, following the teacher's
// diffmatchpatch idiom (diff, then DiffCleanupSemantic to merge fragments
// into human-legible chunks), rendered here with a unified-style +/- prefix
// per line rather than the library's inline change markers. Exported so
// internal/snapshot/api can render the same diagnostic for an inline
// snapshot's mismatch, which never has a ".snap" file for CompareOrWrite to
// run this on directly.
func Diff(oldContent, newContent string) string {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(oldContent, newContent, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder

	for _, d := range diffs {
		prefix := "  "

		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffEqual:
			prefix = "  "
		}

		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			fmt.Fprintf(&b, "%s%s\n", prefix, line)
		}
	}

	return b.String()
}
