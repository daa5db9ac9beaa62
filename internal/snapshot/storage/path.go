package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrTooManyUnnamed is returned by NameBuilder.Next when a test writes more
// than one unnamed snapshot without allow_duplicates or an explicit name,
// per spec.md §4.7.
var ErrTooManyUnnamed = errors.New("storage: too many unnamed snapshots for this test; use name= or snapshot_settings(allow_duplicates=True)")

const (
	snapshotsDirName = "snapshots"
	snapExt          = ".snap"
	pendingExt       = ".snap.new"
)

// SnapshotsDir returns the directory a test file's snapshots live in, per
// spec.md §4.5: "tests/foo/test_bar.py" -> "tests/foo/snapshots/".
func SnapshotsDir(testFile string) string {
	return filepath.Join(filepath.Dir(testFile), snapshotsDirName)
}

// ModuleStem returns the filename component used in a snapshot's basename:
// "test_bar.py" -> "test_bar".
func ModuleStem(testFile string) string {
	base := filepath.Base(testFile)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SanitizeName replaces "::" with "__" for filesystem safety, per spec.md
// §4.5's directory-layout rule.
func SanitizeName(name string) string {
	return strings.ReplaceAll(name, "::", "__")
}

// Basename builds "<module_stem>__<snapshot_name>" (without extension).
func Basename(testFile, snapshotName string) string {
	return ModuleStem(testFile) + "__" + SanitizeName(snapshotName)
}

// SnapPath returns the committed ".snap" path for a given test file and
// snapshot name.
func SnapPath(testFile, snapshotName string) string {
	return filepath.Join(SnapshotsDir(testFile), Basename(testFile, snapshotName)+snapExt)
}

// PendingPath returns the ".snap.new" path a failed comparison or first-time
// write lands in when not in update mode.
func PendingPath(testFile, snapshotName string) string {
	return filepath.Join(SnapshotsDir(testFile), Basename(testFile, snapshotName)+pendingExt)
}

// NameBuilder tracks the per-test counters spec.md §4.5's "Snapshot name"
// rule needs: a bare unnamed snapshot, or -0/-1/... under allow_duplicates,
// or --<name> when explicit, interleaved with the test's parametrize suffix.
type NameBuilder struct {
	TestName        string // includes parameter suffix "(x=1)" if parametrized, without trailing paren content split out
	AllowDuplicates bool

	counter int
}

// Next returns the snapshot name for the next assert_snapshot call in this
// test, given an optional explicit name. params is the already-rendered
// parametrize suffix (e.g. "(x=1)"), or "" for a non-parametrized test.
func (b *NameBuilder) Next(explicitName, params string) (string, error) {
	base, existingParams := splitParams(b.TestName)
	if params == "" {
		params = existingParams
	}

	defer func() { b.counter++ }()

	switch {
	case explicitName != "":
		return base + "--" + explicitName + params, nil
	case b.AllowDuplicates:
		return fmt.Sprintf("%s-%d%s", base, b.counter, params), nil
	case b.counter > 0:
		return "", ErrTooManyUnnamed
	default:
		return base + params, nil
	}
}

// splitParams separates a test name like "test_foo(x=1)" into its base and
// parenthesized parameter suffix.
func splitParams(testName string) (base, params string) {
	if i := strings.IndexByte(testName, '('); i >= 0 {
		return testName[:i], testName[i:]
	}

	return testName, ""
}
