package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// InlineRewriter splices a new literal into an inline snapshot call, per
// spec.md §4.6. internal/snapshot/inline provides the concrete
// implementation; storage only depends on this narrow interface so the
// accept workflow doesn't need to import the rewriter's scanning internals.
type InlineRewriter interface {
	Rewrite(sourcePath string, hintLine int, functionName string, newLiteral string) error
}

// PendingSnapshot is a SnapshotFile written to "<target>.new", awaiting
// accept or reject, per spec.md §3.
type PendingSnapshot struct {
	NewPath  string
	SnapPath string
	Meta     SnapshotFile
}

// ListPending walks roots for ".snap.new" files, filtered to absolute-path
// prefix matches against filters (empty filters match everything, per
// spec.md §4.5's "Filters are absolute-path prefix matches").
func ListPending(roots []string, filters []string) ([]PendingSnapshot, error) {
	var pending []PendingSnapshot

	err := walkMatching(roots, pendingExt, filters, func(path string) error {
		meta, err := ReadFile(path)
		if err != nil {
			return fmt.Errorf("storage: reading pending snapshot %s: %w", path, err)
		}

		pending = append(pending, PendingSnapshot{
			NewPath:  path,
			SnapPath: strings.TrimSuffix(path, pendingExt) + snapExt,
			Meta:     meta,
		})

		return nil
	})

	return pending, err
}

// Accept commits one pending snapshot: for an inline snapshot, it rewrites
// the source literal via rewriter and discards the .new; otherwise it
// renames .new -> .snap directly, per spec.md §4.5's Accept rule.
func Accept(p PendingSnapshot, rewriter InlineRewriter) error {
	if p.Meta.IsInline() {
		fn := functionNameFromSource(p.Meta.Source)

		if err := rewriter.Rewrite(p.Meta.InlineSource, p.Meta.InlineLine, fn, p.Meta.Content); err != nil {
			return fmt.Errorf("storage: rewriting inline snapshot: %w", err)
		}

		return os.Remove(p.NewPath)
	}

	if err := os.MkdirAll(filepath.Dir(p.SnapPath), 0o755); err != nil {
		return fmt.Errorf("storage: creating snapshot dir: %w", err)
	}

	if err := os.Rename(p.NewPath, p.SnapPath); err != nil {
		return fmt.Errorf("storage: accepting %s: %w", p.NewPath, err)
	}

	return nil
}

// Reject discards a pending snapshot without committing it, per spec.md
// §4.5's Reject rule.
func Reject(p PendingSnapshot) error {
	if err := os.Remove(p.NewPath); err != nil {
		return fmt.Errorf("storage: rejecting %s: %w", p.NewPath, err)
	}

	return nil
}

// Prune reports committed ".snap" files under roots whose source file no
// longer exists (resolved relative to projectRoot), or whose function name
// is no longer present in that source file. Per spec.md §4.5, this check is
// purely syntactic (a substring scan for "def <name>(" / "async def
// <name>("), so callers must warn users the result may be inaccurate.
func Prune(roots []string, projectRoot string) ([]string, error) {
	var stale []string

	err := walkMatching(roots, snapExt, nil, func(path string) error {
		meta, err := ReadFile(path)
		if err != nil {
			return fmt.Errorf("storage: reading %s: %w", path, err)
		}

		sourceFile, _, _, err := ParseSource(meta.Source)
		if err != nil {
			return err
		}

		abs := filepath.Join(projectRoot, sourceFile)

		data, err := os.ReadFile(abs)
		if err != nil {
			if os.IsNotExist(err) {
				stale = append(stale, path)

				return nil
			}

			return fmt.Errorf("storage: reading source %s: %w", abs, err)
		}

		fn := functionNameFromSource(meta.Source)
		if fn != "" && !containsFunctionDef(string(data), fn) {
			stale = append(stale, path)
		}

		return nil
	})

	return stale, err
}

// Delete unconditionally removes every ".snap"/".snap.new" file under roots
// matching filters, per spec.md §4.5's Delete rule.
func Delete(roots []string, filters []string) error {
	var toRemove []string

	for _, ext := range []string{snapExt, pendingExt} {
		err := walkMatching(roots, ext, filters, func(path string) error {
			toRemove = append(toRemove, path)

			return nil
		})
		if err != nil {
			return err
		}
	}

	for _, path := range toRemove {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("storage: deleting %s: %w", path, err)
		}
	}

	return nil
}

// ParseSource splits a SnapshotFile's "relative_file:lineno::test_name"
// header value into its components.
func ParseSource(source string) (file string, line int, testName string, err error) {
	filePart, rest, ok := strings.Cut(source, "::")
	if !ok {
		return "", 0, "", fmt.Errorf("storage: malformed source %q: missing \"::\"", source)
	}

	fileName, lineStr, ok := strings.Cut(filePart, ":")
	if !ok {
		return "", 0, "", fmt.Errorf("storage: malformed source %q: missing line number", source)
	}

	lineNo, err := strconv.Atoi(lineStr)
	if err != nil {
		return "", 0, "", fmt.Errorf("storage: parsing line number in %q: %w", source, err)
	}

	return fileName, lineNo, rest, nil
}

// functionNameFromSource strips a test name down to its bare function name,
// dropping any parametrize-suffix, numbering, or explicit-name suffix
// attached by the NameBuilder rules of spec.md §4.5.
func functionNameFromSource(source string) string {
	_, _, testName, err := ParseSource(source)
	if err != nil {
		return ""
	}

	base, _ := splitParams(testName)
	base, _, _ = strings.Cut(base, "--")

	if i := strings.LastIndexByte(base, '-'); i >= 0 {
		if _, err := strconv.Atoi(base[i+1:]); err == nil {
			base = base[:i]
		}
	}

	return base
}

func containsFunctionDef(source, functionName string) bool {
	return strings.Contains(source, "def "+functionName+"(") ||
		strings.Contains(source, "async def "+functionName+"(")
}

// walkMatching walks each root for files with the given extension, applying
// visit to those whose absolute path matches any of filters' absolute-path
// prefixes (or all files, if filters is empty).
func walkMatching(roots []string, ext string, filters []string, visit func(path string) error) error {
	absFilters := make([]string, 0, len(filters))

	for _, f := range filters {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("storage: resolving filter %s: %w", f, err)
		}

		absFilters = append(absFilters, abs)
	}

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() || !strings.HasSuffix(path, ext) {
				return nil
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("storage: resolving path %s: %w", path, err)
			}

			if len(absFilters) > 0 && !matchesAnyPrefix(abs, absFilters) {
				return nil
			}

			return visit(path)
		})
		if err != nil {
			return fmt.Errorf("storage: walking %s: %w", root, err)
		}
	}

	return nil
}

func matchesAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
