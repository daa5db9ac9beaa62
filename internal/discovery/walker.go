package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/karva-go/karva/internal/discovery/pyast"
	"github.com/karva-go/karva/internal/fixtures"
	"github.com/karva-go/karva/pkg/textutil"
)

const (
	// guestLanguage is the one language this module's discovery adapter
	// recognizes; see SPEC_FULL.md's intro on the Python-shaped reference
	// guest language.
	guestLanguage = "Python"

	// configModuleStem is the conventional sibling file contributing
	// fixtures to its containing package and all descendants.
	configModuleStem = "conftest"

	fixtureDecorator     = "fixture"
	parametrizeDecorator = "parametrize"
	skipDecorator        = "skip"
	expectFailDecorator  = "xfail"
)

// Options configures a Walk.
type Options struct {
	// TestPrefix is the conventional test-function name prefix (default
	// "test_").
	TestPrefix string
	// NoIgnore disables .gitignore-aware filtering — left to the caller's
	// external collaborator; Walk itself never reads .gitignore files, per
	// spec.md's Purpose & Scope. When false, callers are expected to have
	// already pruned ignored paths from the root they hand to Walk.
	NoIgnore bool
	// TryImportFixtures additionally parses configuration modules with no
	// tests of their own so their fixtures are still discovered — a no-op
	// here since ConfigModule is always parsed; retained for parity with
	// the CLI flag and to let callers short-circuit the work when unset.
	TryImportFixtures bool
}

// Walk discovers the package/module tree rooted at root, per spec.md §3.
func Walk(ctx context.Context, root string, opts Options) (*Tree, error) {
	extractor, err := pyast.New()
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	prefix := opts.TestPrefix
	if prefix == "" {
		prefix = "test_"
	}

	pkg, err := walkDir(ctx, root, root, extractor, prefix)
	if err != nil {
		return nil, err
	}

	return &Tree{Root: pkg}, nil
}

// WalkFile discovers a single assigned file plus the chain of ancestor
// configuration modules ("conftest") from root down to the file's
// directory, without re-discovering any sibling module. This is the entry
// point a worker process uses to re-discover its own orchestrator.Assignment
// paths: calling Walk on root's whole subtree once per assigned file would
// re-import every sibling module the other workers already own, breaking
// the invariant that each worker runs only its assigned subset.
func WalkFile(ctx context.Context, root, file string, opts Options) (*Tree, error) {
	extractor, err := pyast.New()
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	prefix := opts.TestPrefix
	if prefix == "" {
		prefix = "test_"
	}

	rel, err := filepath.Rel(root, file)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolving %s relative to %s: %w", file, root, err)
	}

	var segments []string
	if dir := filepath.Dir(rel); dir != "." {
		segments = strings.Split(filepath.ToSlash(dir), "/")
	}

	rootPkg := &Package{
		Dir:      root,
		Modules:  make(map[string]*Module),
		Packages: make(map[string]*Package),
	}

	if err := attachConfigModule(ctx, root, root, rootPkg, extractor, prefix); err != nil {
		return nil, err
	}

	pkg, dir := rootPkg, root

	for _, seg := range segments {
		dir = filepath.Join(dir, seg)

		child := &Package{
			Path:     dottedPath(root, dir),
			Dir:      dir,
			Modules:  make(map[string]*Module),
			Packages: make(map[string]*Package),
		}

		if err := attachConfigModule(ctx, root, dir, child, extractor, prefix); err != nil {
			return nil, err
		}

		pkg.Packages[seg] = child
		pkg = child
	}

	mod, ok, err := tryBuildModule(ctx, root, filepath.Dir(file), filepath.Base(file), extractor, prefix)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("discovery: %s is not a supported guest-language source file", file)
	}

	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	if stem == configModuleStem {
		pkg.ConfigModule = mod
	} else {
		pkg.Modules[stem] = mod
	}

	return &Tree{Root: rootPkg}, nil
}

// attachConfigModule locates dir's conftest module, if any, and parses it
// into pkg.ConfigModule, without building a Module for any other file dir
// contains.
func attachConfigModule(ctx context.Context, projectRoot, dir string, pkg *Package, extractor *pyast.Extractor, prefix string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("discovery: reading %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if stem != configModuleStem {
			continue
		}

		mod, ok, err := tryBuildModule(ctx, projectRoot, dir, entry.Name(), extractor, prefix)
		if err != nil {
			return err
		}

		if ok {
			pkg.ConfigModule = mod
		}

		return nil
	}

	return nil
}

// tryBuildModule parses dir/name into a Module, applying the same
// binary/language/support filters walkDir applies to every entry it visits.
// ok is false (with a nil error) when name is filtered out rather than
// genuinely broken.
func tryBuildModule(ctx context.Context, projectRoot, dir, name string, extractor *pyast.Extractor, prefix string) (*Module, bool, error) {
	full := filepath.Join(dir, name)

	content, err := os.ReadFile(full)
	if err != nil {
		return nil, false, fmt.Errorf("discovery: reading %s: %w", full, err)
	}

	if textutil.IsBinary(content) {
		return nil, false, nil
	}

	if enry.GetLanguage(name, content) != guestLanguage {
		return nil, false, nil
	}

	if !extractor.Supports(name) {
		return nil, false, nil
	}

	mod, err := buildModule(ctx, projectRoot, full, extractor, prefix)
	if err != nil {
		return nil, false, err
	}

	return mod, true, nil
}

func walkDir(ctx context.Context, projectRoot, dir string, extractor *pyast.Extractor, prefix string) (*Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("discovery: reading %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	pkg := &Package{
		Path:     dottedPath(projectRoot, dir),
		Dir:      dir,
		Modules:  make(map[string]*Module),
		Packages: make(map[string]*Package),
	}

	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}

			child, err := walkDir(ctx, projectRoot, full, extractor, prefix)
			if err != nil {
				return nil, err
			}

			pkg.Packages[entry.Name()] = child

			continue
		}

		mod, ok, err := tryBuildModule(ctx, projectRoot, dir, entry.Name(), extractor, prefix)
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if stem == configModuleStem {
			pkg.ConfigModule = mod

			continue
		}

		pkg.Modules[stem] = mod
	}

	return pkg, nil
}

func buildModule(ctx context.Context, projectRoot, file string, extractor *pyast.Extractor, prefix string) (*Module, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("discovery: reading %s: %w", file, err)
	}

	funcs, err := extractor.Extract(ctx, file, content)
	if err != nil {
		return nil, fmt.Errorf("discovery: extracting %s: %w", file, err)
	}

	modPath := dottedModulePath(projectRoot, file)

	mod := &Module{
		Path:     modPath,
		File:     file,
		Fixtures: make(fixtures.Scopes),
	}

	for _, fn := range funcs {
		qn := fixtures.QualifiedName{ModulePath: modPath, Name: fn.Name}
		tags := tagsFromDecorators(fn.Decorators)

		if isFixture(fn.Decorators) {
			mod.Fixtures[fn.Name] = &fixtures.FixtureDef{
				Qualified:   qn,
				Params:      fn.Params,
				Scope:       fixtureScope(fn.Decorators),
				IsGenerator: fn.IsGenerator,
				IsAsync:     fn.IsAsync,
				AutoUse:     hasAutoUse(fn.Decorators),
				Tags:        tags,
			}

			continue
		}

		if strings.HasPrefix(fn.Name, prefix) {
			mod.Tests = append(mod.Tests, &fixtures.TestDef{
				Qualified: qn,
				Line:      fn.Line,
				Params:    fn.Params,
				Tags:      tags,
				IsAsync:   fn.IsAsync,
			})
		}
	}

	return mod, nil
}

func isFixture(decorators []pyast.Decorator) bool {
	for _, d := range decorators {
		if d.Name == fixtureDecorator {
			return true
		}
	}

	return false
}

func hasAutoUse(decorators []pyast.Decorator) bool {
	for _, d := range decorators {
		if d.Name != fixtureDecorator {
			continue
		}

		for _, arg := range d.RawArgs {
			if strings.Contains(arg, "autouse") && strings.Contains(arg, "True") {
				return true
			}
		}
	}

	return false
}

func fixtureScope(decorators []pyast.Decorator) fixtures.Scope {
	for _, d := range decorators {
		if d.Name != fixtureDecorator {
			continue
		}

		for _, arg := range d.RawArgs {
			switch {
			case strings.Contains(arg, `"module"`), strings.Contains(arg, `'module'`):
				return fixtures.Module
			case strings.Contains(arg, `"package"`), strings.Contains(arg, `'package'`):
				return fixtures.Package
			case strings.Contains(arg, `"session"`), strings.Contains(arg, `'session'`):
				return fixtures.Session
			}
		}
	}

	return fixtures.Function
}

func tagsFromDecorators(decorators []pyast.Decorator) fixtures.TagSet {
	var tags fixtures.TagSet

	for _, d := range decorators {
		switch d.Name {
		case skipDecorator:
			tags = append(tags, fixtures.Tag{Name: d.Name, Skip: &fixtures.SkipTag{Reason: joinArgs(d.RawArgs)}})
		case expectFailDecorator:
			tags = append(tags, fixtures.Tag{Name: d.Name, ExpectFail: &fixtures.ExpectFailTag{Reason: joinArgs(d.RawArgs)}})
		case parametrizeDecorator:
			// Row values require evaluating guest literals, which belongs to
			// the guest-embedding layer; discovery records the raw decorator
			// so internal/execution can bind rows once it has a guest.Value
			// constructor available.
			tags = append(tags, fixtures.Tag{Name: d.Name})
		case fixtureDecorator:
			// handled by isFixture/hasAutoUse/fixtureScope, not a test tag.
		default:
			tags = append(tags, fixtures.Tag{Name: d.Name})
		}
	}

	return tags
}

func joinArgs(args []string) string { return strings.Join(args, ", ") }

// dottedPath derives a package's dotted path from its directory, relative to
// the project root.
func dottedPath(projectRoot, dir string) string {
	rel, err := filepath.Rel(projectRoot, dir)
	if err != nil || rel == "." {
		return ""
	}

	return strings.ReplaceAll(rel, string(filepath.Separator), ".")
}

// dottedModulePath derives a module's dotted path from its file, relative to
// the project root, per spec.md §3's "Qualified name" definition.
func dottedModulePath(projectRoot, file string) string {
	rel, err := filepath.Rel(projectRoot, file)
	if err != nil {
		rel = file
	}

	rel = strings.TrimSuffix(rel, filepath.Ext(rel))

	return strings.ReplaceAll(rel, string(filepath.Separator), ".")
}
