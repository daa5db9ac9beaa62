package fixtures

import (
	"fmt"
	"sort"

	"github.com/karva-go/karva/pkg/alg/levenshtein"
	"github.com/karva-go/karva/pkg/toposort"
)

// Scopes is a lookup of declared fixtures visible at one nesting level
// (a module, or a package's configuration module), keyed by bare name.
type Scopes map[string]*FixtureDef

// BuiltIns supplies the runner's built-in fixtures (request, tmp_path,
// monkeypatch, capfd, ...), searched last per spec.md §4.1.
type BuiltIns map[string]*FixtureDef

// Resolver normalizes FixtureDefs visible from a call site into a shared DAG
// of *NormalizedFixture, with cycle detection and scope-ordering validation.
// A Resolver instance is scoped to a single discovery run: normalized nodes
// are cached by qualified name so repeated resolutions of the same fixture
// share one DAG node.
type Resolver struct {
	builtins BuiltIns
	cache    map[QualifiedName]*NormalizedFixture
}

// NewResolver creates a Resolver over the given built-in fixture set.
func NewResolver(builtins BuiltIns) *Resolver {
	return &Resolver{
		builtins: builtins,
		cache:    make(map[QualifiedName]*NormalizedFixture),
	}
}

// lookup finds the nearest-wins FixtureDef for name. scopeChain is
// innermost-first: typically [module, ancestor package N, ..., root
// package]. Built-ins are consulted last.
func lookup(name string, scopeChain []Scopes, builtins BuiltIns) (*FixtureDef, bool) {
	for _, scope := range scopeChain {
		if def, ok := scope[name]; ok {
			return def, true
		}
	}

	if def, ok := builtins[name]; ok {
		return def, true
	}

	return nil, false
}

// Resolve normalizes the fixtures referenced by paramNames, as seen from a
// call site (a test or another fixture) identified by callSite, searching
// scopeChain innermost-first. Unresolved names are simply omitted from the
// result (they may be satisfied by a parametrize row instead); the caller
// decides whether an omission is fatal at invocation time via MissingFixtureError.
func (r *Resolver) Resolve(
	callSite QualifiedName,
	paramNames []string,
	scopeChain []Scopes,
) ([]*NormalizedFixture, []string, error) {
	var (
		resolved []*NormalizedFixture
		missing  []string
	)

	visiting := map[QualifiedName]bool{callSite: true}

	for _, name := range paramNames {
		def, ok := lookup(name, scopeChain, r.builtins)
		if !ok {
			missing = append(missing, name)

			continue
		}

		nf, err := r.normalize(def, scopeChain, visiting)
		if err != nil {
			return nil, nil, err
		}

		resolved = append(resolved, nf)
	}

	return resolved, missing, nil
}

// normalize recursively resolves def's own dependencies, producing (or
// returning the cached) *NormalizedFixture. visiting tracks qualified names
// in progress on the current recursive descent, for cycle detection.
func (r *Resolver) normalize(
	def *FixtureDef,
	scopeChain []Scopes,
	visiting map[QualifiedName]bool,
) (*NormalizedFixture, error) {
	if cached, ok := r.cache[def.Qualified]; ok {
		return cached, nil
	}

	if visiting[def.Qualified] {
		return nil, &CycleError{Cycle: cycleFrom(visiting, def.Qualified)}
	}

	visiting[def.Qualified] = true
	defer delete(visiting, def.Qualified)

	deps := make([]*NormalizedFixture, 0, len(def.Params))

	for _, name := range def.Params {
		depDef, ok := lookup(name, scopeChain, r.builtins)
		if !ok {
			// Deferred: may be satisfied by a parametrize row at call time.
			continue
		}

		depNF, err := r.normalize(depDef, scopeChain, visiting)
		if err != nil {
			return nil, err
		}

		if !def.Scope.atLeast(depNF.Scope) {
			return nil, &ScopeViolationError{
				Fixture:  def.Qualified,
				FixScope: def.Scope,
				DepName:  depNF.Qualified,
				DepScope: depNF.Scope,
			}
		}

		deps = append(deps, depNF)
	}

	nf := &NormalizedFixture{
		Kind:        KindUserDefined,
		Qualified:   def.Qualified,
		Deps:        deps,
		Scope:       def.Scope,
		IsGenerator: def.IsGenerator,
		IsAsync:     def.IsAsync,
		Callable:    def.Callable,
		Tags:        def.Tags,
	}

	if def.Callable == nil {
		nf.Kind = KindBuiltIn
		nf.BuiltInFinalizer = def.FinalizerFn
	}

	r.cache[def.Qualified] = nf

	return nf, nil
}

// cycleFrom renders the in-progress visiting set plus the re-entered name
// into a deterministic cycle trail: the re-entered name first and last, and
// the other in-progress names between them sorted by String, since visiting
// does not record the order of the descent.
func cycleFrom(visiting map[QualifiedName]bool, reentered QualifiedName) []QualifiedName {
	rest := make([]QualifiedName, 0, len(visiting))
	for q := range visiting {
		if q != reentered {
			rest = append(rest, q)
		}
	}

	sort.Slice(rest, func(i, j int) bool { return rest[i].String() < rest[j].String() })

	names := make([]QualifiedName, 0, len(rest)+2)
	names = append(names, reentered)
	names = append(names, rest...)

	return append(names, reentered)
}

// ValidateDAG independently re-verifies acyclicity of a resolved fixture set
// using pkg/toposort, as a defense-in-depth check alongside the recursive
// cycle detection in normalize (e.g. after builtins are spliced in by a
// caller that bypassed Resolve).
func ValidateDAG(roots []*NormalizedFixture) error {
	g := toposort.NewGraph()

	var visit func(nf *NormalizedFixture, seen map[QualifiedName]bool)

	visit = func(nf *NormalizedFixture, seen map[QualifiedName]bool) {
		if seen[nf.Qualified] {
			return
		}

		seen[nf.Qualified] = true

		g.AddNode(nf.Qualified.String())

		for _, dep := range nf.Deps {
			g.AddNode(dep.Qualified.String())
			g.AddEdge(nf.Qualified.String(), dep.Qualified.String())
			visit(dep, seen)
		}
	}

	seen := make(map[QualifiedName]bool)
	for _, root := range roots {
		visit(root, seen)
	}

	if _, ok := g.Toposort(); !ok {
		return fmt.Errorf("%w: cycle present among resolved fixtures", ErrCycle)
	}

	return nil
}

// SuggestName returns the closest known fixture name to a missing one, for a
// "did you mean" diagnostic hint, or "" if nothing is close enough.
func SuggestName(missing string, known []string) string {
	const maxDistance = 3

	best := ""
	bestDist := maxDistance + 1
	ctx := &levenshtein.Context{}

	for _, name := range known {
		dist := ctx.Distance(missing, name)
		if dist < bestDist {
			bestDist = dist
			best = name
		}
	}

	if bestDist > maxDistance {
		return ""
	}

	return best
}
