package fixtures

import "github.com/karva-go/karva/pkg/alg/mapx"

// AutoUse returns one flat list of the auto-use fixtures visible from
// scopeChain (innermost-first), ordered scope by scope; nearest wins when two auto-use
// fixtures share a name — matching the named-fixture lookup rule in
// Resolve. Built-in fixtures are never auto-use. Within one scope level,
// fixtures are visited in sorted-name order for determinism.
func (r *Resolver) AutoUse(scopeChain []Scopes) ([]*NormalizedFixture, error) {
	seen := make(map[string]bool)

	var out []*NormalizedFixture

	visiting := map[QualifiedName]bool{}

	for _, scope := range scopeChain {
		names := mapx.SortedKeys(scope)

		for _, name := range names {
			def := scope[name]
			if !def.AutoUse || seen[name] {
				continue
			}

			seen[name] = true

			nf, err := r.normalize(def, scopeChain, visiting)
			if err != nil {
				return nil, err
			}

			out = append(out, nf)
		}
	}

	return out, nil
}
