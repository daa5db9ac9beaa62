package orchestrator

import (
	"github.com/karva-go/karva/internal/cache"
	"github.com/karva-go/karva/internal/discovery"
)

// CollectFileWeights flattens tree into one FileWeight per module file,
// looking up each contained test's historical duration in history (falling
// back to fallbackSeconds for tests never observed before), per spec.md
// §4.4's partitioning rule. Only module files with at least one test
// contribute a FileWeight; pure-fixture configuration modules are
// re-discovered by whichever worker owns the file(s) that import them,
// since fixtures themselves carry no independent duration. root is the
// discovery root tree was walked from, stamped onto every FileWeight so a
// worker can later re-discover just its assigned file via
// discovery.WalkFile instead of re-walking root's entire subtree.
func CollectFileWeights(tree *discovery.Tree, history *cache.DurationCache, fallbackSeconds float64, root string) []FileWeight {
	var weights []FileWeight

	var walk func(pkg *discovery.Package)

	walk = func(pkg *discovery.Package) {
		for _, mod := range pkg.Modules {
			if len(mod.Tests) == 0 {
				continue
			}

			names := make([]string, 0, len(mod.Tests))

			var total float64

			for _, test := range mod.Tests {
				name := test.Qualified.String()
				names = append(names, name)

				if d, ok := history.Get(name); ok {
					total += d.Seconds
				} else {
					total += fallbackSeconds
				}
			}

			weights = append(weights, FileWeight{Path: mod.File, Root: root, Tests: names, Seconds: total})
		}

		for _, child := range pkg.Packages {
			walk(child)
		}
	}

	walk(tree.Root)

	return weights
}
