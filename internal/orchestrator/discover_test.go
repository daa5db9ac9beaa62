package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karva-go/karva/internal/cache"
	"github.com/karva-go/karva/internal/discovery"
	"github.com/karva-go/karva/internal/fixtures"
	"github.com/karva-go/karva/internal/orchestrator"
)

func qn(module, name string) fixtures.QualifiedName {
	return fixtures.QualifiedName{ModulePath: module, Name: name}
}

func TestCollectFileWeights_OneWeightPerModuleWithTests(t *testing.T) {
	t.Parallel()

	tree := &discovery.Tree{Root: &discovery.Package{
		Modules: map[string]*discovery.Module{
			"test_a": {
				File:  "tests/test_a.py",
				Tests: []*fixtures.TestDef{{Qualified: qn("test_a", "test_one")}, {Qualified: qn("test_a", "test_two")}},
			},
			"conftest": {
				File:     "tests/conftest.py",
				Fixtures: fixtures.Scopes{},
			},
		},
		Packages: map[string]*discovery.Package{
			"sub": {
				Modules: map[string]*discovery.Module{
					"test_b": {
						File:  "tests/sub/test_b.py",
						Tests: []*fixtures.TestDef{{Qualified: qn("test_b", "test_three")}},
					},
				},
				Packages: map[string]*discovery.Package{},
			},
		},
	}}

	history := cache.NewDurationCache(0)
	history.Put("test_a::test_one", cache.Duration{Seconds: 2})

	weights := orchestrator.CollectFileWeights(tree, history, 0.5, "tests")
	require.Len(t, weights, 2)

	byPath := make(map[string]orchestrator.FileWeight, len(weights))
	for _, w := range weights {
		byPath[w.Path] = w
	}

	a, ok := byPath["tests/test_a.py"]
	require.True(t, ok)
	assert.InDelta(t, 2.5, a.Seconds, 0.0001) // 2 (observed) + 0.5 (fallback for test_two)
	assert.ElementsMatch(t, []string{"test_a::test_one", "test_a::test_two"}, a.Tests)
	assert.Equal(t, "tests", a.Root)

	b, ok := byPath["tests/sub/test_b.py"]
	require.True(t, ok)
	assert.InDelta(t, 0.5, b.Seconds, 0.0001)
}

func TestCollectFileWeights_SkipsModulesWithNoTests(t *testing.T) {
	t.Parallel()

	tree := &discovery.Tree{Root: &discovery.Package{
		Modules: map[string]*discovery.Module{
			"conftest": {File: "tests/conftest.py"},
		},
		Packages: map[string]*discovery.Package{},
	}}

	weights := orchestrator.CollectFileWeights(tree, cache.NewDurationCache(0), 1, "tests")
	assert.Empty(t, weights)
}
