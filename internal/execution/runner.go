package execution

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/karva-go/karva/internal/discovery"
	"github.com/karva-go/karva/internal/fixtures"
	"github.com/karva-go/karva/internal/guest"
	"github.com/karva-go/karva/internal/scopes"
	"github.com/karva-go/karva/pkg/alg/mapx"
	"github.com/karva-go/karva/pkg/observability"
)

// variantSpanPrefix names the per-test-variant span, mirroring the
// teacher's "mcp."-prefixed per-tool-call span naming.
const variantSpanPrefix = "execution.variant"

// Runner drives the nested scope execution loop of spec.md §4.2: session,
// then each package (depth-first), then each module, then each test's
// expanded variants. Scope caches are drained and cleared as each level's
// last member finishes, so module/package/session-scoped fixtures are torn
// down exactly once per span.
type Runner struct {
	Resolver *fixtures.Resolver
	Cache    *scopes.Cache
	Filter   *Filter
	Retries  int

	// StopCheck, when set, is polled between tests and between modules
	// (spec.md §4.4's fail-fast/shutdown polling points). When it returns
	// true, remaining variants are recorded as not-run rather than executed.
	StopCheck func() bool

	// Tracer, when set, opens one span per executed variant. Nil disables
	// tracing, matching the teacher's withTracing nil-tracer short-circuit.
	Tracer trace.Tracer

	// Metrics, when set, records one RED sample per executed variant. Nil
	// disables metrics, matching the teacher's withMetrics nil-metrics
	// short-circuit.
	Metrics *observability.REDMetrics
}

// NewRunner creates a Runner ready to execute one full session.
func NewRunner(builtins fixtures.BuiltIns, filter *Filter, retries int) *Runner {
	return &Runner{
		Resolver: fixtures.NewResolver(builtins),
		Cache:    scopes.New(),
		Filter:   filter,
		Retries:  retries,
	}
}

// Run executes every test discovered under tree and returns one Result per
// expanded TestVariant, in discovery order. Session-scope fixtures are
// drained once at the very end.
func (r *Runner) Run(ctx context.Context, tree *discovery.Tree) ([]Result, error) {
	var results []Result

	err := r.runPackage(ctx, tree.Root, nil, &results)

	diags := r.Cache.Drain(ctx, fixtures.Session)
	r.Cache.Clear(fixtures.Session)
	reportLeftoverDiagnostics(&results, diags)

	return results, err
}

// runPackage visits pkg's own modules (sorted for determinism), then its
// child packages, then drains and clears Package-scope fixtures belonging to
// pkg before returning to its parent.
func (r *Runner) runPackage(ctx context.Context, pkg *discovery.Package, ancestors []fixtures.Scopes, results *[]Result) error {
	chain := append([]fixtures.Scopes{pkg.ConfigFixtures()}, ancestors...)

	modNames := mapx.SortedKeys(pkg.Modules)

	for _, name := range modNames {
		if err := r.runModule(ctx, pkg.Modules[name], chain, results); err != nil {
			return err
		}
	}

	pkgNames := mapx.SortedKeys(pkg.Packages)

	for _, name := range pkgNames {
		if err := r.runPackage(ctx, pkg.Packages[name], chain, results); err != nil {
			return err
		}
	}

	diags := r.Cache.Drain(ctx, fixtures.Package)
	r.Cache.Clear(fixtures.Package)
	reportLeftoverDiagnostics(results, diags)

	return nil
}

// runModule expands and runs every test in mod, then drains and clears
// Module-scope fixtures before returning.
func (r *Runner) runModule(ctx context.Context, mod *discovery.Module, ancestors []fixtures.Scopes, results *[]Result) error {
	chain := append([]fixtures.Scopes{mod.Fixtures}, ancestors...)

	for _, test := range mod.Tests {
		if r.stopped() {
			*results = append(*results, Result{
				Variant: &TestVariant{Test: test, ID: test.Qualified.Name},
				Outcome: Skipped,
				Diagnostics: []Diagnostic{{
					Kind:      "not_run",
					Message:   "run stopped before this test was scheduled",
					Qualified: test.Qualified,
				}},
			})

			continue
		}

		variants, err := Expand(test, r.Resolver, chain)
		if err != nil {
			return err
		}

		for _, variant := range variants {
			*results = append(*results, r.runVariant(ctx, variant))
		}
	}

	diags := r.Cache.Drain(ctx, fixtures.Module)
	r.Cache.Clear(fixtures.Module)
	reportLeftoverDiagnostics(results, diags)

	return nil
}

// runVariant opens an optional span and records an optional RED metrics
// sample around runVariantBody, following the teacher's withTracing/
// withMetrics decorator idiom: both are no-ops when their respective field
// is nil, so instrumentation never changes behavior, only observability.
func (r *Runner) runVariant(ctx context.Context, variant *TestVariant) Result {
	started := time.Now()

	if r.Tracer != nil {
		var span trace.Span

		ctx, span = r.Tracer.Start(ctx, variantSpanPrefix,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attribute.String("karva.test", variant.ID)),
		)
		defer span.End()
	}

	if r.Metrics != nil {
		defer r.Metrics.TrackInflight(ctx, variantSpanPrefix)()
	}

	result := r.runVariantBody(ctx, variant)

	if r.Metrics != nil {
		status := "ok"
		if result.Outcome == Failed || result.Outcome == UnexpectedSuccess {
			status = "error"
		}

		r.Metrics.RecordRequest(ctx, variantSpanPrefix, status, time.Since(started))
	}

	return result
}

// runVariantBody handles one TestVariant end to end: pre-skip checks, the
// tag/name filter, fixture setup, retried body invocation, classification,
// and Function-scope teardown.
func (r *Runner) runVariantBody(ctx context.Context, variant *TestVariant) Result {
	if diag, skip := preSkip(variant); skip {
		return Result{Variant: variant, Outcome: Skipped, Diagnostics: []Diagnostic{*diag}}
	}

	if r.Filter != nil && !r.Filter.Match(variant, CombinedTagNames(variant.Test, variant)) {
		return Result{Variant: variant, Outcome: Skipped}
	}

	args := make(guest.KWArgs, len(variant.Params)+len(variant.FixtureDeps))

	for k, v := range variant.Params {
		args[k] = v
	}

	for _, dep := range variant.AutoUse {
		if _, err := Setup(ctx, r.Cache, dep); err != nil {
			return Result{Variant: variant, Outcome: Failed, Diagnostics: []Diagnostic{
				{Kind: "fixture_error", Message: err.Error(), Qualified: variant.Test.Qualified},
			}}
		}
	}

	for _, dep := range variant.FixtureDeps {
		v, err := Setup(ctx, r.Cache, dep)
		if err != nil {
			out, diags := classify(variant, err)

			return r.teardownFunctionScope(ctx, variant, out, diags, 0)
		}

		args[dep.Name()] = v
	}

	var (
		bodyErr error
		attempt int
	)

	started := time.Now()

	for {
		bodyErr = invoke(ctx, variant, args)
		if bodyErr == nil || attempt >= r.Retries {
			break
		}

		attempt++
	}

	elapsed := time.Since(started).Seconds()

	outcome, diags := classify(variant, bodyErr)

	result := r.teardownFunctionScope(ctx, variant, outcome, diags, attempt)
	result.ElapsedSecs = elapsed

	return result
}

func (r *Runner) stopped() bool {
	return r.StopCheck != nil && r.StopCheck()
}

// invoke calls the test body, awaiting it first if it's an async function.
func invoke(ctx context.Context, variant *TestVariant, args guest.KWArgs) error {
	result, err := variant.Test.Callable.Call(ctx, args)
	if err != nil {
		return err
	}

	if !variant.Test.IsAsync {
		return nil
	}

	aw, err := guest.AsAwaitable(result)
	if err != nil {
		return err
	}

	_, err = aw.Await(ctx)

	return err
}

// teardownFunctionScope drains and clears Function-scope fixtures set up for
// this single variant, folding any teardown diagnostics into the Result
// without changing its Outcome (spec.md §4.3).
func (r *Runner) teardownFunctionScope(ctx context.Context, variant *TestVariant, outcome Outcome, diags []Diagnostic, retries int) Result {
	teardown := r.Cache.Drain(ctx, fixtures.Function)
	r.Cache.Clear(fixtures.Function)

	for _, d := range teardown {
		diags = append(diags, Diagnostic{Kind: "teardown", Message: d.Message, Qualified: d.Fixture})
	}

	return Result{Variant: variant, Outcome: outcome, Diagnostics: diags, Retries: retries}
}

// reportLeftoverDiagnostics attaches scope-exit teardown diagnostics to the
// most recently recorded Result, mirroring spec.md §4.3's guidance that
// teardown problems are reported alongside whichever test last used the
// scope rather than discarded.
func reportLeftoverDiagnostics(results *[]Result, diags []scopes.TeardownDiagnostic) {
	if len(diags) == 0 || len(*results) == 0 {
		return
	}

	last := &(*results)[len(*results)-1]
	for _, d := range diags {
		last.Diagnostics = append(last.Diagnostics, Diagnostic{Kind: "teardown", Message: d.Message, Qualified: d.Fixture})
	}
}
