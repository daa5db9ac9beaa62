package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/karva-go/karva/internal/cache"
	"github.com/karva-go/karva/internal/config"
	"github.com/karva-go/karva/internal/discovery"
	"github.com/karva-go/karva/internal/orchestrator"
	"github.com/karva-go/karva/internal/report"
	"github.com/karva-go/karva/internal/report/render"
)

// secondSignalWindow is how long a second SIGINT/SIGTERM has to arrive
// after the first for spec.md §4.4's two-stage Cancellation rule to
// escalate from graceful shutdown to unconditional termination.
const secondSignalWindow = 2 * time.Second

// testOptions holds every flag from spec.md §6's "test" subcommand. Each
// field mirrors a config.Config field of the same shape; mergeFlags applies
// only the flags the caller actually set, so config.Load's file/env
// layering still wins for anything left at its zero value on the command
// line.
type testOptions struct {
	tagExprs     []string
	namePatterns []string
	testPrefix   string
	outputFormat string
	silent       bool
	noIgnore     bool
	failFast     bool
	retries      int
	noProgress   bool
	tryFixtures  bool
	color        string
	snapUpdate   bool
	workers      int
	noParallel   bool
	noCache      bool
	dryRun       bool
	watch        bool
	configFile   string

	// historyChart is a supplemental feature beyond spec.md §6's documented
	// flag surface: a path to write a duration-history bar chart to after
	// the run, via internal/report/render.
	historyChart string
}

// NewTestCommand returns the "test" subcommand implementing spec.md §6's
// parallel-orchestrated test run.
func NewTestCommand() *cobra.Command {
	opts := &testOptions{}

	cmd := &cobra.Command{
		Use:   "test [paths...]",
		Short: "Discover and run tests",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return runTest(cobraCmd, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.tagExprs, "tag", "t", nil, "boolean tag-filter expression (repeatable)")
	flags.StringArrayVarP(&opts.namePatterns, "match", "m", nil, "test-name regex filter (repeatable)")
	flags.StringVar(&opts.testPrefix, "test-prefix", "", "conventional test-function name prefix")
	flags.StringVar(&opts.outputFormat, "output-format", "", "full|concise")
	flags.BoolVarP(&opts.silent, "silent", "s", false, "disable guest stdout/stderr capture")
	flags.BoolVar(&opts.noIgnore, "no-ignore", false, "disable .gitignore-aware filtering")
	flags.BoolVar(&opts.failFast, "fail-fast", false, "stop scheduling further tests after the first failure")
	flags.IntVar(&opts.retries, "retry", 0, "additional attempts for a non-passing test")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "disable incremental progress output")
	flags.BoolVar(&opts.tryFixtures, "try-import-fixtures", false, "import fixture-only configuration modules with no tests")
	flags.StringVar(&opts.color, "color", "", "auto|always|never")
	flags.BoolVar(&opts.snapUpdate, "snapshot-update", false, "rewrite mismatching snapshots instead of failing")
	flags.IntVarP(&opts.workers, "workers", "n", 0, "worker-process count (0 = GOMAXPROCS)")
	flags.BoolVar(&opts.noParallel, "no-parallel", false, "run every discovered test sequentially in a single worker process")
	flags.BoolVar(&opts.noCache, "no-cache", false, "disable the duration-history cache")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "list discovered tests without running them")
	flags.BoolVar(&opts.watch, "watch", false, "re-run on source-file changes")
	flags.StringVar(&opts.configFile, "config-file", "", "configuration file path")
	flags.StringVar(&opts.historyChart, "history-chart", "", "write a duration-history bar chart (HTML) to this path after the run")

	return cmd
}

// mergeFlags layers cmd's explicitly-set flags over cfg, per internal/config's
// documented precedence: "flags set explicitly on the command line always win".
func mergeFlags(cfg *config.Config, cmd *cobra.Command, paths []string, opts *testOptions) {
	if len(paths) > 0 {
		cfg.Paths = paths
	}

	changed := cmd.Flags().Changed

	if changed("tag") {
		cfg.TagExprs = opts.tagExprs
	}

	if changed("match") {
		cfg.NamePatterns = opts.namePatterns
	}

	if changed("test-prefix") {
		cfg.TestPrefix = opts.testPrefix
	}

	if changed("output-format") {
		cfg.OutputFormat = config.OutputFormat(opts.outputFormat)
	}

	if changed("silent") {
		cfg.CaptureOutput = !opts.silent
	}

	if changed("no-ignore") {
		cfg.NoIgnore = opts.noIgnore
	}

	if changed("fail-fast") {
		cfg.FailFast = opts.failFast
	}

	if changed("retry") {
		cfg.Retries = opts.retries
	}

	if changed("no-progress") {
		cfg.NoProgress = opts.noProgress
	}

	if changed("try-import-fixtures") {
		cfg.TryImportFixtures = opts.tryFixtures
	}

	if changed("color") {
		cfg.Color = config.ColorMode(opts.color)
	}

	if changed("snapshot-update") {
		cfg.SnapshotUpdate = opts.snapUpdate
	}

	if changed("workers") {
		cfg.Workers = opts.workers
	}

	if changed("no-parallel") {
		cfg.NoParallel = opts.noParallel
	}

	if changed("no-cache") {
		cfg.NoCache = opts.noCache
	}

	if changed("dry-run") {
		cfg.DryRun = opts.dryRun
	}

	if changed("watch") {
		cfg.Watch = opts.watch
	}
}

func runTest(cmd *cobra.Command, args []string, opts *testOptions) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return invocationError(err)
	}

	mergeFlags(cfg, cmd, args, opts)

	if err := cfg.Validate(); err != nil {
		return invocationError(err)
	}

	if err := report.SetColorMode(string(cfg.Color)); err != nil {
		return invocationError(err)
	}

	roots := cfg.Paths
	if len(roots) == 0 {
		roots = []string{"."}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	if cfg.NoParallel {
		workers = 1
	}

	history := cache.NewDurationCache(0)

	if !cfg.NoCache {
		loaded, err := orchestrator.LoadHistory(cfg.CacheDir, cache.DefaultDurationCacheSize)
		if err != nil {
			return fmt.Errorf("karva: loading duration history: %w", err)
		}

		history = loaded
	}

	orch := orchestrator.New(history)

	ctx, forceCh, stop := installSignalHandling(cmd.Context())
	defer stop()

	out := cmd.OutOrStdout()

	next := func() ([]orchestrator.FileWeight, orchestrator.Config) {
		weights, discErr := discoverWeights(ctx, roots, cfg, history)
		if discErr != nil {
			return nil, orchestrator.Config{}
		}

		return weights, buildOrchestratorConfig(cfg, workers, forceCh, runHashForWeights(weights))
	}

	if cfg.DryRun {
		return runDryRun(ctx, roots, cfg, out)
	}

	onSummary := func(summary orchestrator.Summary, runErr error) {
		if runErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "karva: %v\n", runErr)

			return
		}

		renderSummary(out, summary, cfg)
		writeHistoryChart(opts.historyChart, history, cmd.ErrOrStderr())
	}

	if cfg.Watch {
		watcher, werr := newFSWatcher(roots[0])
		if werr != nil {
			return fmt.Errorf("karva: starting watcher: %w", werr)
		}
		defer watcher.Close()

		return orch.RunWatch(ctx, watcher, next, onSummary)
	}

	weights, err := discoverWeights(ctx, roots, cfg, history)
	if err != nil {
		return invocationError(err)
	}

	summary, err := orch.Run(ctx, weights, buildOrchestratorConfig(cfg, workers, forceCh, runHashForWeights(weights)))
	if err != nil {
		return fmt.Errorf("karva: %w", err)
	}

	renderSummary(out, summary, cfg)
	writeHistoryChart(opts.historyChart, history, cmd.ErrOrStderr())

	if summary.Failed > 0 {
		return ErrTestFailure
	}

	return nil
}

// writeHistoryChart renders history's current snapshot to path if path is
// non-empty, reporting (but not failing the run on) a write error.
func writeHistoryChart(path string, history *cache.DurationCache, errOut io.Writer) {
	if path == "" {
		return
	}

	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(errOut, "karva: creating history chart %s: %v\n", path, err)

		return
	}
	defer f.Close()

	if err := render.HistoryChart(f, history.Snapshot()); err != nil {
		fmt.Fprintf(errOut, "karva: rendering history chart: %v\n", err)
	}
}

// runHashForWeights computes spec.md §4.4's stable run identifier from the
// file paths a discovery pass actually found, so a resumed watch-mode run
// whose file set hasn't changed still addresses the same cache subdirectory.
func runHashForWeights(weights []orchestrator.FileWeight) string {
	paths := make([]string, len(weights))
	for i, fw := range weights {
		paths[i] = fw.Path
	}

	return orchestrator.RunHash(paths)
}

// discoverWeights walks every root and flattens the combined tree into
// FileWeights, the unit orchestrator.Partition bin-packs across workers.
func discoverWeights(ctx context.Context, roots []string, cfg *config.Config, history *cache.DurationCache) ([]orchestrator.FileWeight, error) {
	discOpts := discovery.Options{
		TestPrefix:        cfg.TestPrefix,
		NoIgnore:          cfg.NoIgnore,
		TryImportFixtures: cfg.TryImportFixtures,
	}

	var weights []orchestrator.FileWeight

	for _, root := range roots {
		tree, err := discovery.Walk(ctx, root, discOpts)
		if err != nil {
			return nil, fmt.Errorf("karva: discovering %s: %w", root, err)
		}

		fallback := history.Mean()
		if fallback == 0 {
			fallback = defaultFallbackSeconds
		}

		weights = append(weights, orchestrator.CollectFileWeights(tree, history, fallback, root)...)
	}

	return weights, nil
}

// defaultFallbackSeconds mirrors orchestrator's own unexported constant of
// the same name, used here before any FileWeight has been collected.
const defaultFallbackSeconds = 0.1

func buildOrchestratorConfig(cfg *config.Config, workers int, force <-chan struct{}, runHash string) orchestrator.Config {
	return orchestrator.Config{
		CacheDir: cfg.CacheDir,
		RunHash:  runHash,
		Workers:  workers,
		FailFast: cfg.FailFast,
		Force:    force,
		Build:    buildCommandBuilder(cfg, runHash),
	}
}

// buildCommandBuilder returns a CommandBuilder that re-execs the current
// binary's hidden "__worker" subcommand, per spec.md §4.4's "Worker
// lifecycle" and "Partitions are written to per-worker argument files".
func buildCommandBuilder(cfg *config.Config, runHash string) orchestrator.CommandBuilder {
	return func(assignment orchestrator.Assignment) (*exec.Cmd, error) {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("karva: locating own binary: %w", err)
		}

		argsPath, err := writeWorkerArgs(workerArgs{
			CacheDir:          cfg.CacheDir,
			RunHash:           runHash,
			WorkerID:          assignment.WorkerID,
			Paths:             assignment.Paths,
			TestPrefix:        cfg.TestPrefix,
			NoIgnore:          cfg.NoIgnore,
			TryImportFixtures: cfg.TryImportFixtures,
			TagExprs:          cfg.TagExprs,
			NamePatterns:      cfg.NamePatterns,
			Retries:           cfg.Retries,
			FailFast:          cfg.FailFast,
		})
		if err != nil {
			return nil, err
		}

		cmd := exec.Command(self, workerSubcommand, argsPath)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		return cmd, nil
	}
}

func renderSummary(w io.Writer, summary orchestrator.Summary, cfg *config.Config) {
	format := report.Full
	if cfg.OutputFormat == config.OutputFormatConcise {
		format = report.Concise
	}

	report.RenderSummary(w, summary, format)
}

// runDryRun lists every test that discovery finds without executing any of
// them, per spec.md §6's --dry-run. Name patterns (-m) are applied directly
// against each test's qualified name; tag expressions (-t) are not, since
// they are evaluated per expanded parametrize variant by execution.Filter
// and dry-run never expands variants.
func runDryRun(ctx context.Context, roots []string, cfg *config.Config, w io.Writer) error {
	discOpts := discovery.Options{
		TestPrefix:        cfg.TestPrefix,
		NoIgnore:          cfg.NoIgnore,
		TryImportFixtures: cfg.TryImportFixtures,
	}

	namePatterns := make([]*regexp.Regexp, 0, len(cfg.NamePatterns))

	for _, pattern := range cfg.NamePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return invocationError(fmt.Errorf("compiling name pattern %q: %w", pattern, err))
		}

		namePatterns = append(namePatterns, re)
	}

	for _, root := range roots {
		tree, err := discovery.Walk(ctx, root, discOpts)
		if err != nil {
			return invocationError(fmt.Errorf("discovering %s: %w", root, err))
		}

		for _, fw := range orchestrator.CollectFileWeights(tree, cache.NewDurationCache(0), 0, root) {
			for _, name := range fw.Tests {
				if matchesAny(namePatterns, name) {
					fmt.Fprintln(w, name)
				}
			}
		}
	}

	return nil
}

func matchesAny(patterns []*regexp.Regexp, name string) bool {
	if len(patterns) == 0 {
		return true
	}

	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}

	return false
}

// installSignalHandling implements spec.md §4.4's two-stage Cancellation
// rule: the first SIGINT/SIGTERM cancels ctx (the graceful trigger, which
// orchestrator.Run turns into a shutdown sentinel); a second signal arriving
// within secondSignalWindow closes force, which orchestrator.Run treats as
// the unconditional-termination escalation. signal.NotifyContext only
// supports the first stage, so this is hand-rolled on top of signal.Notify.
func installSignalHandling(parent context.Context) (context.Context, <-chan struct{}, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 2)
	force := make(chan struct{})

	notifySignals(sigCh)

	go func() {
		if _, ok := <-sigCh; !ok {
			return
		}

		cancel()

		select {
		case _, ok := <-sigCh:
			if ok {
				close(force)
			}
		case <-time.After(secondSignalWindow):
		}
	}()

	stop := func() {
		stopSignals(sigCh)
		close(sigCh)
		cancel()
	}

	return ctx, force, stop
}

func invocationError(err error) error {
	return fmt.Errorf("%w: %w", errInvocation, err)
}
