// Package config loads the settings behind karva's CLI surface: defaults,
// merged with an optional config file, merged with environment variables,
// in the layering order the teacher's viper-based loader uses.
package config

import (
	"errors"
	"fmt"
)

// OutputFormat selects how the orchestrator renders its aggregate summary.
type OutputFormat string

const (
	OutputFormatFull    OutputFormat = "full"
	OutputFormatConcise OutputFormat = "concise"
)

// ColorMode selects when ANSI color is emitted in CLI output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Config holds every setting the CLI surface (spec.md §6) can set, whether
// from flags, a config file, or environment variables. Flags set explicitly
// on the command line always win; see mergeFlags in cmd/karva/commands.
type Config struct {
	// Paths are the root paths to discover tests under. Empty means the
	// current working directory.
	Paths []string `mapstructure:"paths"`

	// TagExprs are boolean tag-filter expressions (-t); a variant matches if
	// any expression matches.
	TagExprs []string `mapstructure:"tag_exprs"`
	// NamePatterns are substring-regex name filters (-m); a variant matches
	// if any pattern matches.
	NamePatterns []string `mapstructure:"name_patterns"`
	// TestPrefix overrides the conventional test-function name prefix used
	// by discovery (default "test_").
	TestPrefix string `mapstructure:"test_prefix"`

	OutputFormat OutputFormat `mapstructure:"output_format"`
	Color        ColorMode    `mapstructure:"color"`

	// CaptureOutput, when false (-s), disables guest stdout/stderr capture
	// during test execution.
	CaptureOutput bool `mapstructure:"capture_output"`
	// NoIgnore disables .gitignore-aware filtering in discovery.
	NoIgnore bool `mapstructure:"no_ignore"`
	// FailFast stops scheduling further variants after the first failure.
	FailFast bool `mapstructure:"fail_fast"`
	// Retries is the number of additional attempts for a non-passing test.
	Retries int `mapstructure:"retries"`
	// NoProgress disables incremental progress output.
	NoProgress bool `mapstructure:"no_progress"`
	// TryImportFixtures imports configuration modules with no tests of their
	// own so their fixtures are still discovered.
	TryImportFixtures bool `mapstructure:"try_import_fixtures"`
	// SnapshotUpdate rewrites mismatching snapshots instead of failing.
	SnapshotUpdate bool `mapstructure:"snapshot_update"`

	// Workers is the worker-process count (-n); 0 selects GOMAXPROCS.
	Workers int `mapstructure:"workers"`
	// NoParallel forces a single worker process, running every discovered
	// test sequentially instead of partitioning across many.
	NoParallel bool `mapstructure:"no_parallel"`
	// NoCache disables the duration-history cache (every test is assumed to
	// take the same nominal duration for partitioning purposes).
	NoCache bool `mapstructure:"no_cache"`
	// CacheDir is the root of the shared per-run cache directory.
	CacheDir string `mapstructure:"cache_dir"`

	// DryRun lists the tests that would run without executing them.
	DryRun bool `mapstructure:"dry_run"`
	// Watch re-runs the suite on source-file changes, debounced.
	Watch bool `mapstructure:"watch"`

	// ConfigFile is the path this Config was loaded from, if any. Not itself
	// settable from within a config file.
	ConfigFile string `mapstructure:"-"`
}

// Validate rejects combinations the CLI surface forbids outright.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case OutputFormatFull, OutputFormatConcise:
	default:
		return fmt.Errorf("%w: output-format %q", ErrInvalidConfig, c.OutputFormat)
	}

	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("%w: color %q", ErrInvalidConfig, c.Color)
	}

	if c.Retries < 0 {
		return fmt.Errorf("%w: retries must be >= 0", ErrInvalidConfig)
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalidConfig)
	}

	if c.DryRun && c.Watch {
		return fmt.Errorf("%w: --dry-run and --watch are mutually exclusive", ErrInvalidConfig)
	}

	return nil
}

// ErrInvalidConfig is returned by Validate and wrapped with the specific
// violation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Default returns a Config populated with the CLI surface's documented
// defaults, before any config file or environment layering.
func Default() *Config {
	return &Config{
		TestPrefix:   "test_",
		OutputFormat: OutputFormatFull,
		Color:        ColorAuto,

		CaptureOutput: true,
		CacheDir:      ".karva_cache",
	}
}
