package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/karva-go/karva/internal/discovery"
	"github.com/karva-go/karva/internal/execution"
	"github.com/karva-go/karva/internal/orchestrator"
	"github.com/karva-go/karva/pkg/persist"
)

// workerSubcommand is the hidden re-exec target spec.md §4.4 calls the
// "Worker lifecycle": the parent spawns N child processes of this same
// binary, each given a path to its own argument file rather than a long
// argv, following spec.md §4.4's "Partitions are written to per-worker
// argument files."
const workerSubcommand = "__worker"

// workerArgsCodec is shared by buildCommandBuilder (writer) and
// NewWorkerCommand (reader), mirroring internal/orchestrator/protocol.go's
// resultCodec idiom.
var workerArgsCodec = persist.NewJSONCodec()

// workerArgs is the JSON-serializable shape of orchestrator.WorkerConfig:
// WorkerConfig itself carries a *execution.Filter (compiled regexes) and
// observability hooks that don't round-trip through JSON, so the parent
// writes this flattened form and the worker subcommand reconstructs the
// real config from it.
type workerArgs struct {
	CacheDir string                  `json:"cache_dir"`
	RunHash  string                  `json:"run_hash"`
	WorkerID int                     `json:"worker_id"`
	Paths    []orchestrator.FileTask `json:"paths"`

	TestPrefix        string `json:"test_prefix"`
	NoIgnore          bool   `json:"no_ignore"`
	TryImportFixtures bool   `json:"try_import_fixtures"`

	TagExprs     []string `json:"tag_exprs"`
	NamePatterns []string `json:"name_patterns"`

	Retries  int  `json:"retries"`
	FailFast bool `json:"fail_fast"`
}

// workerArgsPath returns the path buildCommandBuilder writes one
// assignment's workerArgs to, and NewWorkerCommand reads it back from.
func workerArgsPath(cacheDir, runHash string, workerID int) string {
	return filepath.Join(orchestrator.RunDir(cacheDir, runHash), fmt.Sprintf("worker-%d.args.json", workerID))
}

// writeWorkerArgs persists args atomically (temp file + rename), the same
// durability the parent already relies on for result files.
func writeWorkerArgs(args workerArgs) (string, error) {
	runDir := orchestrator.RunDir(args.CacheDir, args.RunHash)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("karva: creating run dir: %w", err)
	}

	path := workerArgsPath(args.CacheDir, args.RunHash, args.WorkerID)

	tmp, err := os.CreateTemp(runDir, fmt.Sprintf("worker-%d.args.*.tmp", args.WorkerID))
	if err != nil {
		return "", fmt.Errorf("karva: creating worker args temp file: %w", err)
	}

	if err := workerArgsCodec.Encode(tmp, args); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return "", fmt.Errorf("karva: encoding worker args: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("karva: closing worker args temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("karva: renaming worker args file: %w", err)
	}

	return path, nil
}

func readWorkerArgs(path string) (workerArgs, error) {
	var args workerArgs

	f, err := os.Open(path)
	if err != nil {
		return args, fmt.Errorf("karva: opening worker args %s: %w", path, err)
	}
	defer f.Close()

	if err := workerArgsCodec.Decode(f, &args); err != nil {
		return args, fmt.Errorf("karva: decoding worker args %s: %w", path, err)
	}

	return args, nil
}

// NewWorkerCommand returns the hidden worker subcommand. It is not listed
// in spec.md §6's CLI surface (guests never invoke it directly); the parent
// process's orchestrator.CommandBuilder constructs its argv.
func NewWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:    workerSubcommand + " <args-file>",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return runWorker(cobraCmd.Context(), args[0])
		},
	}

	return cmd
}

func runWorker(ctx context.Context, argsPath string) error {
	args, err := readWorkerArgs(argsPath)
	if err != nil {
		return err
	}

	filter, err := execution.NewFilter(args.TagExprs, args.NamePatterns)
	if err != nil {
		return fmt.Errorf("karva: compiling worker filter: %w", err)
	}

	return orchestrator.RunWorker(ctx, orchestrator.WorkerConfig{
		CacheDir: args.CacheDir,
		RunHash:  args.RunHash,
		WorkerID: args.WorkerID,
		Paths:    args.Paths,
		DiscoveryOpts: discovery.Options{
			TestPrefix:        args.TestPrefix,
			NoIgnore:          args.NoIgnore,
			TryImportFixtures: args.TryImportFixtures,
		},
		Filter:   filter,
		Retries:  args.Retries,
		FailFast: args.FailFast,
	})
}
