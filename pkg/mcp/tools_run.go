package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/karva-go/karva/internal/cache"
	"github.com/karva-go/karva/internal/config"
	"github.com/karva-go/karva/internal/discovery"
	"github.com/karva-go/karva/internal/orchestrator"
)

// workerSubcommand is the hidden re-exec target cmd/karva's own __worker
// subcommand answers to. handleRunTests re-execs the same karva binary the
// MCP server itself is running as, exactly the way cmd/karva's "test"
// command does, so a single binary serves both the CLI and MCP surfaces
// without duplicating the worker-process lifecycle.
const workerSubcommand = "__worker"

// workerArgs mirrors cmd/karva/commands.workerArgs field-for-field: both are
// decoded by the same __worker subcommand, so their JSON shapes must match,
// not their Go type identity.
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

// handleRunTests processes karva_run_tests tool calls.
func handleRunTests(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input RunTestsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	cfg := config.Default()

	roots := input.Paths
	if len(roots) == 0 {
		roots = []string{"."}
	}

	history := cache.NewDurationCache(0)
	if !input.NoCache {
		loaded, err := orchestrator.LoadHistory(cfg.CacheDir, cache.DefaultDurationCacheSize)
		if err != nil {
			return errorResult(fmt.Errorf("load duration history: %w", err))
		}

		history = loaded
	}

	weights, err := discoverWeights(ctx, roots, cfg, history)
	if err != nil {
		return errorResult(err)
	}

	runHash := runHashForWeights(weights)

	orch := orchestrator.New(history)
	summary, err := orch.Run(ctx, weights, orchestrator.Config{
		CacheDir: cfg.CacheDir,
		RunHash:  runHash,
		Workers:  runtime.GOMAXPROCS(0),
		FailFast: input.FailFast,
		Build:    buildCommandBuilder(cfg, runHash, input),
	})
	if err != nil {
		return errorResult(fmt.Errorf("run tests: %w", err))
	}

	if saveErr := orchestrator.SaveHistory(cfg.CacheDir, history); saveErr != nil {
		return errorResult(fmt.Errorf("save duration history: %w", saveErr))
	}

	return jsonResult(summary)
}

func discoverWeights(
	ctx context.Context,
	roots []string,
	cfg *config.Config,
	history *cache.DurationCache,
) ([]orchestrator.FileWeight, error) {
	discOpts := discovery.Options{TestPrefix: cfg.TestPrefix, NoIgnore: cfg.NoIgnore, TryImportFixtures: cfg.TryImportFixtures}

	var weights []orchestrator.FileWeight

	for _, root := range roots {
		tree, err := discovery.Walk(ctx, root, discOpts)
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", root, err)
		}

		fallback := history.Mean()
		if fallback == 0 {
			fallback = defaultFallbackSeconds
		}

		weights = append(weights, orchestrator.CollectFileWeights(tree, history, fallback, root)...)
	}

	return weights, nil
}

const defaultFallbackSeconds = 0.1

func runHashForWeights(weights []orchestrator.FileWeight) string {
	paths := make([]string, len(weights))
	for i, fw := range weights {
		paths[i] = fw.Path
	}

	return orchestrator.RunHash(paths)
}

func buildCommandBuilder(cfg *config.Config, runHash string, input RunTestsInput) orchestrator.CommandBuilder {
	return func(assignment orchestrator.Assignment) (*exec.Cmd, error) {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate own binary: %w", err)
		}

		argsPath, err := writeWorkerArgs(cfg, runHash, assignment, input)
		if err != nil {
			return nil, err
		}

		cmd := exec.Command(self, workerSubcommand, argsPath)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr

		return cmd, nil
	}
}

func writeWorkerArgs(cfg *config.Config, runHash string, assignment orchestrator.Assignment, input RunTestsInput) (string, error) {
	runDir := orchestrator.RunDir(cfg.CacheDir, runHash)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}

	args := workerArgs{
		CacheDir: cfg.CacheDir, RunHash: runHash, WorkerID: assignment.WorkerID, Paths: assignment.Paths,
		TestPrefix: cfg.TestPrefix, NoIgnore: cfg.NoIgnore, TryImportFixtures: cfg.TryImportFixtures,
		TagExprs: input.TagExprs, NamePatterns: input.NamePatterns,
		Retries: input.Retries, FailFast: input.FailFast,
	}

	path := filepath.Join(runDir, fmt.Sprintf("worker-%d.args.json", assignment.WorkerID))

	tmp, err := os.CreateTemp(runDir, fmt.Sprintf("worker-%d.args.*.tmp", assignment.WorkerID))
	if err != nil {
		return "", fmt.Errorf("create worker args temp file: %w", err)
	}

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(args); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return "", fmt.Errorf("encode worker args: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close worker args temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename worker args file: %w", err)
	}

	return path, nil
}
