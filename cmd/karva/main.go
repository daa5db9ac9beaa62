// Package main provides the entry point for the karva CLI tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/karva-go/karva/cmd/karva/commands"
	"github.com/karva-go/karva/pkg/version"
)

// Exit codes per spec.md §7: 0 success, 1 test failures, 2 invocation or
// internal error.
const (
	exitSuccess      = 0
	exitTestFailures = 1
	exitError        = 2
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "karva",
		Short: "karva - parallel test runner",
		Long: `karva discovers and runs tests under a parallel worker-process
orchestrator, with snapshot review as a first-class workflow.

Commands:
  test       Discover and run tests
  snapshot   Manage pending and stale snapshots
  mcp        Start an MCP server for AI agent integration
  version    Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		commands.NewTestCommand(),
		commands.NewSnapshotCommand(),
		commands.NewMCPCommand(),
		commands.NewVersionCommand(),
		commands.NewWorkerCommand(),
	)

	os.Exit(run(rootCmd))
}

func run(rootCmd *cobra.Command) int {
	err := rootCmd.Execute()
	if err == nil {
		return exitSuccess
	}

	fmt.Fprintf(os.Stderr, "karva: %v\n", err)

	if errors.Is(err, commands.ErrTestFailure) {
		return exitTestFailures
	}

	return exitError
}
