package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/karva-go/karva/internal/report"
	"github.com/karva-go/karva/internal/snapshot/inline"
	"github.com/karva-go/karva/internal/snapshot/storage"
)

// NewSnapshotCommand returns the "snapshot" subcommand tree from spec.md §6:
// accept, reject, pending, review, prune, delete.
func NewSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage pending and stale snapshots",
	}

	cmd.AddCommand(
		newSnapshotAcceptCommand(),
		newSnapshotRejectCommand(),
		newSnapshotPendingCommand(),
		newSnapshotReviewCommand(),
		newSnapshotPruneCommand(),
		newSnapshotDeleteCommand(),
	)

	return cmd
}

func newSnapshotAcceptCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "accept [paths...]",
		Short: "Accept every pending snapshot under paths",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			pending, err := storage.ListPending(rootsOrCWD(args), nil)
			if err != nil {
				return invocationError(err)
			}

			if dryRun {
				report.RenderPending(cobraCmd.OutOrStdout(), pending)

				return nil
			}

			rewriter := inline.New()

			for _, p := range pending {
				if err := storage.Accept(p, rewriter); err != nil {
					return fmt.Errorf("karva: accepting %s: %w", p.NewPath, err)
				}
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "%d snapshot(s) accepted\n", len(pending))

			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending snapshots without accepting them")

	return cmd
}

func newSnapshotRejectCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reject [paths...]",
		Short: "Discard every pending snapshot under paths",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			pending, err := storage.ListPending(rootsOrCWD(args), nil)
			if err != nil {
				return invocationError(err)
			}

			if dryRun {
				report.RenderPending(cobraCmd.OutOrStdout(), pending)

				return nil
			}

			for _, p := range pending {
				if err := storage.Reject(p); err != nil {
					return fmt.Errorf("karva: rejecting %s: %w", p.NewPath, err)
				}
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "%d snapshot(s) rejected\n", len(pending))

			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending snapshots without rejecting them")

	return cmd
}

func newSnapshotPendingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pending [paths...]",
		Short: "List snapshots awaiting accept or reject",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			pending, err := storage.ListPending(rootsOrCWD(args), nil)
			if err != nil {
				return invocationError(err)
			}

			report.RenderPending(cobraCmd.OutOrStdout(), pending)

			return nil
		},
	}
}

// newSnapshotReviewCommand is an alias for "pending": spec.md §6 lists both
// verbs, "review" being the human-facing synonym used in interactive
// workflows, "pending" the scriptable one.
func newSnapshotReviewCommand() *cobra.Command {
	cmd := newSnapshotPendingCommand()
	cmd.Use = "review [paths...]"
	cmd.Short = "Review snapshots awaiting accept or reject"

	return cmd
}

func newSnapshotPruneCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune [paths...]",
		Short: "List snapshot files with no corresponding test function",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			roots := rootsOrCWD(args)

			stale, err := storage.Prune(roots, ".")
			if err != nil {
				return invocationError(err)
			}

			if dryRun {
				report.RenderPrune(cobraCmd.OutOrStdout(), stale)

				return nil
			}

			if err := deleteSnapshotFiles(stale); err != nil {
				return err
			}

			report.RenderPrune(cobraCmd.OutOrStdout(), stale)

			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list stale snapshots without deleting them")

	return cmd
}

func newSnapshotDeleteCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "delete [paths...]",
		Short: "Delete every snapshot under paths",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			roots := rootsOrCWD(args)

			if dryRun {
				pending, err := storage.ListPending(roots, nil)
				if err != nil {
					return invocationError(err)
				}

				report.RenderPending(cobraCmd.OutOrStdout(), pending)

				return nil
			}

			if err := storage.Delete(roots, nil); err != nil {
				return fmt.Errorf("karva: deleting snapshots: %w", err)
			}

			fmt.Fprintln(cobraCmd.OutOrStdout(), "snapshots deleted")

			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list snapshots without deleting them")

	return cmd
}

func rootsOrCWD(paths []string) []string {
	if len(paths) == 0 {
		return []string{"."}
	}

	return paths
}

func deleteSnapshotFiles(paths []string) error {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("karva: deleting stale snapshot %s: %w", path, err)
		}
	}

	return nil
}
