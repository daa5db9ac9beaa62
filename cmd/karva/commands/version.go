package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/karva-go/karva/pkg/version"
)

// NewVersionCommand returns the "version" subcommand named in spec.md §6.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "karva %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
