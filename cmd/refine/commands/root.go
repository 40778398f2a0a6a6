// Package commands implements the CLI command handlers for the
// sequential refinement pipeline.
package commands

import (
	"github.com/spf13/cobra"
)

// Version is the CLI version, overridable at build time with -ldflags.
var Version = "0.1.0"

// NewRootCommand builds the refine root command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "refine",
		Short:         "Automated sequential refinements of experimental data",
		Long:          "Process an append-only stream of experimental data files, refining each in arrival order and seeding every fit from the previous file's converged parameters.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(NewRunCommand())
	root.AddCommand(NewVersionCommand())
	return root
}
