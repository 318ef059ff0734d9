package cmdline

import (
	"github.com/spf13/cobra"
)

// Version is the version string the root command reports. main sets it
// from its own build-time Version before calling NewRootCommand.
var Version = "dev"

// NewRootCommand builds the cortexos root command and every
// subcommand it dispatches to (spec §6's external CLI surface).
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "cortexos",
		Short: "Decomposes natural-language software-engineering requests into agent task DAGs and executes them",
		Long: `CortexOS turns a natural-language request into a dependency-ordered
plan of role-specialized agent tasks, runs them across a bounded worker
pool with optional per-task worktree isolation, verifies each task's
output against configurable quality gates, and merges the results
back into a single report.`,
		Version:      Version,
		SilenceUsage: true,
	}
	flags.register(root.PersistentFlags())

	root.AddCommand(newRunCommand(flags))
	root.AddCommand(newValidateCommand(flags))
	root.AddCommand(newBudgetCommand(flags))
	root.AddCommand(newStreamCommand(flags))

	return root
}
