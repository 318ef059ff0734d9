package cmdline

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cortexos/cortexos/internal/cortexerr"
	"github.com/cortexos/cortexos/internal/engine"
)

// newRunCommand implements spec §6's core `execute(prompt, options)`
// entry point: 0 on success, 1 on plan failure (quality not met), 2 on
// budget exceeded, 3 on system error.
func newRunCommand(flags *globalFlags) *cobra.Command {
	var workDir string

	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Execute a natural-language request end to end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build(flags)
			if err != nil {
				os.Exit(3)
			}
			defer d.shutdown()

			if workDir == "" {
				workDir, err = os.Getwd()
				if err != nil {
					os.Exit(3)
				}
			}

			result, err := d.engine.Execute(cmd.Context(), args[0], engine.Options{BaseWorkingDir: workDir})
			fmt.Fprintln(cmd.OutOrStdout(), result.ReportMarkdown)

			code := exitCodeFor(result, err)
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workDir, "dir", "", "base working directory for unsandboxed tasks (defaults to the current directory)")
	return cmd
}

// exitCodeFor maps an Execute outcome onto spec §6's exit codes.
// Budget exhaustion is checked first since a budget failure also
// reports result.Success == false.
func exitCodeFor(result engine.Result, err error) int {
	if err != nil && cortexerr.IsBudget(err) {
		return 2
	}
	if !result.Success {
		return 1
	}
	if err != nil {
		return 3
	}
	return 0
}
