package cmdline

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newBudgetCommand prints the ledger's cost summary and run total, plus
// a warning line once spend crosses the warn threshold; it exits zero
// in both cases. The ledger comes fresh from build and no persisted
// snapshot is read, so the figures cover only calls made by this
// process.
func newBudgetCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show accumulated spend against the configured budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build(flags)
			if err != nil {
				os.Exit(3)
			}
			defer d.shutdown()

			if d.ledger == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "budget enforcement disabled")
				return nil
			}

			summary := d.ledger.GetSummary(0)
			fmt.Fprintf(cmd.OutOrStdout(), "calls:  %d\n", summary.Calls)
			fmt.Fprintf(cmd.OutOrStdout(), "tokens: %d in / %d out\n", summary.TotalInput, summary.TotalOutput)
			fmt.Fprintf(cmd.OutOrStdout(), "spend:  $%.4f\n", summary.TotalCost)
			fmt.Fprintf(cmd.OutOrStdout(), "run total: $%.4f\n", d.ledger.RunTotal())

			if warning := d.ledger.WarnIfApproaching(); warning != "" {
				fmt.Fprintln(cmd.OutOrStdout(), warning)
			}
			return nil
		},
	}
	return cmd
}
