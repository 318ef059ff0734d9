package cmdline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cortexos/cortexos/internal/quality"
)

// newValidateCommand runs the configured quality gates over the
// working tree's changed files without driving a full engine
// execution — useful for CI or a pre-commit check. Changed files are
// discovered the way the teacher's package_guard.go does: the union
// of unstaged and staged `git diff --name-only` output.
func newValidateCommand(flags *globalFlags) *cobra.Command {
	var workDir string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the configured quality gates over the working tree's changed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build(flags)
			if err != nil {
				os.Exit(3)
			}
			defer d.shutdown()

			if workDir == "" {
				if workDir, err = os.Getwd(); err != nil {
					os.Exit(3)
				}
			}

			gates, _ := buildQuality(d.cfg)
			if len(gates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "quality gates disabled; nothing to validate")
				return nil
			}

			changed, err := changedFiles(cmd.Context(), workDir)
			if err != nil {
				os.Exit(3)
			}

			verifier := quality.NewVerifier(gates...)
			report, err := verifier.Verify(cmd.Context(), quality.Context{WorkingDir: workDir, FilesChanged: changed})
			if err != nil {
				os.Exit(3)
			}

			for _, res := range report.Results {
				status := "pass"
				if !res.Passed {
					status = "fail"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s (%d issue(s))\n", res.Gate, status, len(res.Issues))
				for _, issue := range res.Issues {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s:%d: %s\n", issue.File, issue.Line, issue.Message)
				}
			}

			if !report.Passed {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workDir, "dir", "", "working directory to validate (defaults to the current directory)")
	return cmd
}

func changedFiles(ctx context.Context, workDir string) ([]string, error) {
	runner := quality.ShellRunner{}
	unstaged, _, err := runner.Run(ctx, workDir, "git diff --name-only HEAD")
	if err != nil {
		return nil, fmt.Errorf("git diff: %w", err)
	}
	staged, _, err := runner.Run(ctx, workDir, "git diff --name-only --cached")
	if err != nil {
		return nil, fmt.Errorf("git diff --cached: %w", err)
	}

	seen := make(map[string]bool)
	var out []string
	for _, line := range append(strings.Split(unstaged, "\n"), strings.Split(staged, "\n")...) {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	return out, nil
}
