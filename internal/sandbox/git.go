// Package sandbox implements CortexOS's Worktree/Merge/Lock Sandbox
// (spec §4.E): per-task isolated git worktrees, sequential merge with
// conflict abort, and an advisory file-lock manager for non-VCS
// projects. The git-shelling conventions are adapted directly from
// the teacher's checkpoint/rollback git command runner.
package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitRunner executes a git subcommand in dir and returns combined
// output. Abstracted so tests can inject a fake runner.
type GitRunner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecGitRunner shells out to the real git binary.
type ExecGitRunner struct{}

func (ExecGitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, out)
	}
	return string(out), nil
}

// IsVCSRepo reports whether dir is inside a git work tree — the
// WorktreeManager's availability predicate (spec §4.E).
func IsVCSRepo(ctx context.Context, runner GitRunner, dir string) bool {
	out, err := runner.Run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}
