package sandbox

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
)

// MergeResult (spec §3).
type MergeResult struct {
	TaskID     string
	BranchName string
	Success    bool
	Conflicts  []string
	Error      error
}

// MergeManager serializes merges of active worktree branches back
// into the base branch, one at a time, to avoid conflicts between
// concurrent integrations (spec §4.E).
type MergeManager struct {
	runner    GitRunner
	repoRoot  string
	worktrees *WorktreeManager
}

func NewMergeManager(runner GitRunner, repoRoot string, worktrees *WorktreeManager) *MergeManager {
	return &MergeManager{runner: runner, repoRoot: repoRoot, worktrees: worktrees}
}

// MergeAll merges every info in order, returning one MergeResult per
// task. A failure does not stop subsequent merges (spec §4.E point 4:
// "Subsequent worktrees are still merged"). Merges run through an
// errgroup capped at one in-flight goroutine, since they share
// m.repoRoot and must stay serialized, but the group still gives
// MergeAll a cancellable, wait-on-all shutdown path for free.
func (m *MergeManager) MergeAll(ctx context.Context, infos []WorktreeInfo) []MergeResult {
	results := make([]MergeResult, len(infos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(1)
	for i, info := range infos {
		i, info := i, info
		g.Go(func() error {
			results[i] = m.mergeOne(gctx, info)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (m *MergeManager) mergeOne(ctx context.Context, info WorktreeInfo) MergeResult {
	// 1. Auto-commit any staged-or-unstaged changes in the worktree.
	if _, err := m.runner.Run(ctx, info.WorktreePath, "add", "-A"); err != nil {
		return MergeResult{TaskID: info.TaskID, BranchName: info.BranchName, Success: false, Error: fmt.Errorf("stage changes: %w", err)}
	}
	msg := fmt.Sprintf("cortexos: task %s", info.TaskID)
	if _, err := m.runner.Run(ctx, info.WorktreePath, "commit", "--allow-empty", "-m", msg); err != nil {
		return MergeResult{TaskID: info.TaskID, BranchName: info.BranchName, Success: false, Error: fmt.Errorf("auto-commit: %w", err)}
	}

	// 2. Attempt to merge the branch into the base branch from the repo root.
	out, err := m.runner.Run(ctx, m.repoRoot, "merge", "--no-ff", info.BranchName, "-m", fmt.Sprintf("merge %s", info.BranchName))
	if err == nil {
		// 3. Success: delete the branch and remove the worktree.
		_, _ = m.runner.Run(ctx, m.repoRoot, "branch", "-D", info.BranchName)
		_ = m.worktrees.Remove(ctx, info.TaskID)
		return MergeResult{TaskID: info.TaskID, BranchName: info.BranchName, Success: true}
	}

	// 4. Failure: abort the in-progress merge, leave the repo clean,
	// parse conflicts, leave the worktree intact for inspection (P9).
	_, _ = m.runner.Run(ctx, m.repoRoot, "merge", "--abort")
	conflicts := parseConflicts(out)
	return MergeResult{
		TaskID:     info.TaskID,
		BranchName: info.BranchName,
		Success:    false,
		Conflicts:  conflicts,
		Error:      fmt.Errorf("merge conflict: %w", err),
	}
}

var conflictLineRe = regexp.MustCompile(`(?m)^CONFLICT \([^)]*\): .*? in (.+)$`)

// parseConflicts extracts file paths from git's merge-conflict output.
func parseConflicts(mergeOutput string) []string {
	matches := conflictLineRe.FindAllStringSubmatch(mergeOutput, -1)
	seen := make(map[string]bool)
	var files []string
	for _, m := range matches {
		f := strings.TrimSpace(m[1])
		if f != "" && !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	return files
}
