package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// WorktreeInfo (spec §3). Invariant: at most one active WorktreeInfo
// per taskID at a time, enforced by WorktreeManager's map.
type WorktreeInfo struct {
	TaskID       string
	BranchName   string
	WorktreePath string
	BaseBranch   string
}

// WorktreeManager creates one peer working directory per parallel
// task, on a dedicated branch `<prefix>/<executionID>/<taskID>`
// derived from the base branch.
type WorktreeManager struct {
	mu         sync.Mutex
	runner     GitRunner
	repoRoot   string
	prefix     string
	baseBranch string
	active     map[string]WorktreeInfo
}

func NewWorktreeManager(runner GitRunner, repoRoot, prefix, baseBranch string) *WorktreeManager {
	return &WorktreeManager{
		runner:     runner,
		repoRoot:   repoRoot,
		prefix:     prefix,
		baseBranch: baseBranch,
		active:     make(map[string]WorktreeInfo),
	}
}

// Available reports whether repoRoot is a VCS repository.
func (m *WorktreeManager) Available(ctx context.Context) bool {
	return IsVCSRepo(ctx, m.runner, m.repoRoot)
}

// Create creates a worktree for taskID under
// <repoRoot>/.cortexos/worktrees/<taskID> on branch
// <prefix>/<executionID>/<taskID>.
func (m *WorktreeManager) Create(ctx context.Context, executionID, taskID string) (WorktreeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[taskID]; exists {
		return WorktreeInfo{}, fmt.Errorf("worktree already active for task %s", taskID)
	}

	branch := fmt.Sprintf("%s/%s/%s", m.prefix, executionID, taskID)
	path := filepath.Join(m.repoRoot, ".cortexos", "worktrees", taskID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WorktreeInfo{}, fmt.Errorf("create worktree parent dir: %w", err)
	}

	if _, err := m.runner.Run(ctx, m.repoRoot, "worktree", "add", "-b", branch, path, m.baseBranch); err != nil {
		return WorktreeInfo{}, fmt.Errorf("git worktree add: %w", err)
	}

	info := WorktreeInfo{
		TaskID:       taskID,
		BranchName:   branch,
		WorktreePath: path,
		BaseBranch:   m.baseBranch,
	}
	m.active[taskID] = info
	return info, nil
}

// Remove tears down the worktree directory and frees the taskID slot.
// It does not delete the branch — that is MergeManager's job after a
// successful merge.
func (m *WorktreeManager) Remove(ctx context.Context, taskID string) error {
	m.mu.Lock()
	info, exists := m.active[taskID]
	if exists {
		delete(m.active, taskID)
	}
	m.mu.Unlock()

	if !exists {
		return nil
	}
	_, err := m.runner.Run(ctx, m.repoRoot, "worktree", "remove", "--force", info.WorktreePath)
	return err
}

// Get returns the active worktree for taskID, if any.
func (m *WorktreeManager) Get(taskID string) (WorktreeInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.active[taskID]
	return info, ok
}

// Active returns all active worktrees, in no particular order.
func (m *WorktreeManager) Active() []WorktreeInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WorktreeInfo, 0, len(m.active))
	for _, v := range m.active {
		out = append(out, v)
	}
	return out
}
