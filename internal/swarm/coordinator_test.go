package swarm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexos/cortexos/internal/agent"
	"github.com/cortexos/cortexos/internal/planner"
	"github.com/cortexos/cortexos/internal/pool"
	"github.com/cortexos/cortexos/internal/provider"
	"github.com/cortexos/cortexos/internal/sandbox"
)

// scriptedProvider answers every Complete call with a fixed terminal
// response, keyed by matching a substring of the prompt so different
// tasks can be scripted independently.
type scriptedProvider struct {
	byPromptSubstr map[string]string
	fallback       string
}

func (p *scriptedProvider) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}
	for substr, resp := range p.byPromptSubstr {
		if substr != "" && containsStr(prompt, substr) {
			return provider.Response{Content: resp}, nil
		}
	}
	return provider.Response{Content: p.fallback}, nil
}

func (p *scriptedProvider) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	return nil, errors.New("not implemented")
}
func (p *scriptedProvider) IsAvailable(ctx context.Context) bool { return true }
func (p *scriptedProvider) PricingID() string                   { return "test" }

func containsStr(s, substr string) bool {
	return len(s) >= len(substr) && (substr == "" || indexOf(s, substr) >= 0)
}
func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

// fakeGitRunner lets tests script git output without a real repo.
type fakeGitRunner struct {
	mergeFails map[string]string // branch -> conflict output
}

func (f *fakeGitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	if len(args) > 0 && args[0] == "rev-parse" {
		return "true", nil
	}
	if len(args) > 0 && args[0] == "worktree" {
		return "", nil
	}
	if len(args) > 0 && args[0] == "merge" {
		if len(args) > 1 && args[1] == "--abort" {
			return "", nil
		}
		branch := args[2]
		if out, fails := f.mergeFails[branch]; fails {
			return out, fmt.Errorf("merge conflict")
		}
		return "", nil
	}
	return "", nil
}

func TestCoordinatorRunsWavesAndMarksFailureWithoutShortCircuit(t *testing.T) {
	p := pool.New(pool.Config{
		Mode:     pool.ModeInProcess,
		Provider: &scriptedProvider{fallback: "ok"},
	})

	tasks := []planner.Task{
		{ID: "a", Role: agent.RoleDeveloper, Description: "do a"},
		{ID: "b", Role: agent.RoleTester, Description: "do b", DependsOn: []string{"a"}},
	}
	plan := planner.NewPlanner().Plan(tasks)

	coord := New(Config{Pool: p, BaseWorkingDir: t.TempDir()})
	outcome, err := coord.Run(t.Context(), "exec1", plan)
	require.NoError(t, err)
	require.Len(t, outcome.Waves, 2)
	assert.False(t, outcome.Failed)

	var seen []string
	for _, w := range outcome.Waves {
		for _, to := range w.Tasks {
			seen = append(seen, to.TaskID)
			assert.False(t, to.Failed)
		}
	}
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
}

func TestCoordinatorMergeConflictMarksPlanFailedButKeepsWorktree(t *testing.T) {
	runner := &fakeGitRunner{mergeFails: map[string]string{
		"cortexos/exec1/b": "CONFLICT (content): Merge conflict in shared.go\n",
	}}
	repoRoot := t.TempDir()
	wm := sandbox.NewWorktreeManager(runner, repoRoot, "cortexos", "main")
	mm := sandbox.NewMergeManager(runner, repoRoot, wm)

	p := pool.New(pool.Config{
		Mode:     pool.ModeInProcess,
		Provider: &scriptedProvider{fallback: "ok"},
	})

	tasks := []planner.Task{
		{ID: "a", Role: agent.RoleDeveloper, Description: "do a"},
		{ID: "b", Role: agent.RoleDeveloper, Description: "do b"},
	}
	plan := planner.NewPlanner().Plan(tasks)
	// Force both into the same wave regardless of priority ordering.
	plan.Waves = []planner.Wave{{Number: 0, TaskIDs: []string{"a", "b"}, CanParallelize: true}}

	coord := New(Config{Pool: p, Worktrees: wm, Merger: mm, BaseWorkingDir: repoRoot})
	outcome, err := coord.Run(t.Context(), "exec1", plan)
	require.NoError(t, err)
	require.Len(t, outcome.Waves, 1)
	assert.True(t, outcome.Failed)

	var successCount, failCount int
	for _, mr := range outcome.Waves[0].MergeResults {
		if mr.Success {
			successCount++
		} else {
			failCount++
			assert.Contains(t, mr.Conflicts, "shared.go")
			_, stillActive := wm.Get(mr.TaskID)
			assert.True(t, stillActive, "conflicted task's worktree must not be removed")
		}
	}
	assert.Equal(t, 1, successCount)
	assert.Equal(t, 1, failCount)
}
