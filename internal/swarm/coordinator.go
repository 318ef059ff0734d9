// Package swarm implements the Swarm Coordinator (spec §4.I): it
// drives an ExecutionPlan wave by wave over the Agent Pool, isolating
// each task in its own git worktree when sandboxing is available,
// merging completed branches back sequentially, and carrying forward
// a summary of each wave's results as context for the next.
package swarm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cortexos/cortexos/internal/agent"
	"github.com/cortexos/cortexos/internal/bus"
	"github.com/cortexos/cortexos/internal/planner"
	"github.com/cortexos/cortexos/internal/pool"
	"github.com/cortexos/cortexos/internal/sandbox"
)

// TaskOutcome is one task's result within a wave.
type TaskOutcome struct {
	TaskID string
	Result agent.Result
	Failed bool // true on pool/agent error, distinct from Result.Success==false
}

// WaveOutcome is everything a single wave produced.
type WaveOutcome struct {
	WaveNumber   int
	Tasks        []TaskOutcome
	MergeResults []sandbox.MergeResult
	AnyFailed    bool
}

// Outcome is the coordinator's full run.
type Outcome struct {
	Waves  []WaveOutcome
	Failed bool
}

// Config wires a Coordinator to its collaborators. Worktrees/Merger
// are optional: when either is nil, or the repo is not a VCS work
// tree, tasks run directly against BaseWorkingDir with no isolation.
type Config struct {
	Pool           *pool.Pool
	Worktrees      *sandbox.WorktreeManager
	Merger         *sandbox.MergeManager
	BaseWorkingDir string
	Stream         *bus.StreamController // optional; nil disables stage events
}

// Coordinator runs an ExecutionPlan wave by wave (spec §4.I).
type Coordinator struct {
	cfg Config
}

func New(cfg Config) *Coordinator {
	return &Coordinator{cfg: cfg}
}

// Run executes every wave of plan in order. A cancelled ctx aborts
// dispatch of any wave not yet started; a wave already dispatched is
// allowed to finish (or time out per-task inside the pool) before Run
// returns, and any worktrees created for it are cleaned up.
func (c *Coordinator) Run(ctx context.Context, executionID string, plan planner.Plan) (Outcome, error) {
	byID := make(map[string]planner.Task, len(plan.Tasks))
	for _, t := range plan.Tasks {
		byID[t.ID] = t
	}

	sandboxAvailable := c.cfg.Worktrees != nil && c.cfg.Merger != nil && c.cfg.Worktrees.Available(ctx)

	var outcome Outcome
	var priorSummaries []string

	for _, wave := range plan.Waves {
		select {
		case <-ctx.Done():
			return outcome, ctx.Err()
		default:
		}

		c.emit("wave:enter", wave.Number, nil)
		waveOutcome, waveInfos := c.runWave(ctx, executionID, wave, byID, sandboxAvailable, priorSummaries)

		if ctx.Err() != nil {
			for _, info := range waveInfos {
				_ = c.cfg.Worktrees.Remove(context.Background(), info.TaskID)
			}
			outcome.Waves = append(outcome.Waves, waveOutcome)
			return outcome, ctx.Err()
		}

		if sandboxAvailable && len(waveInfos) > 0 {
			waveOutcome.MergeResults = c.cfg.Merger.MergeAll(ctx, waveInfos)
			for _, mr := range waveOutcome.MergeResults {
				if !mr.Success {
					waveOutcome.AnyFailed = true
				}
			}
		}

		if waveOutcome.AnyFailed {
			outcome.Failed = true
		}
		priorSummaries = append(priorSummaries, summarizeWave(waveOutcome)...)
		outcome.Waves = append(outcome.Waves, waveOutcome)
		c.emit("wave:exit", wave.Number, waveOutcome)
	}

	return outcome, nil
}

// runWave dispatches every task in wave to the pool in parallel,
// isolating each in its own worktree first when sandboxing is
// available. A failed task is recorded but never short-circuits its
// siblings (spec §4.I point 3).
func (c *Coordinator) runWave(
	ctx context.Context,
	executionID string,
	wave planner.Wave,
	byID map[string]planner.Task,
	sandboxAvailable bool,
	priorSummaries []string,
) (WaveOutcome, []sandbox.WorktreeInfo) {
	waveOutcome := WaveOutcome{WaveNumber: wave.Number}

	var mu sync.Mutex
	var infos []sandbox.WorktreeInfo

	tasks := make([]pool.Task, 0, len(wave.TaskIDs))
	taskIDOrder := make([]string, 0, len(wave.TaskIDs))

	for _, taskID := range wave.TaskIDs {
		dt, ok := byID[taskID]
		if !ok {
			continue
		}

		workingDir := c.cfg.BaseWorkingDir
		if sandboxAvailable {
			info, err := c.cfg.Worktrees.Create(ctx, executionID, taskID)
			if err != nil {
				waveOutcome.Tasks = append(waveOutcome.Tasks, TaskOutcome{
					TaskID: taskID,
					Failed: true,
					Result: agent.Result{Success: false, Error: fmt.Errorf("create worktree: %w", err)},
				})
				waveOutcome.AnyFailed = true
				continue
			}
			workingDir = info.WorktreePath
			mu.Lock()
			infos = append(infos, info)
			mu.Unlock()
		}

		prompt := dt.Description
		if len(priorSummaries) > 0 {
			prompt = prompt + "\n\nPrior wave summaries:\n" + joinSummaries(priorSummaries)
		}

		tasks = append(tasks, pool.Task{
			ID:         taskID,
			Role:       dt.Role,
			Prompt:     prompt,
			WorkingDir: workingDir,
			ToolNames:  dt.RequiredTools,
			Model:      planner.ModelForRole(dt.Role),
		})
		taskIDOrder = append(taskIDOrder, taskID)
	}

	// SubmitBatch's returned error only signals that at least one
	// per-task submit errored (e.g. pool shut down mid-wave); the
	// results slice is always populated in original order, with a
	// zero-value (Success == false) entry for whichever task(s)
	// actually failed to submit. Reading Success off each result is
	// therefore sufficient and preserves every sibling's real outcome
	// (spec §4.I point 3 — a failure must never hide its siblings').
	results, _ := c.cfg.Pool.SubmitBatch(ctx, tasks)

	for i, taskID := range taskIDOrder {
		res := results[i]
		failed := !res.Success
		waveOutcome.Tasks = append(waveOutcome.Tasks, TaskOutcome{TaskID: taskID, Result: res, Failed: failed})
		if failed {
			waveOutcome.AnyFailed = true
		}
	}

	return waveOutcome, infos
}

// summarizeWave extracts the fields of each task's AgentResult that
// flow forward as context into subsequent waves (spec §4.I point 5).
func summarizeWave(w WaveOutcome) []string {
	var summaries []string
	for _, t := range w.Tasks {
		status := "succeeded"
		if t.Failed {
			status = "failed"
		}
		summaries = append(summaries, fmt.Sprintf("task %s %s: %s", t.TaskID, status, truncateSummary(t.Result.Response)))
	}
	return summaries
}

func truncateSummary(s string) string {
	const max = 400
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func joinSummaries(summaries []string) string {
	out := ""
	for _, s := range summaries {
		out += "- " + s + "\n"
	}
	return out
}

func (c *Coordinator) emit(eventType string, waveNumber int, data any) {
	if c.cfg.Stream == nil {
		return
	}
	c.cfg.Stream.Emit(eventType, fmt.Sprintf("wave-%d", waveNumber), data)
}
