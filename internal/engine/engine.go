// Package engine implements CortexOS's top-level pipeline (spec §4.K):
// receive a natural-language request, analyze and decompose it into an
// ExecutionPlan, pre-authorize its estimated cost against the run's
// budget, drive the plan through the swarm coordinator with streaming
// stage events, verify and remediate each task's file changes, and
// aggregate everything into a single Result plus a rendered report.
//
// This is the one place every other component meets: bus, cost,
// toolregistry, quality, sandbox, agent, pool, planner, swarm,
// reasoning, and memory are all wired together here, grounded on the
// teacher's cmd/run.go orchestration flow (config/setup → plan →
// executor → result), generalized from "run a markdown plan file" to
// "run a natural-language request."
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cortexos/cortexos/internal/agent"
	"github.com/cortexos/cortexos/internal/bus"
	"github.com/cortexos/cortexos/internal/clog"
	"github.com/cortexos/cortexos/internal/cortexerr"
	"github.com/cortexos/cortexos/internal/cost"
	"github.com/cortexos/cortexos/internal/memory"
	"github.com/cortexos/cortexos/internal/planner"
	"github.com/cortexos/cortexos/internal/pool"
	"github.com/cortexos/cortexos/internal/provider"
	"github.com/cortexos/cortexos/internal/quality"
	"github.com/cortexos/cortexos/internal/reasoning"
	"github.com/cortexos/cortexos/internal/sandbox"
	"github.com/cortexos/cortexos/internal/swarm"
	"github.com/cortexos/cortexos/internal/toolregistry"
)

// Config wires an Engine to its collaborators. Worktrees/Merger are
// optional (spec §4.I); Gates/Fixer are optional (no quality step when
// nil). Execute never reads Memory: no recall or store step runs,
// whether or not it is set.
type Config struct {
	Provider     provider.Provider
	Tools        *toolregistry.Executor
	Ledger       *cost.Ledger
	Worktrees    *sandbox.WorktreeManager
	Merger       *sandbox.MergeManager
	Stream       *bus.StreamController
	Memory       *memory.Store
	Gates        []quality.GateConfig
	Fixer        *quality.AutoFixer
	Logger       clog.Logger // defaults to clog.Noop{} when nil
	MaxWorkers   int
	PoolMode     pool.Mode
	ReflexionMax int // max Reflexion retries applied to a task whose remediation is terminal; 0 disables
}

const defaultMaxWorkers = 4

// Engine drives one natural-language request through the full
// analyze → plan → pre-authorize → execute → verify → aggregate
// pipeline (spec §4.K).
type Engine struct {
	cfg        Config
	analyzer   *planner.Analyzer
	decomposer *planner.Decomposer
	planner    *planner.Planner
	pool       *pool.Pool
}

// New builds an Engine, constructing its own bounded Agent Pool from
// cfg.Provider/cfg.Tools.
func New(cfg Config) *Engine {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultMaxWorkers
	}
	if cfg.Stream == nil {
		cfg.Stream = bus.NewStreamController(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = clog.Noop{}
	}

	p := pool.New(pool.Config{
		Mode:       cfg.PoolMode,
		MaxWorkers: cfg.MaxWorkers,
		Provider:   cfg.Provider,
		Tools:      cfg.Tools,
	})

	return &Engine{
		cfg:        cfg,
		analyzer:   planner.NewAnalyzer(),
		decomposer: planner.NewDecomposer(cfg.Provider, ""),
		planner:    planner.NewPlanner(),
		pool:       p,
	}
}

// Options parameterizes a single Execute call.
type Options struct {
	ExecutionID    string // generated via uuid if empty
	BaseWorkingDir string // required: where unsandboxed tasks run, and where worktrees are rooted
}

// TaskQuality records one task's post-run quality remediation, when
// Gates are configured.
type TaskQuality struct {
	TaskID          string
	Remediation     quality.Remediation
	ReflexionResult *agent.Result // set only if a terminal remediation triggered a Reflexion retry
}

// Result is the engine's full pipeline outcome (spec §3 ExecutionResult).
type Result struct {
	ExecutionID    string
	Success        bool
	Analysis       planner.Analysis
	Plan           planner.Plan
	Outcome        swarm.Outcome
	FilesChanged   []agent.FileChange
	Quality        []TaskQuality
	CostSummary    cost.CostSummary
	ReportMarkdown string
	ReportHTML     string
	Error          error
}

// Execute runs the full pipeline for prompt. Execute always closes
// its Config.Stream
// before returning, since one Engine maps to one pipeline run; a
// caller driving multiple runs concurrently should build one Engine
// (and one bus.StreamController) per run.
func (e *Engine) Execute(ctx context.Context, prompt string, opts Options) (Result, error) {
	executionID := opts.ExecutionID
	if executionID == "" {
		executionID = uuid.NewString()
	}
	stream := e.cfg.Stream
	defer stream.Close()

	stream.Emit(bus.EvPipelineStart, "pipeline", map[string]any{"executionId": executionID, "prompt": prompt})

	e.cfg.Logger.Stage("analysis", "scoring complexity and intent")
	stream.Emit(bus.EvStageEnter, "analysis", nil)
	analysis := e.analyzer.Analyze(prompt)
	stream.Emit(bus.EvStageExit, "analysis", analysis)

	e.cfg.Logger.Stage("planning", fmt.Sprintf("intent=%s complexity=%.2f", analysis.Intent, analysis.Complexity))
	stream.Emit(bus.EvStageEnter, "planning", nil)
	tasks := e.decomposer.Decompose(ctx, analysis)
	plan := e.planner.Plan(tasks)
	stream.Emit(bus.EvStageExit, "planning", plan)

	if e.cfg.Ledger != nil {
		if err := e.cfg.Ledger.PreAuthorizeEstimatedCost(plan.EstimatedCostUSD); err != nil {
			e.cfg.Logger.Budget(err.Error())
			stream.Emit(bus.EvCostUpdate, "budget", e.cfg.Ledger.GetSummary(0))
			stream.Emit(bus.EvPipelineError, "pipeline", err.Error())
			return Result{
				ExecutionID: executionID,
				Success:     false,
				Analysis:    analysis,
				Plan:        plan,
				Error:       err,
			}, err
		}
	}

	coordinator := swarm.New(swarm.Config{
		Pool:           e.pool,
		Worktrees:      e.cfg.Worktrees,
		Merger:         e.cfg.Merger,
		BaseWorkingDir: opts.BaseWorkingDir,
		Stream:         stream,
	})

	e.cfg.Logger.Stage("execution", fmt.Sprintf("%d wave(s)", len(plan.Waves)))
	stream.Emit(bus.EvStageEnter, "execution", nil)
	outcome, err := coordinator.Run(ctx, executionID, plan)
	if err != nil {
		stream.Emit(bus.EvPipelineError, "pipeline", err.Error())
		return Result{ExecutionID: executionID, Success: false, Analysis: analysis, Plan: plan, Outcome: outcome, Error: err}, err
	}
	stream.Emit(bus.EvStageExit, "execution", outcome)
	e.logOutcome(outcome)

	byID := make(map[string]planner.Task, len(plan.Tasks))
	for _, t := range plan.Tasks {
		byID[t.ID] = t
	}
	e.recordCosts(outcome, byID)
	stream.Emit(bus.EvCostUpdate, "cost", e.costSummary())

	filesChanged := collectFileChanges(outcome)
	qualityResults := e.runQuality(ctx, outcome, byID, opts.BaseWorkingDir, executionID)

	success := !outcome.Failed
	for _, q := range qualityResults {
		if q.Remediation.Terminal && q.ReflexionResult == nil {
			success = false
		}
	}

	reportMD := renderReportMarkdown(executionID, prompt, analysis, plan, outcome, qualityResults)
	reportHTML, _ := renderReportHTML(reportMD)

	result := Result{
		ExecutionID:    executionID,
		Success:        success,
		Analysis:       analysis,
		Plan:           plan,
		Outcome:        outcome,
		FilesChanged:   filesChanged,
		Quality:        qualityResults,
		CostSummary:    e.costSummary(),
		ReportMarkdown: reportMD,
		ReportHTML:     reportHTML,
	}

	if success {
		stream.Emit(bus.EvPipelineComplete, "pipeline", map[string]any{"executionId": executionID, "filesChanged": len(filesChanged)})
	} else {
		result.Error = cortexerr.New(cortexerr.Internal, "pipeline", "execution completed with failures")
		stream.Emit(bus.EvPipelineError, "pipeline", result.Error.Error())
	}

	return result, nil
}

// Shutdown releases the engine's pool workers. Safe to call after
// Execute, or instead of it to abandon a long-lived Engine.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.pool.Shutdown(ctx)
}

// logOutcome reports each wave's dispatch and completion, and each
// task's pass/fail, through the configured Logger (a Noop by default).
func (e *Engine) logOutcome(outcome swarm.Outcome) {
	for _, wave := range outcome.Waves {
		ids := make([]string, 0, len(wave.Tasks))
		for _, t := range wave.Tasks {
			ids = append(ids, t.TaskID)
		}
		e.cfg.Logger.WaveStart(wave.WaveNumber, ids)

		var succeeded, failed int
		for _, t := range wave.Tasks {
			detail := t.Result.Response
			if t.Failed {
				failed++
				if t.Result.Error != nil {
					detail = t.Result.Error.Error()
				}
			} else {
				succeeded++
			}
			e.cfg.Logger.TaskResult(t.TaskID, !t.Failed, detail)
		}
		e.cfg.Logger.WaveComplete(wave.WaveNumber, 0, succeeded, failed)
	}
}

func (e *Engine) recordCosts(outcome swarm.Outcome, byID map[string]planner.Task) {
	if e.cfg.Ledger == nil {
		return
	}
	for _, wave := range outcome.Waves {
		for _, t := range wave.Tasks {
			dt, ok := byID[t.TaskID]
			if !ok {
				continue
			}
			model := planner.ModelForRole(dt.Role)
			e.cfg.Ledger.RecordCall("cortexos", model, t.Result.InputTokens, t.Result.OutputTokens)
		}
	}
}

func (e *Engine) costSummary() cost.CostSummary {
	if e.cfg.Ledger == nil {
		return cost.CostSummary{}
	}
	return e.cfg.Ledger.GetSummary(0)
}

func collectFileChanges(outcome swarm.Outcome) []agent.FileChange {
	var out []agent.FileChange
	for _, wave := range outcome.Waves {
		for _, t := range wave.Tasks {
			out = append(out, t.Result.FileChanges...)
		}
	}
	return out
}

// runQuality verifies and remediates every successful task's file
// changes, running Reflexion (up to ReflexionMax retries, spec §4.J) on whichever
// tasks remain terminal after auto-fix (spec §4.D).
func (e *Engine) runQuality(ctx context.Context, outcome swarm.Outcome, byID map[string]planner.Task, baseDir, executionID string) []TaskQuality {
	if len(e.cfg.Gates) == 0 {
		return nil
	}
	verifier := quality.NewVerifier(e.cfg.Gates...)

	var results []TaskQuality
	for _, wave := range outcome.Waves {
		for _, t := range wave.Tasks {
			if t.Failed || len(t.Result.FileChanges) == 0 {
				continue
			}
			qc := quality.Context{WorkingDir: baseDir, FilesChanged: filePaths(t.Result.FileChanges), ExecutionID: executionID}

			e.cfg.Stream.Emit(bus.EvQualityGateStart, t.TaskID, nil)
			remediation, err := e.verify(ctx, verifier, qc)
			e.cfg.Stream.Emit(bus.EvQualityGateResult, t.TaskID, remediation)
			if err != nil {
				continue
			}

			tq := TaskQuality{TaskID: t.TaskID, Remediation: remediation}
			if remediation.Terminal && e.cfg.ReflexionMax > 0 {
				dt := byID[t.TaskID]
				reflexed := e.reflectOnTask(ctx, dt, remediation)
				tq.ReflexionResult = reflexed
			}
			results = append(results, tq)
		}
	}
	return results
}

// verify runs the plain verifier when no auto-fixer is configured —
// quality.Remediate always invokes its fixer on a failing initial
// pass, which would panic against a nil *AutoFixer.
func (e *Engine) verify(ctx context.Context, verifier *quality.Verifier, qc quality.Context) (quality.Remediation, error) {
	if e.cfg.Fixer == nil {
		report, err := verifier.Verify(ctx, qc)
		if err != nil {
			return quality.Remediation{Initial: report}, err
		}
		return quality.Remediation{Initial: report, Final: report, Terminal: !report.Passed}, nil
	}
	return quality.Remediate(ctx, verifier, e.cfg.Fixer, qc)
}

func (e *Engine) reflectOnTask(ctx context.Context, dt planner.Task, remediation quality.Remediation) *agent.Result {
	cfg := reasoning.ReflexionConfig{
		Base: reasoning.Base{
			AgentConfig: agent.Config{
				Role:     dt.Role,
				Provider: e.cfg.Provider,
				Tools:    e.cfg.Tools,
				Model:    planner.ModelForRole(dt.Role),
			},
		},
		MaxRetries: e.cfg.ReflexionMax,
		Trigger:    reasoning.TriggerLowQuality,
		LowQuality: func(agent.Result) bool { return true },
	}
	result, _, err := reasoning.Reflexion(ctx, cfg, dt.Description)
	if err != nil {
		return nil
	}
	return &result
}

func filePaths(changes []agent.FileChange) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.Path)
	}
	return out
}
