// Package cmdline wires CortexOS's cobra CLI surface (spec §6): a
// single `execute(prompt, options)` core operation fronted by `run`,
// plus `validate`, `budget`, and `stream` subcommands for the external
// UIs layered on top of it, grounded on the teacher's
// internal/cmd/root.go and internal/cmd/run.go command wiring.
package cmdline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cortexos/cortexos/internal/bus"
	"github.com/cortexos/cortexos/internal/claude"
	"github.com/cortexos/cortexos/internal/clog"
	"github.com/cortexos/cortexos/internal/config"
	"github.com/cortexos/cortexos/internal/cost"
	"github.com/cortexos/cortexos/internal/engine"
	"github.com/cortexos/cortexos/internal/memory"
	"github.com/cortexos/cortexos/internal/pool"
	"github.com/cortexos/cortexos/internal/provider"
	"github.com/cortexos/cortexos/internal/quality"
	"github.com/cortexos/cortexos/internal/sandbox"
	"github.com/cortexos/cortexos/internal/toolregistry"
)

// globalFlags collects the flags shared by every subcommand that
// builds an engine, following the teacher's pattern of a small flag
// struct threaded through command constructors rather than package
// globals.
type globalFlags struct {
	configPath string
	claudePath string
	model      string
	quiet      bool
	worktree   bool
	memoryDB   string
}

func (f *globalFlags) register(fs flagRegisterer) {
	fs.StringVar(&f.configPath, "config", ".cortexos/config.yaml", "path to the YAML config file")
	fs.StringVar(&f.claudePath, "claude-path", "claude", "path to the claude CLI binary used as the default provider")
	fs.StringVar(&f.model, "model", "", "override the provider model (defaults to each role's configured model)")
	fs.BoolVar(&f.quiet, "quiet", false, "suppress console logging")
	fs.BoolVar(&f.worktree, "worktree", false, "run each task in an isolated git worktree and merge results back")
	fs.StringVar(&f.memoryDB, "memory-db", "", "path to a sqlite memory store; disabled when empty")
}

// flagRegisterer is satisfied by *pflag.FlagSet (via *cobra.Command's
// Flags()), narrowed so this file doesn't need to import cobra/pflag
// directly.
type flagRegisterer interface {
	StringVar(p *string, name, value, usage string)
	BoolVar(p *bool, name string, value bool, usage string)
}

// deps is everything a single `run` needs, assembled once from config
// and flags.
type deps struct {
	cfg      *config.Config
	engine   *engine.Engine
	ledger   *cost.Ledger
	logger   clog.Logger
	mem      *memory.Store
	worktree *sandbox.WorktreeManager
	merger   *sandbox.MergeManager

	provider provider.Provider
	tools    *toolregistry.Executor
	poolMode pool.Mode
}

// newEngine builds a fresh Engine bound to stream, sharing every other
// collaborator (provider, tools, ledger, gates, sandbox, memory) with
// d. Used by the `stream` server, which needs one Engine per run since
// Execute always closes its Config.Stream when it returns.
func (d *deps) newEngine(stream *bus.StreamController) *engine.Engine {
	gates, fixer := buildQuality(d.cfg)
	return engine.New(engine.Config{
		Provider:     d.provider,
		Tools:        d.tools,
		Ledger:       d.ledger,
		Worktrees:    d.worktree,
		Merger:       d.merger,
		Memory:       d.mem,
		Gates:        gates,
		Fixer:        fixer,
		Logger:       d.logger,
		Stream:       stream,
		MaxWorkers:   d.cfg.Pool.MaxWorkers,
		PoolMode:     d.poolMode,
		ReflexionMax: reflexionMax(d.cfg),
	})
}

// build loads config, applies flags on top, and constructs every
// collaborator the Engine needs (spec §4.K "this is the one place
// every other component meets").
func build(flags *globalFlags) (*deps, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var logger clog.Logger = clog.Noop{}
	if !flags.quiet {
		logger = clog.New(os.Stderr, cfg.LogLevel)
	}

	prov := buildProvider(cfg, flags)

	reg := toolregistry.NewRegistry()
	if err := toolregistry.RegisterBuiltins(reg); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	tools := toolregistry.NewExecutor(reg)

	var ledger *cost.Ledger
	if cfg.Budget.Enabled {
		ledger = cost.NewLedger(nil, cost.Budget{
			PerRunUSD:     cfg.Budget.PerRunUSD,
			PerDayUSD:     cfg.Budget.PerDayUSD,
			WarnThreshold: cfg.Budget.WarnThreshold,
			SafetyMargin:  cfg.Budget.SafetyMargin,
		})
		if cfg.LogDir != "" {
			ledger = ledger.WithPersistence(filepath.Join(cfg.LogDir, "ledger.json"))
		}
	}

	gates, fixer := buildQuality(cfg)

	var mem *memory.Store
	if flags.memoryDB != "" {
		mem, err = memory.Open(flags.memoryDB)
		if err != nil {
			return nil, fmt.Errorf("open memory store: %w", err)
		}
	}

	var wt *sandbox.WorktreeManager
	var merger *sandbox.MergeManager
	if flags.worktree {
		repoRoot, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve repo root: %w", err)
		}
		runner := sandbox.ExecGitRunner{}
		wt = sandbox.NewWorktreeManager(runner, repoRoot, cfg.WorktreePrefix, "main")
		merger = sandbox.NewMergeManager(runner, repoRoot, wt)
	}

	poolMode := pool.ModeInProcess
	if cfg.Pool.Mode == "forked" {
		poolMode = pool.ModeForked
	}

	eng := engine.New(engine.Config{
		Provider:     prov,
		Tools:        tools,
		Ledger:       ledger,
		Worktrees:    wt,
		Merger:       merger,
		Memory:       mem,
		Gates:        gates,
		Fixer:        fixer,
		Logger:       logger,
		MaxWorkers:   cfg.Pool.MaxWorkers,
		PoolMode:     poolMode,
		ReflexionMax: reflexionMax(cfg),
	})

	return &deps{
		cfg: cfg, engine: eng, ledger: ledger, logger: logger, mem: mem,
		worktree: wt, merger: merger,
		provider: prov, tools: tools, poolMode: poolMode,
	}, nil
}

func reflexionMax(cfg *config.Config) int {
	if !cfg.Quality.Reflexion {
		return 0
	}
	return cfg.Quality.MaxRetries
}

func buildProvider(cfg *config.Config, flags *globalFlags) provider.Provider {
	return claude.New(flags.claudePath, flags.model, cfg.Pool.TaskTimeout)
}

// buildQuality maps the configured gate names onto concrete Gate
// implementations (spec §4.D): type-check/test/security are fatal —
// their failure halts a task's verification — while lint and
// complexity are advisory, matching the teacher's treatment of lint
// as auto-fixable noise rather than a hard stop.
func buildQuality(cfg *config.Config) ([]quality.GateConfig, *quality.AutoFixer) {
	if !cfg.Quality.Enabled {
		return nil, nil
	}

	runner := quality.ShellRunner{}
	var lint *quality.LintGate
	var gates []quality.GateConfig
	for _, name := range cfg.Quality.Gates {
		switch name {
		case "lint":
			lint = quality.NewLintGate(runner)
			gates = append(gates, quality.GateConfig{Gate: lint})
		case "type-check":
			gates = append(gates, quality.GateConfig{Gate: quality.NewTypeCheckGate(runner), Fatal: true})
		case "test":
			gates = append(gates, quality.GateConfig{Gate: quality.NewTestGate(runner), Fatal: true})
		case "security":
			gates = append(gates, quality.GateConfig{Gate: quality.NewSecurityGate(runner), Fatal: true})
		case "complexity":
			gates = append(gates, quality.GateConfig{Gate: quality.NewComplexityGate()})
		}
	}

	var fixer *quality.AutoFixer
	if cfg.Quality.AutoFix {
		if lint == nil {
			lint = quality.NewLintGate(runner)
		}
		fixer = quality.NewAutoFixer(lint, runner)
	}
	return gates, fixer
}

func (d *deps) shutdown() {
	if d.engine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = d.engine.Shutdown(ctx)
	}
	if d.mem != nil {
		_ = d.mem.Close()
	}
}
