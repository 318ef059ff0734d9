// Package pool implements the Agent Pool (spec §4.G): a bounded
// dispatcher that runs AgentTasks either in-process (a semaphore
// gating N concurrent Agent.Run calls, grounded on the teacher's
// internal/executor/wave.go executeWave) or in forked worker
// processes (message-framed IPC, see forked.go).
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cortexos/cortexos/internal/agent"
	"github.com/cortexos/cortexos/internal/cortexerr"
	"github.com/cortexos/cortexos/internal/provider"
	"github.com/cortexos/cortexos/internal/toolregistry"
)

// Task is AgentTask from spec §3: a DecomposedTask plus the runtime
// role identifier, working directory, and allowed tool set.
type Task struct {
	ID          string
	Role        agent.Role
	Prompt      string
	WorkingDir  string
	ToolNames   []string
	Temperature float64
	Model       string
}

// Mode selects how submitted tasks are executed.
type Mode int

const (
	ModeInProcess Mode = iota
	ModeForked
)

// Stats is the pool's point-in-time counters.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	InFlight  int64
}

// Config configures a Pool.
type Config struct {
	Mode        Mode
	MaxWorkers  int
	Provider    provider.Provider
	Tools       *toolregistry.Executor
	TaskTimeout time.Duration // per-task timeout; default 120s (spec §4.G)
	Forked      ForkedConfig
}

const defaultTaskTimeout = 120 * time.Second

// Pool dispatches AgentTasks under a bound of at most MaxWorkers
// concurrent executions (spec P10), queueing new submits FIFO.
type Pool struct {
	cfg Config
	sem *semaphore.Weighted

	mu       sync.Mutex
	closed   bool
	stats    Stats
	inFlight map[string]context.CancelFunc // taskID -> cancel, for shutdown's TERM
}

func New(cfg Config) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}
	return &Pool{
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxWorkers)),
		inFlight: make(map[string]context.CancelFunc),
	}
}

// Submit runs one task, blocking on the weighted semaphore until a
// worker slot is free.
func (p *Pool) Submit(ctx context.Context, task Task) (agent.Result, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return agent.Result{}, cortexerr.New(cortexerr.Internal, "pool", "pool is shut down")
	}
	p.stats.Submitted++
	p.mu.Unlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return agent.Result{}, cortexerr.New(cortexerr.Cancelled, "pool", ctx.Err().Error())
	}
	defer p.sem.Release(1)

	taskCtx, cancel := context.WithTimeout(ctx, p.cfg.TaskTimeout)
	defer cancel()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return agent.Result{}, cortexerr.New(cortexerr.Internal, "pool", "pool is shut down")
	}
	p.stats.InFlight++
	p.inFlight[task.ID] = cancel
	p.mu.Unlock()

	var result agent.Result
	var err error
	switch p.cfg.Mode {
	case ModeForked:
		result, err = p.runForked(taskCtx, task)
	default:
		result, err = p.runInProcess(taskCtx, task)
	}

	p.mu.Lock()
	p.stats.InFlight--
	delete(p.inFlight, task.ID)
	if err != nil || !result.Success {
		p.stats.Failed++
	} else {
		p.stats.Completed++
	}
	p.mu.Unlock()

	return result, err
}

func (p *Pool) runInProcess(ctx context.Context, task Task) (agent.Result, error) {
	a := agent.New(agent.Config{
		Role:        task.Role,
		Provider:    p.cfg.Provider,
		Tools:       p.cfg.Tools,
		ToolNames:   task.ToolNames,
		Temperature: task.Temperature,
		Model:       task.Model,
		ToolContext: toolregistry.ToolContext{WorkingDir: task.WorkingDir},
	}, task.Prompt)
	result := a.Run(ctx)
	return result, nil
}

// SubmitBatch dispatches every task to the pool in parallel (bounded
// by MaxWorkers, via Submit's own semaphore) and returns results in
// the same order as tasks, semantically Promise.all (spec §4.G).
func (p *Pool) SubmitBatch(ctx context.Context, tasks []Task) ([]agent.Result, error) {
	results := make([]agent.Result, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			var err error
			results[i], err = p.Submit(gctx, t)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("one or more tasks failed to submit: %w", err)
	}
	return results, nil
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Shutdown rejects pending/new submits and kills in-flight workers
// (their context is cancelled — forked workers receive a TERM signal
// from runForked's context watcher, see forked.go).
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	cancels := make([]context.CancelFunc, 0, len(p.inFlight))
	for _, c := range p.inFlight {
		cancels = append(cancels, c)
	}
	p.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	return nil
}
