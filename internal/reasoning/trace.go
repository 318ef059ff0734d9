// Package reasoning implements CortexOS's Reasoning Strategies
// (spec §4.J): ReAct, Reflexion, Tree-of-Thought, and Debate, each
// wrapping a plain internal/agent.Agent with extra deliberation steps
// and attaching a ReasoningTrace to the final result. Every strategy
// is cost-budget-aware: it closes early with a "budget-exceeded"
// trace and returns the best partial result rather than overrunning
// its caller's cost ceiling.
package reasoning

import (
	"time"

	"github.com/cortexos/cortexos/internal/agent"
	"github.com/cortexos/cortexos/internal/cost"
	"github.com/cortexos/cortexos/internal/provider"
)

// StepKind is the closed set of trace-step shapes a strategy records.
type StepKind string

const (
	StepThought     StepKind = "thought"
	StepAction      StepKind = "action"
	StepObservation StepKind = "observation"
	StepCritique    StepKind = "critique"
	StepCandidate   StepKind = "candidate"
	StepScore       StepKind = "score"
	StepPosition    StepKind = "position"
	StepSynthesis   StepKind = "synthesis"
)

// Step is one recorded deliberation step.
type Step struct {
	Kind      StepKind
	Content   string
	Timestamp time.Time
}

// Trace is ReasoningTrace (spec §4.J): the record of a strategy's
// extra deliberation on top of the plain agent loop.
type Trace struct {
	Strategy       string
	Steps          []Step
	InputTokens    int64
	OutputTokens   int64
	CostUSD        float64
	BudgetExceeded bool
	CloseReason    string // "", "completed", or "budget-exceeded"
}

func (t *Trace) record(kind StepKind, content string) {
	t.Steps = append(t.Steps, Step{Kind: kind, Content: content, Timestamp: time.Now()})
}

// Base is the shared configuration every strategy is built from.
type Base struct {
	AgentConfig agent.Config // Role/Provider/Tools/ToolNames/ToolContext/SystemPrompt/Temperature/Model
	Pricing     map[string]cost.ModelPricing
	CostBudget  float64 // USD; 0 disables the budget check
}

func (b *Base) pricing() map[string]cost.ModelPricing {
	if b.Pricing != nil {
		return b.Pricing
	}
	return cost.DefaultCostModel()
}

// accrue adds one provider call's usage to the trace and reports
// whether the strategy's cost budget has now been exceeded.
func (b *Base) accrue(trace *Trace, model string, usage provider.Usage) bool {
	trace.InputTokens += usage.InputTokens
	trace.OutputTokens += usage.OutputTokens

	price, ok := b.pricing()[model]
	if !ok {
		price = b.pricing()["claude-sonnet-4-5-20250929"]
	}
	trace.CostUSD += float64(usage.InputTokens)/1_000_000*price.InputPer1M + float64(usage.OutputTokens)/1_000_000*price.OutputPer1M

	if b.CostBudget > 0 && trace.CostUSD > b.CostBudget {
		trace.BudgetExceeded = true
		trace.CloseReason = "budget-exceeded"
		return true
	}
	return false
}

func (b *Base) newAgent(prompt string) *agent.Agent {
	return agent.New(b.AgentConfig, prompt)
}
