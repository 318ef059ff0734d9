package reasoning

import (
	"context"

	"github.com/cortexos/cortexos/internal/agent"
	"github.com/cortexos/cortexos/internal/provider"
)

// ReAct loops thought -> action -> observation up to maxThoughts
// iterations; each iteration is one provider call that must emit
// either a tool call (observation appended) or a terminal answer
// (spec §4.J). This is exactly internal/agent.Agent's own state
// machine (spec §4.F), so ReAct runs a standard Agent capped at
// maxThoughts iterations and reconstructs the trace from its message
// history rather than re-implementing the loop.
func ReAct(ctx context.Context, base Base, prompt string, maxThoughts int) (agent.Result, Trace, error) {
	trace := Trace{Strategy: "react"}

	cfg := base.AgentConfig
	if maxThoughts > 0 {
		cfg.MaxIterations = maxThoughts
	}
	a := agent.New(cfg, prompt)
	result := a.Run(ctx)

	if base.accrue(&trace, cfg.Model, provider.Usage{InputTokens: result.InputTokens, OutputTokens: result.OutputTokens}) {
		return result, trace, nil
	}

	for _, msg := range a.History() {
		if msg.Role != "assistant" {
			continue
		}
		if msg.Content != "" {
			trace.record(StepThought, msg.Content)
		}
		for _, tc := range msg.ToolCalls {
			trace.record(StepAction, tc.Name+"("+tc.ArgumentsJSON+")")
		}
	}
	for _, msg := range a.History() {
		if msg.Role == "tool" {
			trace.record(StepObservation, msg.Content)
		}
	}

	trace.CloseReason = "completed"
	return result, trace, nil
}
