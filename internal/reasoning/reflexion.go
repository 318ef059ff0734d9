package reasoning

import (
	"context"
	"fmt"

	"github.com/cortexos/cortexos/internal/agent"
	"github.com/cortexos/cortexos/internal/provider"
)

// Trigger is the closed set of conditions that make Reflexion retry
// (spec §4.J, §4.D).
type Trigger string

const (
	TriggerFailure    Trigger = "failure"
	TriggerLowQuality Trigger = "low-quality"
	TriggerBoth       Trigger = "both"
)

// ReflexionConfig adds Reflexion's own knobs to the shared Base.
// LowQuality is the caller-supplied quality signal; Open Question 2
// (see DESIGN.md) resolves its absence as "never triggers" rather
// than inventing a default quality heuristic — pass nil unless a
// caller (e.g. the quality verifier) actually wires one in.
type ReflexionConfig struct {
	Base
	MaxRetries int
	Trigger    Trigger
	LowQuality func(agent.Result) bool
}

// Reflexion retries a failed (or, if wired, low-quality) task after
// injecting a provider-generated critique of the failed attempt,
// prepended to the task context, up to MaxRetries times (spec §4.J).
func Reflexion(ctx context.Context, cfg ReflexionConfig, prompt string) (agent.Result, Trace, error) {
	trace := Trace{Strategy: "reflexion"}

	currentPrompt := prompt
	result := cfg.newAgent(currentPrompt).Run(ctx)
	if cfg.accrue(&trace, cfg.AgentConfig.Model, provider.Usage{InputTokens: result.InputTokens, OutputTokens: result.OutputTokens}) {
		return result, trace, nil
	}

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if !cfg.shouldRetry(result) {
			break
		}

		critique, usage, err := cfg.critique(ctx, currentPrompt, result)
		if err != nil {
			trace.CloseReason = "completed"
			return result, trace, nil
		}
		if cfg.accrue(&trace, cfg.AgentConfig.Model, usage) {
			return result, trace, nil
		}
		trace.record(StepCritique, critique)

		currentPrompt = fmt.Sprintf("Critique of a prior failed attempt:\n%s\n\n%s", critique, prompt)
		result = cfg.newAgent(currentPrompt).Run(ctx)
		if cfg.accrue(&trace, cfg.AgentConfig.Model, provider.Usage{InputTokens: result.InputTokens, OutputTokens: result.OutputTokens}) {
			return result, trace, nil
		}
	}

	trace.CloseReason = "completed"
	return result, trace, nil
}

func (cfg ReflexionConfig) shouldRetry(result agent.Result) bool {
	failed := !result.Success
	lowQuality := cfg.LowQuality != nil && cfg.LowQuality(result)

	switch cfg.Trigger {
	case TriggerFailure:
		return failed
	case TriggerLowQuality:
		return lowQuality
	case TriggerBoth:
		return failed || lowQuality
	default:
		return failed
	}
}

func (cfg ReflexionConfig) critique(ctx context.Context, prompt string, result agent.Result) (string, provider.Usage, error) {
	reflectPrompt := fmt.Sprintf(
		"The following attempt at this task failed or fell short:\n\nTask: %s\n\nAttempt result:\n%s\n\nError (if any): %v\n\n"+
			"Write a brief critique identifying what went wrong and what the next attempt should do differently.",
		prompt, result.Response, result.Error)

	resp, err := cfg.AgentConfig.Provider.Complete(ctx, provider.Request{
		Messages: []provider.Message{{Role: "user", Content: reflectPrompt}},
		Model:    cfg.AgentConfig.Model,
	})
	if err != nil {
		return "", provider.Usage{}, err
	}
	return resp.Content, resp.Usage, nil
}
