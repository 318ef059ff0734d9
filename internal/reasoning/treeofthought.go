package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cortexos/cortexos/internal/agent"
	"github.com/cortexos/cortexos/internal/provider"
)

// TreeOfThoughtConfig adds Tree-of-Thought's own knobs to Base.
type TreeOfThoughtConfig struct {
	Base
	Candidates int // N candidate approaches to generate
}

// TreeOfThought generates N candidate approach descriptions in one
// provider call, scores them in a second batch call (the provider
// returns a JSON array of 1-10 scores, normalized to 0-1), and
// executes the top-scored approach via a standard Agent with the
// approach injected as context (spec §4.J).
func TreeOfThought(ctx context.Context, cfg TreeOfThoughtConfig, prompt string) (agent.Result, Trace, error) {
	trace := Trace{Strategy: "tree-of-thought"}
	n := cfg.Candidates
	if n <= 0 {
		n = 3
	}

	candidates, usage, err := cfg.generateCandidates(ctx, prompt, n)
	if err != nil {
		trace.CloseReason = "completed"
		return agent.Result{Success: false, Error: err}, trace, nil
	}
	if cfg.accrue(&trace, cfg.AgentConfig.Model, usage) {
		return agent.Result{Success: false, Error: fmt.Errorf("reasoning: budget exceeded before candidate generation completed")}, trace, nil
	}
	for _, c := range candidates {
		trace.record(StepCandidate, c)
	}

	scores, usage, err := cfg.scoreCandidates(ctx, prompt, candidates)
	if err != nil {
		trace.CloseReason = "completed"
		return agent.Result{Success: false, Error: err}, trace, nil
	}
	if cfg.accrue(&trace, cfg.AgentConfig.Model, usage) {
		return agent.Result{Success: false, Error: fmt.Errorf("reasoning: budget exceeded before scoring completed")}, trace, nil
	}
	for i, s := range scores {
		if i < len(candidates) {
			trace.record(StepScore, fmt.Sprintf("%.2f: %s", s, candidates[i]))
		}
	}

	bestIdx := 0
	bestScore := -1.0
	for i, s := range scores {
		if i < len(candidates) && s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}

	approachPrompt := fmt.Sprintf("%s\n\nChosen approach:\n%s", prompt, candidates[bestIdx])
	result := cfg.newAgent(approachPrompt).Run(ctx)
	cfg.accrue(&trace, cfg.AgentConfig.Model, provider.Usage{InputTokens: result.InputTokens, OutputTokens: result.OutputTokens})

	trace.CloseReason = "completed"
	return result, trace, nil
}

func (cfg TreeOfThoughtConfig) generateCandidates(ctx context.Context, prompt string, n int) ([]string, provider.Usage, error) {
	genPrompt := fmt.Sprintf(
		"Propose %d distinct approaches to accomplish the following task. "+
			"Respond with a JSON array of %d strings, each a short approach description. Task: %s", n, n, prompt)

	resp, err := cfg.AgentConfig.Provider.Complete(ctx, provider.Request{
		Messages: []provider.Message{{Role: "user", Content: genPrompt}},
		Model:    cfg.AgentConfig.Model,
	})
	if err != nil {
		return nil, provider.Usage{}, err
	}

	var candidates []string
	if err := json.Unmarshal([]byte(extractJSONArray(resp.Content)), &candidates); err != nil {
		return nil, resp.Usage, fmt.Errorf("tree-of-thought: invalid candidate JSON: %w", err)
	}
	return candidates, resp.Usage, nil
}

func (cfg TreeOfThoughtConfig) scoreCandidates(ctx context.Context, prompt string, candidates []string) ([]float64, provider.Usage, error) {
	scorePrompt := fmt.Sprintf(
		"Score each of the following approaches to this task from 1 (worst) to 10 (best). "+
			"Respond with a JSON array of %d numbers in the same order, nothing else.\n\nTask: %s\n\nApproaches:\n%s",
		len(candidates), prompt, strings.Join(candidates, "\n"))

	resp, err := cfg.AgentConfig.Provider.Complete(ctx, provider.Request{
		Messages: []provider.Message{{Role: "user", Content: scorePrompt}},
		Model:    cfg.AgentConfig.Model,
	})
	if err != nil {
		return nil, provider.Usage{}, err
	}

	var raw []float64
	if err := json.Unmarshal([]byte(extractJSONArray(resp.Content)), &raw); err != nil {
		return nil, resp.Usage, fmt.Errorf("tree-of-thought: invalid score JSON: %w", err)
	}

	normalized := make([]float64, len(raw))
	for i, s := range raw {
		normalized[i] = (s - 1) / 9
	}
	return normalized, resp.Usage, nil
}

// extractJSONArray tolerates a provider response that wraps its JSON
// array in prose or a code fence (spec §9 — defensive parsing).
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
