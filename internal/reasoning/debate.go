package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/cortexos/cortexos/internal/agent"
	"github.com/cortexos/cortexos/internal/provider"
)

// defaultPerspectives are the up-to-5 pre-defined debater viewpoints
// (spec §4.J).
var defaultPerspectives = []string{"pragmatist", "purist", "security-focused", "performance-focused", "maintainability-focused"}

// DebateConfig adds Debate's own knobs to Base.
type DebateConfig struct {
	Base
	Rounds              int // R rounds
	Perspectives        []string
	ComplexityThreshold float64
}

// position is one debater's argument in one round.
type position struct {
	perspective string
	text        string
}

// Debate assigns up to 5 pre-defined perspectives to debaters, runs R
// rounds (each round every debater sees prior rounds' arguments), then
// a judge synthesizes the positions into one approach that a standard
// Agent executes. Debate takes no complexity input and never reads
// ComplexityThreshold: every call runs the full debate, whatever the
// task's complexity.
func Debate(ctx context.Context, cfg DebateConfig, prompt string) (agent.Result, Trace, error) {
	trace := Trace{Strategy: "debate"}

	perspectives := cfg.Perspectives
	if len(perspectives) == 0 {
		perspectives = defaultPerspectives
	}
	if len(perspectives) > 5 {
		perspectives = perspectives[:5]
	}
	rounds := cfg.Rounds
	if rounds <= 0 {
		rounds = 1
	}

	var history [][]position
	for round := 0; round < rounds; round++ {
		var roundPositions []position
		for _, persp := range perspectives {
			text, usage, err := cfg.debaterPosition(ctx, prompt, persp, history)
			if err != nil {
				trace.CloseReason = "completed"
				return agent.Result{Success: false, Error: err}, trace, nil
			}
			if cfg.accrue(&trace, cfg.AgentConfig.Model, usage) {
				return agent.Result{Success: false, Error: fmt.Errorf("reasoning: budget exceeded during debate")}, trace, nil
			}
			trace.record(StepPosition, fmt.Sprintf("[%s round %d] %s", persp, round, text))
			roundPositions = append(roundPositions, position{perspective: persp, text: text})
		}
		history = append(history, roundPositions)
	}

	synthesis, usage, err := cfg.judge(ctx, prompt, history)
	if err != nil {
		trace.CloseReason = "completed"
		return agent.Result{Success: false, Error: err}, trace, nil
	}
	if cfg.accrue(&trace, cfg.AgentConfig.Model, usage) {
		return agent.Result{Success: false, Error: fmt.Errorf("reasoning: budget exceeded before synthesis completed")}, trace, nil
	}
	trace.record(StepSynthesis, synthesis)

	approachPrompt := fmt.Sprintf("%s\n\nSynthesized approach from debate:\n%s", prompt, synthesis)
	result := cfg.newAgent(approachPrompt).Run(ctx)
	cfg.accrue(&trace, cfg.AgentConfig.Model, provider.Usage{InputTokens: result.InputTokens, OutputTokens: result.OutputTokens})

	trace.CloseReason = "completed"
	return result, trace, nil
}

func (cfg DebateConfig) debaterPosition(ctx context.Context, prompt, perspective string, history [][]position) (string, provider.Usage, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a debater with a %s perspective. Task under discussion: %s\n", perspective, prompt)
	if len(history) > 0 {
		sb.WriteString("\nPrior rounds:\n")
		for i, round := range history {
			for _, p := range round {
				fmt.Fprintf(&sb, "round %d, %s: %s\n", i, p.perspective, p.text)
			}
		}
	}
	sb.WriteString("\nState your position in 3-5 sentences.")

	resp, err := cfg.AgentConfig.Provider.Complete(ctx, provider.Request{
		Messages: []provider.Message{{Role: "user", Content: sb.String()}},
		Model:    cfg.AgentConfig.Model,
	})
	if err != nil {
		return "", provider.Usage{}, err
	}
	return resp.Content, resp.Usage, nil
}

func (cfg DebateConfig) judge(ctx context.Context, prompt string, history [][]position) (string, provider.Usage, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n\nDebaters argued as follows:\n", prompt)
	for i, round := range history {
		for _, p := range round {
			fmt.Fprintf(&sb, "round %d, %s: %s\n", i, p.perspective, p.text)
		}
	}
	sb.WriteString("\nAs judge, select or synthesize the best approach from the above into one concrete plan.")

	resp, err := cfg.AgentConfig.Provider.Complete(ctx, provider.Request{
		Messages: []provider.Message{{Role: "user", Content: sb.String()}},
		Model:    cfg.AgentConfig.Model,
	})
	if err != nil {
		return "", provider.Usage{}, err
	}
	return resp.Content, resp.Usage, nil
}
