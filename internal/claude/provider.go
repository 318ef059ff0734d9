package claude

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cortexos/cortexos/internal/provider"
)

// Provider adapts the Claude CLI to the provider.Provider contract.
// It is CortexOS's one concrete, runnable default; every other
// component only ever depends on the provider.Provider interface.
type Provider struct {
	inv   *invoker
	Model string
}

// New returns a Provider that shells out to claudePath (use "claude"
// to resolve from PATH) with the given default timeout and model.
func New(claudePath, model string, timeout time.Duration) *Provider {
	inv := newInvoker()
	if claudePath != "" {
		inv.ClaudePath = claudePath
	}
	inv.Timeout = timeout
	return &Provider{inv: inv, Model: model}
}

// responseEnvelope is the JSON shape agents are instructed to emit
// when tool calls are offered, so Complete can recover structured
// ToolCalls without depending on any particular model's native
// tool-calling wire format (spec §9: defensive JSON-in-prose parsing).
type responseEnvelope struct {
	Content   string                 `json:"content"`
	ToolCalls []envelopeToolCall     `json:"tool_calls"`
	Done      bool                   `json:"done"`
	Extra     map[string]interface{} `json:"-"`
}

type envelopeToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (p *Provider) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	prompt := renderPrompt(req)
	model := req.Model
	if model == "" {
		model = p.Model
	}

	out, err := p.inv.invoke(ctx, cliRequest{
		Prompt:      prompt,
		Model:       model,
		Schema:      toolSchema(req.Tools),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return provider.Response{}, err
	}

	parsed, err := parseResponse(out.RawOutput)
	if err != nil {
		return provider.Response{}, err
	}

	resp := provider.Response{
		Content: parsed.Content,
		Model:   model,
		Usage: provider.Usage{
			InputTokens:  parsed.InputTokens,
			OutputTokens: parsed.OutputTokens,
		},
		FinishReason: provider.FinishStop,
	}

	var env responseEnvelope
	if json.Unmarshal([]byte(parsed.Content), &env) == nil && len(env.ToolCalls) > 0 {
		resp.Content = env.Content
		resp.FinishReason = provider.FinishToolCalls
		for _, tc := range env.ToolCalls {
			resp.ToolCalls = append(resp.ToolCalls, provider.ToolCall{
				ID:            tc.ID,
				Name:          tc.Name,
				ArgumentsJSON: string(tc.Arguments),
			})
		}
	}

	return resp, nil
}

// Stream runs Claude CLI in line-delimited streaming mode and relays
// each JSON event as a Chunk. The channel is closed once the process
// exits or ctx is cancelled.
func (p *Provider) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	model := req.Model
	if model == "" {
		model = p.Model
	}

	args := []string{"--system-prompt", defaultSystemPrompt, "-p", renderPrompt(req), "--output-format", "stream-json"}
	if model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, "--settings", `{"disableAllHooks": true}`)

	cmd := exec.CommandContext(ctx, p.inv.ClaudePath, args...)
	setCleanEnv(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stream pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start claude stream: %w", err)
	}

	ch := make(chan provider.Chunk)
	go func() {
		defer close(ch)
		defer cmd.Wait()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			chunk, done := parseStreamLine(line)
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
			if done {
				return
			}
		}
	}()

	return ch, nil
}

func parseStreamLine(line string) (provider.Chunk, bool) {
	var evt map[string]interface{}
	if err := json.Unmarshal([]byte(line), &evt); err != nil {
		return provider.Chunk{Delta: line}, false
	}
	if t, _ := evt["type"].(string); t == "message_stop" || t == "result" {
		return provider.Chunk{Done: true, FinishReason: provider.FinishStop}, true
	}
	if delta, ok := evt["delta"].(string); ok {
		return provider.Chunk{Delta: delta}, false
	}
	if delta, ok := evt["text"].(string); ok {
		return provider.Chunk{Delta: delta}, false
	}
	return provider.Chunk{}, false
}

func (p *Provider) IsAvailable(ctx context.Context) bool {
	path := p.inv.ClaudePath
	if path == "" {
		path = "claude"
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(checkCtx, path, "--version")
	setCleanEnv(cmd)
	return cmd.Run() == nil
}

func (p *Provider) PricingID() string {
	model := p.Model
	if model == "" {
		model = "claude-default"
	}
	return "anthropic/" + model
}

// renderPrompt flattens a multi-turn request into the single prompt
// string Claude CLI's -p flag accepts, plus an instruction to emit
// tool calls via the responseEnvelope JSON shape when tools are offered.
func renderPrompt(req provider.Request) string {
	var b strings.Builder
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", strings.ToUpper(m.Role), m.Content)
	}
	if len(req.Tools) > 0 {
		b.WriteString("Available tools:\n")
		for _, t := range req.Tools {
			fmt.Fprintf(&b, "- %s: %s (args schema: %s)\n", t.Name, t.Description, t.ParamsJSON)
		}
		b.WriteString("To call a tool, respond with JSON: {\"content\":\"...\",\"tool_calls\":[{\"id\":\"...\",\"name\":\"...\",\"arguments\":{...}}]}\n")
	}
	return b.String()
}

// toolSchema builds a loose JSON schema hint for --json-schema when
// tools are offered, nudging the model toward the envelope shape.
func toolSchema(tools []provider.ToolDef) string {
	if len(tools) == 0 {
		return ""
	}
	return `{"type":"object","properties":{"content":{"type":"string"},"tool_calls":{"type":"array"}},"required":["content"]}`
}

var _ provider.Provider = (*Provider)(nil)
