// Package agent implements the single-task execution state machine
// (spec §4.F): drive a Provider to completion, interpreting and
// executing tool calls along the way, and harvest the result.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/cortexos/cortexos/internal/cortexerr"
	"github.com/cortexos/cortexos/internal/provider"
	"github.com/cortexos/cortexos/internal/toolregistry"
)

// Role is the runtime role identifier a task is dispatched under.
type Role string

const (
	RoleResearch  Role = "research"
	RoleDesign    Role = "design"
	RoleDeveloper Role = "developer"
	RoleTester    Role = "tester"
	RoleValidator Role = "validator"
)

// KnownRoles is the closed role set the Decomposer validates
// LLM-produced tasks against (spec §4.H).
var KnownRoles = map[Role]bool{
	RoleResearch: true, RoleDesign: true, RoleDeveloper: true, RoleTester: true, RoleValidator: true,
}

// Config configures one Agent instance (spec §4.F).
type Config struct {
	Role          Role
	Provider      provider.Provider
	Tools         *toolregistry.Executor
	ToolNames     []string // allowed subset; empty means all registered tools
	ToolContext   toolregistry.ToolContext
	SystemPrompt  string
	Temperature   float64
	MaxIterations int
	Model         string
}

// Message is one append-only entry in an Agent's conversation history.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []provider.ToolCall
}

// FileChange is one file mutation harvested from a tool's metadata.
type FileChange struct {
	Path    string
	Type    string // create, modify, delete
	Content string
}

// Result is AgentResult from spec §3.
type Result struct {
	Success      bool
	Response     string
	FileChanges  []FileChange
	InputTokens  int64
	OutputTokens int64
	Error        error
	Reasoning    string
}

// Agent drives one task through the NEED_COMPLETION / INTERPRET_RESPONSE
// / EXECUTE_TOOLS loop until a terminal answer or the iteration cap.
type Agent struct {
	cfg     Config
	history []Message
}

const defaultMaxIterations = 10

// New constructs an Agent seeded with the system prompt and the task
// prompt as the first two messages.
func New(cfg Config, taskPrompt string) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	history := []Message{}
	if cfg.SystemPrompt != "" {
		history = append(history, Message{Role: "system", Content: cfg.SystemPrompt})
	}
	history = append(history, Message{Role: "user", Content: taskPrompt})
	return &Agent{cfg: cfg, history: history}
}

// History returns a copy of the append-only message log.
func (a *Agent) History() []Message {
	out := make([]Message, len(a.history))
	copy(out, a.history)
	return out
}

// Run executes the state machine to completion (spec §4.F).
func (a *Agent) Run(ctx context.Context) Result {
	var (
		inputTokens, outputTokens int64
		fileChanges               []FileChange
	)

	for iteration := 1; ; iteration++ {
		if iteration > a.cfg.MaxIterations {
			return Result{
				Success:      false,
				Error:        cortexerr.New(cortexerr.AgentIterationLimit, string(a.cfg.Role), fmt.Sprintf("agent exceeded %d iterations", a.cfg.MaxIterations)),
				InputTokens:  inputTokens,
				OutputTokens: outputTokens,
				FileChanges:  fileChanges,
			}
		}

		select {
		case <-ctx.Done():
			return Result{Success: false, Error: cortexerr.New(cortexerr.Cancelled, string(a.cfg.Role), ctx.Err().Error()), InputTokens: inputTokens, OutputTokens: outputTokens, FileChanges: fileChanges}
		default:
		}

		resp, err := a.completeWithRetry(ctx)
		if err != nil {
			return Result{Success: false, Error: err, InputTokens: inputTokens, OutputTokens: outputTokens, FileChanges: fileChanges}
		}
		inputTokens += resp.Usage.InputTokens
		outputTokens += resp.Usage.OutputTokens

		a.history = append(a.history, Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})

		if len(resp.ToolCalls) == 0 {
			return Result{
				Success:      true,
				Response:     resp.Content,
				FileChanges:  fileChanges,
				InputTokens:  inputTokens,
				OutputTokens: outputTokens,
			}
		}

		for _, tc := range resp.ToolCalls {
			args := map[string]any{}
			_ = json.Unmarshal([]byte(tc.ArgumentsJSON), &args)

			result := a.cfg.Tools.Execute(ctx, tc.Name, args, a.cfg.ToolContext)

			a.history = append(a.history, Message{
				Role:       "tool",
				Content:    toolResultContent(result),
				ToolCallID: tc.ID,
			})

			if result.Success {
				if fc, ok := harvestFileChange(tc.Name, args, result); ok {
					fileChanges = append(fileChanges, fc)
				}
			}
		}
	}
}

// completeWithRetry calls the provider, retrying transient errors with
// exponential backoff; permanent errors fail the agent immediately
// (spec §4.F failure semantics).
func (a *Agent) completeWithRetry(ctx context.Context) (provider.Response, error) {
	req := provider.Request{
		Messages:    toProviderMessages(a.history),
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		Tools:       a.allowedToolDefs(),
	}

	const maxRetries = 4
	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := a.cfg.Provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		stage := string(a.cfg.Role)
		if !provider.IsTransient(err) {
			return provider.Response{}, cortexerr.Wrap(cortexerr.ProviderPermanent, stage, err)
		}
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return provider.Response{}, cortexerr.New(cortexerr.Cancelled, stage, ctx.Err().Error())
		case <-time.After(backoff):
		}
		backoff = time.Duration(math.Min(float64(backoff*2), float64(30*time.Second)))
	}

	return provider.Response{}, cortexerr.Wrap(cortexerr.ProviderTransient, string(a.cfg.Role), lastErr)
}

// allowedToolDefs restricts tool offers to cfg.ToolNames when set.
func (a *Agent) allowedToolDefs() []provider.ToolDef {
	if a.cfg.Tools == nil {
		return nil
	}
	names := a.cfg.ToolNames
	if len(names) == 0 {
		names = a.cfg.Tools.Registry.Names()
	}
	defs := make([]provider.ToolDef, 0, len(names))
	for _, n := range names {
		t, ok := a.cfg.Tools.Registry.Get(n)
		if !ok {
			continue
		}
		schemaJSON, _ := json.Marshal(t.Schema)
		defs = append(defs, provider.ToolDef{Name: t.Name, Description: t.Description, ParamsJSON: string(schemaJSON)})
	}
	return defs
}

func toProviderMessages(history []Message) []provider.Message {
	out := make([]provider.Message, 0, len(history))
	for _, m := range history {
		out = append(out, provider.Message{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID})
	}
	return out
}

func toolResultContent(r toolregistry.ToolResult) string {
	if r.Success {
		return r.Output
	}
	return "error: " + r.Error
}

// harvestFileChange recovers a file mutation from a tool's declared
// metadata (spec §4.F: "tools whose metadata declares them").
func harvestFileChange(toolName string, args map[string]any, result toolregistry.ToolResult) (FileChange, bool) {
	kind, ok := result.Metadata["file_change_type"].(string)
	if !ok {
		switch toolName {
		case "file_write", "create_file":
			kind = "create"
		case "file_edit", "edit_file":
			kind = "modify"
		case "file_delete", "delete_file":
			kind = "delete"
		default:
			return FileChange{}, false
		}
	}
	path, _ := args["path"].(string)
	if path == "" {
		path, _ = result.Metadata["path"].(string)
	}
	if path == "" {
		return FileChange{}, false
	}
	content, _ := args["content"].(string)
	return FileChange{Path: path, Type: kind, Content: content}, true
}
