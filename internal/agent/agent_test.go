package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexos/cortexos/internal/provider"
	"github.com/cortexos/cortexos/internal/toolregistry"
)

// scriptedProvider replays a fixed sequence of responses/errors,
// letting tests drive the NEED_COMPLETION/INTERPRET_RESPONSE loop
// deterministically without a real Provider.
type scriptedProvider struct {
	calls   int
	script  []func() (provider.Response, error)
	pricing string
}

func (p *scriptedProvider) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	idx := p.calls
	p.calls++
	if idx >= len(p.script) {
		return provider.Response{FinishReason: provider.FinishStop}, nil
	}
	return p.script[idx]()
}

func (p *scriptedProvider) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	return nil, errors.New("not implemented")
}
func (p *scriptedProvider) IsAvailable(ctx context.Context) bool { return true }
func (p *scriptedProvider) PricingID() string                   { return p.pricing }

type transientTestErr struct{}

func (transientTestErr) Error() string   { return "rate limited" }
func (transientTestErr) Transient() bool { return true }

func newTestRegistry() *toolregistry.Executor {
	reg := toolregistry.NewRegistry()
	_ = reg.Register(toolregistry.Tool{
		Name:   "file_write",
		Schema: toolregistry.ParamSchema{Type: "object", Properties: map[string]toolregistry.PropSchema{"path": {Type: "string"}, "content": {Type: "string"}}},
		Invoke: func(ctx context.Context, args map[string]any, tc toolregistry.ToolContext) toolregistry.ToolResult {
			return toolregistry.ToolResult{Success: true, Output: "wrote file"}
		},
	})
	return toolregistry.NewExecutor(reg)
}

func TestAgentCompletesWithoutToolCalls(t *testing.T) {
	p := &scriptedProvider{script: []func() (provider.Response, error){
		func() (provider.Response, error) {
			return provider.Response{Content: "done", FinishReason: provider.FinishStop, Usage: provider.Usage{InputTokens: 10, OutputTokens: 5}}, nil
		},
	}}
	a := New(Config{Role: RoleDeveloper, Provider: p, Tools: newTestRegistry(), MaxIterations: 3}, "do the thing")

	result := a.Run(context.Background())
	require.True(t, result.Success)
	assert.Equal(t, "done", result.Response)
	assert.Equal(t, int64(10), result.InputTokens)
	assert.Equal(t, int64(5), result.OutputTokens)
}

func TestAgentExecutesToolCallsAndHarvestsFileChanges(t *testing.T) {
	p := &scriptedProvider{script: []func() (provider.Response, error){
		func() (provider.Response, error) {
			return provider.Response{
				FinishReason: provider.FinishToolCalls,
				ToolCalls:    []provider.ToolCall{{ID: "1", Name: "file_write", ArgumentsJSON: `{"path":"a.go","content":"package a"}`}},
			}, nil
		},
		func() (provider.Response, error) {
			return provider.Response{Content: "all done", FinishReason: provider.FinishStop}, nil
		},
	}}
	a := New(Config{Role: RoleDeveloper, Provider: p, Tools: newTestRegistry(), MaxIterations: 5}, "write a file")

	result := a.Run(context.Background())
	require.True(t, result.Success)
	require.Len(t, result.FileChanges, 1)
	assert.Equal(t, "a.go", result.FileChanges[0].Path)
	assert.Equal(t, "create", result.FileChanges[0].Type)

	history := a.History()
	var sawToolMsg bool
	for _, m := range history {
		if m.Role == "tool" && m.ToolCallID == "1" {
			sawToolMsg = true
		}
	}
	assert.True(t, sawToolMsg, "tool result must be appended as a tool message bound to its call id")
}

func TestAgentIterationLimitFails(t *testing.T) {
	infinite := func() (provider.Response, error) {
		return provider.Response{
			FinishReason: provider.FinishToolCalls,
			ToolCalls:    []provider.ToolCall{{ID: "x", Name: "file_write", ArgumentsJSON: `{"path":"a.go"}`}},
		}, nil
	}
	p := &scriptedProvider{script: []func() (provider.Response, error){infinite, infinite, infinite}}
	a := New(Config{Role: RoleDeveloper, Provider: p, Tools: newTestRegistry(), MaxIterations: 2}, "loop forever")

	result := a.Run(context.Background())
	require.False(t, result.Success)
	require.Error(t, result.Error)
}

func TestAgentPermanentProviderErrorFailsImmediately(t *testing.T) {
	calls := 0
	p := &scriptedProvider{script: []func() (provider.Response, error){
		func() (provider.Response, error) {
			calls++
			return provider.Response{}, errors.New("invalid request: bad schema")
		},
	}}
	a := New(Config{Role: RoleDeveloper, Provider: p, Tools: newTestRegistry(), MaxIterations: 3}, "x")

	result := a.Run(context.Background())
	require.False(t, result.Success)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestAgentRetriesTransientProviderError(t *testing.T) {
	p := &scriptedProvider{script: []func() (provider.Response, error){
		func() (provider.Response, error) { return provider.Response{}, transientTestErr{} },
		func() (provider.Response, error) {
			return provider.Response{Content: "recovered", FinishReason: provider.FinishStop}, nil
		},
	}}
	a := New(Config{Role: RoleDeveloper, Provider: p, Tools: newTestRegistry(), MaxIterations: 3}, "x")

	result := a.Run(context.Background())
	require.True(t, result.Success)
	assert.Equal(t, "recovered", result.Response)
}
