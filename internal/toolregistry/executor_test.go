package toolregistry

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() Tool {
	return Tool{
		Name: "echo",
		Schema: ParamSchema{
			Type:       "object",
			Properties: map[string]PropSchema{"msg": {Type: "string"}},
			Required:   []string{"msg"},
		},
		Invoke: func(ctx context.Context, args map[string]any, tc ToolContext) ToolResult {
			return ToolResult{Success: true, Output: args["msg"].(string)}
		},
	}
}

func TestExecutorValidatesRequiredArgs(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(echoTool()))
	ex := NewExecutor(reg)

	res := ex.Execute(context.Background(), "echo", map[string]any{}, ToolContext{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "missing required field")
}

func TestExecutorTruncatesOutput(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(echoTool()))
	ex := NewExecutor(reg)
	ex.OutputCap = 20

	res := ex.Execute(context.Background(), "echo", map[string]any{"msg": strings.Repeat("a", 100)}, ToolContext{})
	assert.True(t, res.Success)
	assert.LessOrEqual(t, len(res.Output), 20)
	assert.Contains(t, res.Output, "truncated")
}

func TestExecutorNeverThrowsOnPanic(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Tool{
		Name:   "boom",
		Schema: ParamSchema{Type: "object"},
		Invoke: func(ctx context.Context, args map[string]any, tc ToolContext) ToolResult {
			panic("internal failure")
		},
	}))
	ex := NewExecutor(reg)

	var res ToolResult
	assert.NotPanics(t, func() {
		res = ex.Execute(context.Background(), "boom", nil, ToolContext{})
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "internal failure")
}

func TestExecutorUnknownTool(t *testing.T) {
	ex := NewExecutor(NewRegistry())
	res := ex.Execute(context.Background(), "nope", nil, ToolContext{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown tool")
}

func TestDangerousShellCommandDetection(t *testing.T) {
	_, bad := IsDangerousShellCommand("rm -rf / --no-preserve-root")
	assert.True(t, bad)

	_, ok := IsDangerousShellCommand("ls -la")
	assert.False(t, ok)
}
