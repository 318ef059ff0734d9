package claude

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cortexos/cortexos/internal/provider"
)

func TestPricingIDDefaultsWhenModelUnset(t *testing.T) {
	p := New("claude", "", 0)
	assert.Equal(t, "anthropic/claude-default", p.PricingID())

	p2 := New("claude", "claude-opus-4", 0)
	assert.Equal(t, "anthropic/claude-opus-4", p2.PricingID())
}

func TestRenderPromptIncludesToolInstructions(t *testing.T) {
	req := provider.Request{
		Messages: []provider.Message{{Role: "user", Content: "add a test"}},
		Tools:    []provider.ToolDef{{Name: "run_tests", Description: "runs the suite", ParamsJSON: `{"type":"object"}`}},
	}
	out := renderPrompt(req)
	assert.Contains(t, out, "add a test")
	assert.Contains(t, out, "run_tests")
	assert.Contains(t, out, "tool_calls")
}

func TestParseStreamLineDelta(t *testing.T) {
	chunk, done := parseStreamLine(`{"delta":"hello"}`)
	assert.Equal(t, "hello", chunk.Delta)
	assert.False(t, done)

	_, done = parseStreamLine(`{"type":"message_stop"}`)
	assert.True(t, done)
}
