package claude

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexos/cortexos/internal/provider"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name          string
		rawOutput     []byte
		wantContent   string
		wantSessionID string
	}{
		{
			name:          "valid JSON with content field",
			rawOutput:     []byte(`{"content":"Hello World","error":"","session_id":"abc-123"}`),
			wantContent:   "Hello World",
			wantSessionID: "abc-123",
		},
		{
			name:          "valid JSON without session_id",
			rawOutput:     []byte(`{"content":"Task completed","error":""}`),
			wantContent:   "Task completed",
			wantSessionID: "",
		},
		{
			name:          "structured_output from --json-schema",
			rawOutput:     []byte(`{"type":"result","session_id":"test-123","structured_output":{"status":"success","summary":"Done"}}`),
			wantContent:   `{"status":"success","summary":"Done"}`,
			wantSessionID: "test-123",
		},
		{
			name:          "code-fenced JSON output - fallback extraction",
			rawOutput:     []byte("Here is the result:\n```json\n{\"status\":\"success\"}\n```\n"),
			wantContent:   `{"status":"success"}`,
			wantSessionID: "",
		},
		{
			name:          "result field from qc-style agents",
			rawOutput:     []byte(`{"result":"all good","session_id":"s1"}`),
			wantContent:   "all good",
			wantSessionID: "s1",
		},
		{
			name:      "usage extraction",
			rawOutput: []byte(`{"content":"hi","usage":{"input_tokens":12,"output_tokens":34}}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := parseResponse(tt.rawOutput)
			require.NoError(t, err)
			if tt.wantContent != "" {
				assert.Equal(t, tt.wantContent, out.Content)
			}
			assert.Equal(t, tt.wantSessionID, out.SessionID)
		})
	}

	t.Run("usage fields populate", func(t *testing.T) {
		out, err := parseResponse([]byte(`{"content":"hi","usage":{"input_tokens":12,"output_tokens":34}}`))
		require.NoError(t, err)
		assert.Equal(t, int64(12), out.InputTokens)
		assert.Equal(t, int64(34), out.OutputTokens)
	})
}

func TestClassifyTransientVsPermanent(t *testing.T) {
	transient := classify(assertErr("rate limit exceeded"), "")
	var te interface{ Transient() bool }
	require.ErrorAs(t, transient, &te)
	assert.True(t, te.Transient())

	permanent := classify(assertErr("invalid argument"), "usage: claude [flags]")
	assert.False(t, provider.IsTransient(permanent))
}

func TestProviderIsAvailableFalseForMissingBinary(t *testing.T) {
	p := New("/nonexistent/claude-binary-xyz", "claude-3", time.Second)
	assert.False(t, p.IsAvailable(context.Background()))
}

type errString string

func (e errString) Error() string { return string(e) }

func assertErr(s string) error { return errString(s) }
