package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedGate struct {
	name   string
	result Result
	err    error
	calls  int
}

func (g *scriptedGate) Name() string        { return g.name }
func (g *scriptedGate) Description() string { return "scripted test gate" }
func (g *scriptedGate) Run(ctx context.Context, qc Context) (Result, error) {
	g.calls++
	return g.result, g.err
}

func TestVerifierCollectsAllNonFatalResults(t *testing.T) {
	a := &scriptedGate{name: "a", result: Result{Gate: "a", Passed: false, Issues: []Issue{{Severity: SeverityWarning}}}}
	b := &scriptedGate{name: "b", result: Result{Gate: "b", Passed: true}}

	v := NewVerifier(GateConfig{Gate: a, Fatal: false}, GateConfig{Gate: b, Fatal: false})
	report, err := v.Verify(t.Context(), Context{})
	require.NoError(t, err)
	assert.False(t, report.Passed)
	assert.Empty(t, report.StoppedAt)
	require.Len(t, report.Results, 2)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestVerifierStopsAtFirstFatalFailure(t *testing.T) {
	a := &scriptedGate{name: "a", result: Result{Gate: "a", Passed: false}}
	b := &scriptedGate{name: "b", result: Result{Gate: "b", Passed: true}}

	v := NewVerifier(GateConfig{Gate: a, Fatal: true}, GateConfig{Gate: b, Fatal: false})
	report, err := v.Verify(t.Context(), Context{})
	require.NoError(t, err)
	assert.False(t, report.Passed)
	assert.Equal(t, "a", report.StoppedAt)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 0, b.calls, "gate after a fatal failure must never run")
}
