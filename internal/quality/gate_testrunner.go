package quality

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// TestGate auto-detects a test runner from config files present in the
// working directory and prefers a JSON-reporter-capable command so
// failures parse structurally; a zero exit code is always a pass
// regardless of whether any output was produced (spec §4.D).
type TestGate struct {
	Runner CommandRunner
	// Detectors are tried in order; the first whose ConfigFile exists
	// in the working directory is used.
	Detectors []testRunnerDetector
}

type testRunnerDetector struct {
	ConfigFile string
	Command    string
	JSONLines  bool
}

func NewTestGate(runner CommandRunner) *TestGate {
	return &TestGate{
		Runner: runner,
		Detectors: []testRunnerDetector{
			{ConfigFile: "go.mod", Command: "go test -json ./...", JSONLines: true},
			{ConfigFile: "package.json", Command: "npm test --silent", JSONLines: false},
			{ConfigFile: "pyproject.toml", Command: "pytest -q", JSONLines: false},
		},
	}
}

func (g *TestGate) Name() string        { return "test" }
func (g *TestGate) Description() string { return "runs the project's test suite and parses failures" }

func (g *TestGate) Run(ctx context.Context, qc Context) (Result, error) {
	start := time.Now()

	var chosen *testRunnerDetector
	for i := range g.Detectors {
		d := &g.Detectors[i]
		if _, err := os.Stat(filepath.Join(qc.WorkingDir, d.ConfigFile)); err == nil {
			chosen = d
			break
		}
	}
	if chosen == nil {
		return newResult(g.Name(), nil, start), nil
	}

	output, exitCode, err := g.Runner.Run(ctx, qc.WorkingDir, chosen.Command)
	if err != nil {
		return Result{}, err
	}
	if exitCode == 0 {
		return newResult(g.Name(), nil, start), nil
	}

	var issues []Issue
	if chosen.JSONLines {
		issues = parseGoTestJSON(output)
	}
	if len(issues) == 0 {
		issues = parseTestFailureLines(output)
	}
	if len(issues) == 0 {
		issues = append(issues, Issue{Severity: SeverityError, Message: output})
	}
	return newResult(g.Name(), issues, start), nil
}

type goTestEvent struct {
	Action  string
	Package string
	Test    string
	Output  string
}

// parseGoTestJSON reads test2json-formatted lines (`go test -json`
// output), one JSON object per line, and turns "fail" actions into
// issues.
func parseGoTestJSON(output string) []Issue {
	var issues []Issue
	for _, line := range splitLines(output) {
		if line == "" {
			continue
		}
		var ev goTestEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.Action != "fail" || ev.Test == "" {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityError,
			Message:  "test failed: " + ev.Test,
			File:     ev.Package,
			Rule:     ev.Test,
		})
	}
	return issues
}

var testFailureLineRe = regexp.MustCompile(`(?i)\b(FAIL|FAILED|Error)\b[:\s]+(.+)`)

// parseTestFailureLines is the fallback for runners with no
// structured reporter: scan for conventional "FAIL ..." lines.
func parseTestFailureLines(output string) []Issue {
	var issues []Issue
	for _, line := range splitLines(output) {
		m := testFailureLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		issues = append(issues, Issue{Severity: SeverityError, Message: line})
	}
	return issues
}
