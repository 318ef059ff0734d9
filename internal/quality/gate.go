// Package quality implements the pluggable Quality Gates and the
// targeted auto-fixer (spec §4.D): a gate runs a project-local tool
// against the files an agent changed, parses whatever that tool emits
// into typed issues, and the verifier aggregates the results so the
// engine can decide whether a task's output is acceptable.
package quality

import (
	"context"
	"time"
)

// Severity is the closed set of issue severities (spec §3).
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Context carries what a gate needs to inspect a task's output
// (spec §3 QualityContext).
type Context struct {
	WorkingDir   string
	FilesChanged []string
	ExecutionID  string
}

// Issue is GateIssue from spec §3.
type Issue struct {
	Severity    Severity
	Message     string
	File        string
	Line        int
	Column      int
	Rule        string
	AutoFixable bool
	Suggestion  string
}

// Result is GateResult from spec §3. Passed is true iff there are no
// error-severity issues.
type Result struct {
	Gate     string
	Passed   bool
	Issues   []Issue
	Duration time.Duration
}

func newResult(gate string, issues []Issue, start time.Time) Result {
	passed := true
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			passed = false
			break
		}
	}
	return Result{Gate: gate, Passed: passed, Issues: issues, Duration: time.Since(start)}
}

// Gate is `{name, description, run(context) -> GateResult}` (spec §4.D).
type Gate interface {
	Name() string
	Description() string
	Run(ctx context.Context, qc Context) (Result, error)
}

// CommandRunner abstracts shell command execution so gates are
// testable without a real toolchain on disk.
type CommandRunner interface {
	Run(ctx context.Context, workDir, command string) (output string, exitCode int, err error)
}
