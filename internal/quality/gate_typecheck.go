package quality

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// TypeCheckGate runs the project's type-checker CLI, but only when a
// config file and at least one changed typed-source file are present
// (spec §4.D) — otherwise it is a silent pass, not a skip-as-error.
type TypeCheckGate struct {
	Runner     CommandRunner
	ConfigFile string // e.g. "go.mod"
	Command    string // e.g. "go vet ./..."
	Extensions []string
}

func NewTypeCheckGate(runner CommandRunner) *TypeCheckGate {
	return &TypeCheckGate{
		Runner:     runner,
		ConfigFile: "go.mod",
		Command:    "go vet ./...",
		Extensions: []string{".go"},
	}
}

func (g *TypeCheckGate) Name() string        { return "type-check" }
func (g *TypeCheckGate) Description() string { return "runs the project type-checker over changed typed-source files" }

var typeCheckLineRe = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*(.*)$`)

func (g *TypeCheckGate) Run(ctx context.Context, qc Context) (Result, error) {
	start := time.Now()

	if _, err := os.Stat(filepath.Join(qc.WorkingDir, g.ConfigFile)); err != nil {
		return newResult(g.Name(), nil, start), nil
	}
	if !anyHasExtension(qc.FilesChanged, g.Extensions) {
		return newResult(g.Name(), nil, start), nil
	}

	output, exitCode, err := g.Runner.Run(ctx, qc.WorkingDir, g.Command)
	if err != nil {
		return Result{}, err
	}
	if exitCode == 0 {
		return newResult(g.Name(), nil, start), nil
	}

	issues := parseTypeCheckOutput(output)
	if len(issues) == 0 {
		issues = append(issues, Issue{Severity: SeverityError, Message: output})
	}
	return newResult(g.Name(), issues, start), nil
}

func parseTypeCheckOutput(output string) []Issue {
	var issues []Issue
	for _, line := range splitLines(output) {
		m := typeCheckLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNum, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		issues = append(issues, Issue{
			Severity: SeverityError,
			Message:  m[4],
			File:     m[1],
			Line:     lineNum,
			Column:   col,
		})
	}
	return issues
}

func anyHasExtension(files []string, exts []string) bool {
	for _, f := range files {
		ext := filepath.Ext(f)
		for _, e := range exts {
			if ext == e {
				return true
			}
		}
	}
	return false
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
