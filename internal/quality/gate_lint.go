package quality

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// LintGate relies on the ecosystem-standard linter when the project
// carries its config; absence of config is a pass, not a failure
// (spec §4.D).
type LintGate struct {
	Runner     CommandRunner
	ConfigFile string
	Command    string
	FixCommand string
}

func NewLintGate(runner CommandRunner) *LintGate {
	return &LintGate{
		Runner:     runner,
		ConfigFile: ".golangci.yml",
		Command:    "golangci-lint run --out-format line-number",
		FixCommand: "golangci-lint run --fix",
	}
}

func (g *LintGate) Name() string        { return "lint" }
func (g *LintGate) Description() string { return "runs the configured linter over the working tree" }

var lintLineRe = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*(.*?)\s*\(([\w-]+)\)\s*$`)

func (g *LintGate) Run(ctx context.Context, qc Context) (Result, error) {
	start := time.Now()

	if _, err := os.Stat(filepath.Join(qc.WorkingDir, g.ConfigFile)); err != nil {
		return newResult(g.Name(), nil, start), nil
	}

	output, exitCode, err := g.Runner.Run(ctx, qc.WorkingDir, g.Command)
	if err != nil {
		return Result{}, err
	}
	if exitCode == 0 {
		return newResult(g.Name(), nil, start), nil
	}

	var issues []Issue
	for _, line := range splitLines(output) {
		m := lintLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNum, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		issues = append(issues, Issue{
			Severity:    SeverityError,
			Message:     m[4],
			File:        m[1],
			Line:        lineNum,
			Column:      col,
			Rule:        m[5],
			AutoFixable: true,
		})
	}
	if len(issues) == 0 {
		issues = append(issues, Issue{Severity: SeverityError, Message: output, AutoFixable: true})
	}
	return newResult(g.Name(), issues, start), nil
}
