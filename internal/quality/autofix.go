package quality

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// AutoFixer splits a failing verifier report into two remediation
// classes: rule-attributed lint issues delegated to the linter's
// --fix mode, and debugger/trace statements removed in place. Both
// write back through the working directory (spec §4.D).
type AutoFixer struct {
	LintGate *LintGate
	Runner   CommandRunner
}

func NewAutoFixer(lint *LintGate, runner CommandRunner) *AutoFixer {
	return &AutoFixer{LintGate: lint, Runner: runner}
}

// FixReport records what the auto-fixer actually changed.
type FixReport struct {
	LintFixRan                bool
	LintFixOutput             string
	DebuggerStatementsRemoved []RemovedStatement
}

// RemovedStatement identifies one debugger/trace line deleted from a file.
type RemovedStatement struct {
	File string
	Line int
	Text string
}

var debuggerStatementRe = regexp.MustCompile(`(?i)^\s*(debugger\s*;?|breakpoint\s*\(\s*\)\s*;?|pdb\.set_trace\s*\(\s*\)|import\s+pdb\s*;\s*pdb\.set_trace\s*\(\s*\))\s*$`)

// Fix applies both remediation classes against the issues in report.
func (f *AutoFixer) Fix(ctx context.Context, qc Context, report Report) (FixReport, error) {
	var fixReport FixReport

	if f.hasLintIssues(report) && f.LintGate != nil && f.Runner != nil {
		output, _, err := f.Runner.Run(ctx, qc.WorkingDir, f.LintGate.FixCommand)
		if err != nil {
			return fixReport, err
		}
		fixReport.LintFixRan = true
		fixReport.LintFixOutput = output
	}

	removed, err := f.removeDebuggerStatements(qc)
	if err != nil {
		return fixReport, err
	}
	fixReport.DebuggerStatementsRemoved = removed

	return fixReport, nil
}

func (f *AutoFixer) hasLintIssues(report Report) bool {
	for _, res := range report.Results {
		if res.Gate == "lint" && !res.Passed {
			return true
		}
	}
	return false
}

// removeDebuggerStatements scans every changed file for debugger/trace
// lines and deletes them in place, processing each file from highest
// to lowest line number so earlier deletions never shift later
// indices (spec §4.D, P7/P8).
func (f *AutoFixer) removeDebuggerStatements(qc Context) ([]RemovedStatement, error) {
	var removed []RemovedStatement

	for _, rel := range qc.FilesChanged {
		full := filepath.Join(qc.WorkingDir, rel)
		lines, err := readLines(full)
		if err != nil {
			continue
		}

		var hits []int
		for i, line := range lines {
			if debuggerStatementRe.MatchString(line) {
				hits = append(hits, i)
			}
		}
		if len(hits) == 0 {
			continue
		}

		sort.Sort(sort.Reverse(sort.IntSlice(hits)))
		for _, idx := range hits {
			removed = append(removed, RemovedStatement{File: rel, Line: idx + 1, Text: lines[idx]})
			lines = append(lines[:idx], lines[idx+1:]...)
		}

		if err := writeLines(full, lines); err != nil {
			return removed, err
		}
	}

	return removed, nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func writeLines(path string, lines []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}
