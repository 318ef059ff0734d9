package quality

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// ComplexityGate estimates cyclomatic complexity per function in each
// changed source file: 1 plus one per branching token. Functions over
// Threshold are warnings; functions over 2x Threshold are errors
// (spec §4.D).
type ComplexityGate struct {
	Threshold  int
	Extensions []string
}

func NewComplexityGate() *ComplexityGate {
	return &ComplexityGate{Threshold: 10, Extensions: []string{".go", ".ts", ".tsx", ".js", ".py"}}
}

func (g *ComplexityGate) Name() string        { return "complexity" }
func (g *ComplexityGate) Description() string { return "estimates per-function cyclomatic complexity of changed files" }

var funcStartRe = regexp.MustCompile(`(?m)^\s*(func|def)\s+[\w.()* ]*\b([A-Za-z_]\w*)\s*\(`)
var branchTokenRe = regexp.MustCompile(`\b(if|else if|elif|while|for|case|catch|except)\b|&&|\|\||\?:|\?\?`)

func (g *ComplexityGate) Run(ctx context.Context, qc Context) (Result, error) {
	start := time.Now()
	var issues []Issue

	for _, rel := range qc.FilesChanged {
		if !anyHasExtension([]string{rel}, g.Extensions) {
			continue
		}
		full := filepath.Join(qc.WorkingDir, rel)
		content, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		for name, body := range splitFunctions(string(content)) {
			score := 1 + len(branchTokenRe.FindAllString(body, -1))
			switch {
			case score > 2*g.Threshold:
				issues = append(issues, Issue{
					Severity:   SeverityError,
					Message:    "function exceeds twice the complexity threshold",
					File:       rel,
					Rule:       name,
					Suggestion: "split into smaller functions",
				})
			case score > g.Threshold:
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Message:  "function exceeds the complexity threshold",
					File:     rel,
					Rule:     name,
				})
			}
		}
	}

	return newResult(g.Name(), issues, start), nil
}

// splitFunctions is a best-effort brace/indent-based function
// extractor: good enough to bound a branch-token scan per function,
// not a real parser.
func splitFunctions(content string) map[string]string {
	locs := funcStartRe.FindAllStringSubmatchIndex(content, -1)
	out := make(map[string]string, len(locs))
	for i, loc := range locs {
		nameStart, nameEnd := loc[4], loc[5]
		name := content[nameStart:nameEnd]
		bodyStart := loc[1]
		bodyEnd := len(content)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}
		if bodyStart < len(content) {
			out[name] = content[bodyStart:bodyEnd]
		}
	}
	return out
}
