package quality

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// SecurityGate scans every non-binary changed file for common secret
// shapes and flags environment-variable files among the changes
// (spec §4.D). Its only shell-out is the optional dependency audit:
// Runner runs AuditCommand when LockfileChanged is set and both are
// configured.
type SecurityGate struct {
	LockfileChanged bool
	AuditCommand    string
	Runner          CommandRunner
}

func NewSecurityGate(runner CommandRunner) *SecurityGate {
	return &SecurityGate{Runner: runner}
}

func (g *SecurityGate) Name() string        { return "security" }
func (g *SecurityGate) Description() string { return "scans changed files for secret shapes and unsafe additions" }

type secretPattern struct {
	rule string
	re   *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{"aws-access-key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"aws-secret-key", regexp.MustCompile(`(?i)aws_secret_access_key\s*=\s*['"]?[A-Za-z0-9/+=]{40}['"]?`)},
	{"private-key-header", regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`)},
	{"bearer-token", regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-_.~+/]{20,}`)},
	{"github-token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{"anthropic-key", regexp.MustCompile(`\bsk-ant-[A-Za-z0-9\-_]{20,}\b`)},
	{"openai-key", regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`)},
	{"slack-token", regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`)},
	{"generic-api-key-assignment", regexp.MustCompile(`(?i)\b(api[_-]?key|secret|password)\s*[:=]\s*['"][A-Za-z0-9\-_/+=]{12,}['"]`)},
}

var envFileRe = regexp.MustCompile(`(^|/)\.env(\..+)?$`)

func (g *SecurityGate) Run(ctx context.Context, qc Context) (Result, error) {
	start := time.Now()
	var issues []Issue

	for _, rel := range qc.FilesChanged {
		if envFileRe.MatchString(rel) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Message:  "environment file committed among changes",
				File:     rel,
				Rule:     "env-file-changed",
			})
			continue
		}

		full := filepath.Join(qc.WorkingDir, rel)
		content, err := os.ReadFile(full)
		if err != nil {
			continue // removed or unreadable; nothing to scan
		}
		if !utf8.Valid(content) || isLikelyBinary(content) {
			continue
		}

		for lineNum, line := range splitLines(string(content)) {
			for _, p := range secretPatterns {
				if p.re.MatchString(line) {
					issues = append(issues, Issue{
						Severity: SeverityError,
						Message:  "possible secret matching " + p.rule,
						File:     rel,
						Line:     lineNum + 1,
						Rule:     p.rule,
					})
				}
			}
		}
	}

	if g.LockfileChanged && g.AuditCommand != "" && g.Runner != nil {
		output, exitCode, err := g.Runner.Run(ctx, qc.WorkingDir, g.AuditCommand)
		if err == nil && exitCode != 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Message:  "dependency audit reported issues: " + strings.TrimSpace(output),
				Rule:     "dependency-audit",
			})
		}
	}

	return newResult(g.Name(), issues, start), nil
}

func isLikelyBinary(content []byte) bool {
	limit := len(content)
	if limit > 8000 {
		limit = 8000
	}
	for _, b := range content[:limit] {
		if b == 0 {
			return true
		}
	}
	return false
}
