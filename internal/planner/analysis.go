// Package planner implements the Prompt Analyzer, Decomposer, and
// Planner (spec §4.H): score a request's complexity and intent, turn
// it into a DAG of role-specialized tasks, and schedule those tasks
// into priority-ordered, dependency-respecting waves.
package planner

import (
	"regexp"
	"strings"
)

// Intent is the closed set of request intents (spec §3).
type Intent string

const (
	IntentCreate   Intent = "create"
	IntentModify   Intent = "modify"
	IntentFix      Intent = "fix"
	IntentRefactor Intent = "refactor"
	IntentTest     Intent = "test"
	IntentDocument Intent = "document"
	IntentAnalyze  Intent = "analyze"
	IntentOptimize Intent = "optimize"
	IntentDeploy   Intent = "deploy"
	IntentUnknown  Intent = "unknown"
)

// Analysis is PromptAnalysis from spec §3: an immutable record
// produced once per request.
type Analysis struct {
	Text               string
	Complexity         float64
	Intent             Intent
	DomainTags         []string
	EstimatedSubtasks  int
	Languages          []string
	Entities           []string
	SuggestedRoleSet   []string
}

// intentPatterns is ORDER-SENSITIVE: fix before modify, test before
// analyze (spec §4.H — "order matters").
var intentPatterns = []struct {
	intent Intent
	re     *regexp.Regexp
}{
	{IntentFix, regexp.MustCompile(`(?i)\b(fix|bug|broken|crash|error|fails?)\b`)},
	{IntentTest, regexp.MustCompile(`(?i)\b(test|tests|unit test|coverage)\b`)},
	{IntentRefactor, regexp.MustCompile(`(?i)\b(refactor|clean ?up|restructure|simplify)\b`)},
	{IntentOptimize, regexp.MustCompile(`(?i)\b(optimi[sz]e|speed up|performance|faster)\b`)},
	{IntentDeploy, regexp.MustCompile(`(?i)\b(deploy|release|ship|publish)\b`)},
	{IntentModify, regexp.MustCompile(`(?i)\b(modify|change|update|edit|adjust)\b`)},
	{IntentCreate, regexp.MustCompile(`(?i)\b(add|create|build|implement|new|write)\b`)},
	{IntentDocument, regexp.MustCompile(`(?i)\b(document|docs?|readme|comment)\b`)},
	{IntentAnalyze, regexp.MustCompile(`(?i)\b(analy[sz]e|investigate|understand|explain)\b`)},
}

var domainPatterns = map[string]*regexp.Regexp{
	"api":      regexp.MustCompile(`(?i)\b(api|endpoint|rest|graphql|grpc)\b`),
	"database": regexp.MustCompile(`(?i)\b(database|sql|query|migration|schema)\b`),
	"frontend": regexp.MustCompile(`(?i)\b(ui|frontend|react|component|css|html)\b`),
	"auth":     regexp.MustCompile(`(?i)\b(auth|login|session|token|permission)\b`),
	"testing":  regexp.MustCompile(`(?i)\b(test|spec|coverage)\b`),
	"infra":    regexp.MustCompile(`(?i)\b(docker|kubernetes|deploy|ci|pipeline)\b`),
}

var languagePatterns = map[string]*regexp.Regexp{
	"go":         regexp.MustCompile(`(?i)\b(go|golang)\b`),
	"python":     regexp.MustCompile(`(?i)\bpython\b`),
	"javascript": regexp.MustCompile(`(?i)\b(javascript|js|node)\b`),
	"typescript": regexp.MustCompile(`(?i)\b(typescript|ts)\b`),
	"rust":       regexp.MustCompile(`(?i)\brust\b`),
}

var actionVerbRe = regexp.MustCompile(`(?i)\b(add|create|build|implement|fix|refactor|update|remove|delete|write|test|deploy|optimize|migrate|integrate)\b`)
var conjunctionRe = regexp.MustCompile(`(?i)\b(and|then|also|plus|additionally)\b`)
var fileRefRe = regexp.MustCompile(`\b[\w./-]+\.\w{1,8}\b`)
var technicalTermRe = regexp.MustCompile(`(?i)\b(endpoint|middleware|interface|struct|schema|async|concurrency|cache|queue|worker)\b`)
var quotedStringRe = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
var camelCaseRe = regexp.MustCompile(`\b[a-z]+[A-Z][A-Za-z0-9]*\b`)

// Analyzer scores a request's complexity and extracts intent, domain
// tags, languages, and entities (spec §4.H).
type Analyzer struct{}

func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Analyze scores complexity from a weighted sum of features, capped
// at 1.0 and floored at 0.1, and picks intent from the first matching
// ordered pattern.
func (a *Analyzer) Analyze(text string) Analysis {
	complexity := scoreComplexity(text)
	intent := detectIntent(text)

	var domains []string
	for tag, re := range domainPatterns {
		if re.MatchString(text) {
			domains = append(domains, tag)
		}
	}

	var languages []string
	for lang, re := range languagePatterns {
		if re.MatchString(text) {
			languages = append(languages, lang)
		}
	}

	entities := extractEntities(text)

	subtasks := 1 + int(complexity*9)
	if subtasks > 10 {
		subtasks = 10
	}

	return Analysis{
		Text:              text,
		Complexity:        complexity,
		Intent:            intent,
		DomainTags:        domains,
		EstimatedSubtasks: subtasks,
		Languages:         languages,
		Entities:          entities,
		SuggestedRoleSet:  suggestRoles(intent, complexity),
	}
}

func scoreComplexity(text string) float64 {
	words := len(strings.Fields(text))
	var lengthScore float64
	switch {
	case words < 8:
		lengthScore = 0.1
	case words < 20:
		lengthScore = 0.3
	case words < 40:
		lengthScore = 0.55
	default:
		lengthScore = 0.8
	}

	actionVerbs := float64(len(actionVerbRe.FindAllString(text, -1)))
	conjunctions := float64(len(conjunctionRe.FindAllString(text, -1)))
	fileRefs := float64(len(fileRefRe.FindAllString(text, -1)))
	technicalTerms := float64(len(technicalTermRe.FindAllString(text, -1)))

	score := lengthScore +
		0.08*minF(actionVerbs, 3) +
		0.1*minF(conjunctions, 2) +
		0.07*minF(fileRefs, 3) +
		0.06*minF(technicalTerms, 3)

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.1 {
		score = 0.1
	}
	return score
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func detectIntent(text string) Intent {
	for _, p := range intentPatterns {
		if p.re.MatchString(text) {
			return p.intent
		}
	}
	return IntentUnknown
}

// extractEntities unions file paths, quoted strings, and CamelCase
// identifiers (spec §4.H).
func extractEntities(text string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, m := range fileRefRe.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range quotedStringRe.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			add(m[1])
		} else {
			add(m[2])
		}
	}
	for _, m := range camelCaseRe.FindAllString(text, -1) {
		add(m)
	}
	return out
}

func suggestRoles(intent Intent, complexity float64) []string {
	roles := []string{"developer"}
	if complexity > 0.5 {
		roles = append([]string{"design"}, roles...)
	}
	if intent == IntentTest {
		roles = append(roles, "tester")
	}
	roles = append(roles, "validator")
	return roles
}
