package engine

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/cortexos/cortexos/internal/planner"
	"github.com/cortexos/cortexos/internal/swarm"
)

var reportMarkdown = goldmark.New()

// renderReportMarkdown builds a human-readable execution summary: the
// request, the plan's waves, and each task's outcome. This is the
// artifact the CLI's run command prints.
func renderReportMarkdown(executionID, prompt string, analysis planner.Analysis, plan planner.Plan, outcome swarm.Outcome, qualityResults []TaskQuality) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Execution %s\n\n", executionID)
	fmt.Fprintf(&b, "**Request:** %s\n\n", prompt)
	fmt.Fprintf(&b, "**Intent:** %s · **Complexity:** %.2f\n\n", analysis.Intent, analysis.Complexity)
	fmt.Fprintf(&b, "**Estimated cost:** $%.4f · **Estimated tokens:** %d\n\n", plan.EstimatedCostUSD, plan.EstimatedTokens)

	qualityByTask := make(map[string]TaskQuality, len(qualityResults))
	for _, q := range qualityResults {
		qualityByTask[q.TaskID] = q
	}

	for _, wave := range outcome.Waves {
		fmt.Fprintf(&b, "## Wave %d\n\n", wave.WaveNumber)
		for _, t := range wave.Tasks {
			status := "✅ succeeded"
			if t.Failed {
				status = "❌ failed"
			}
			fmt.Fprintf(&b, "- **%s**: %s\n", t.TaskID, status)
			if len(t.Result.FileChanges) > 0 {
				for _, fc := range t.Result.FileChanges {
					fmt.Fprintf(&b, "  - `%s` (%s)\n", fc.Path, fc.Type)
				}
			}
			if q, ok := qualityByTask[t.TaskID]; ok {
				qstatus := "passed"
				if q.Remediation.Terminal {
					qstatus = "failed"
					if q.ReflexionResult != nil {
						qstatus = "failed, retried via reflexion"
					}
				}
				fmt.Fprintf(&b, "  - quality: %s\n", qstatus)
			}
		}
		if len(wave.MergeResults) > 0 {
			for _, mr := range wave.MergeResults {
				if !mr.Success {
					fmt.Fprintf(&b, "  - merge conflict on `%s`: %v\n", mr.BranchName, mr.Conflicts)
				}
			}
		}
		b.WriteString("\n")
	}

	if outcome.Failed {
		b.WriteString("**Result:** one or more tasks failed.\n")
	} else {
		b.WriteString("**Result:** all tasks succeeded.\n")
	}

	return b.String()
}

// renderReportHTML converts the markdown report to HTML for callers
// that can't render markdown directly; it is returned as Result.ReportHTML.
func renderReportHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := reportMarkdown.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
