package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cortexos/cortexos/internal/agent"
	"github.com/cortexos/cortexos/internal/provider"
)

// Task is DecomposedTask from spec §3: a node of the execution DAG.
type Task struct {
	ID                  string
	Title               string
	Description         string
	Role                agent.Role
	DependsOn           []string
	Priority            int // 1..10
	EstimatedComplexity float64
	RequiredTools       []string
	Context             string
}

// Decomposer builds a task list from an Analysis, picking heuristic
// or LLM-driven mode by complexity (spec §4.H).
type Decomposer struct {
	Provider provider.Provider
	Model    string
}

func NewDecomposer(prov provider.Provider, model string) *Decomposer {
	return &Decomposer{Provider: prov, Model: model}
}

// Decompose builds the task list for analysis, falling back to the
// heuristic linear plan whenever the LLM path is unavailable or its
// output fails validation.
func (d *Decomposer) Decompose(ctx context.Context, a Analysis) []Task {
	if a.Complexity < 0.3 || a.EstimatedSubtasks <= 1 {
		return heuristicPlan(a)
	}
	if d.Provider == nil || !d.Provider.IsAvailable(ctx) {
		return heuristicPlan(a)
	}

	tasks, err := d.llmPlan(ctx, a)
	if err != nil || len(tasks) == 0 {
		return heuristicPlan(a)
	}
	return tasks
}

// heuristicPlan builds a small linear plan: optional research →
// optional design (complexity > 0.5, for any intent; whether the task
// is creative is not checked) → implementation
// → optional test → validation (spec §4.H).
func heuristicPlan(a Analysis) []Task {
	var tasks []Task
	var prevID string

	addStage := func(id, title string, role agent.Role, desc string) {
		deps := []string{}
		if prevID != "" {
			deps = []string{prevID}
		}
		tasks = append(tasks, Task{
			ID:                  id,
			Title:               title,
			Description:         desc,
			Role:                role,
			DependsOn:           deps,
			Priority:            5,
			EstimatedComplexity: a.Complexity,
			Context:             a.Text,
		})
		prevID = id
	}

	if a.Intent == IntentAnalyze || a.Intent == IntentUnknown || a.Complexity > 0.4 {
		addStage("research", "Research", agent.RoleResearch, "Gather context needed for: "+a.Text)
	}
	if a.Complexity > 0.5 {
		addStage("design", "Design", agent.RoleDesign, "Design an approach for: "+a.Text)
	}
	addStage("implementation", "Implement", agent.RoleDeveloper, a.Text)
	if a.Intent == IntentTest || a.Complexity > 0.3 {
		addStage("test", "Test", agent.RoleTester, "Write and run tests for: "+a.Text)
	}
	addStage("validation", "Validate", agent.RoleValidator, "Validate the result of: "+a.Text)

	return tasks
}

type llmTask struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Role        string   `json:"role"`
	DependsOn   []string `json:"dependsOn"`
	Priority    int      `json:"priority"`
	Complexity  float64  `json:"complexity"`
}

func (d *Decomposer) llmPlan(ctx context.Context, a Analysis) ([]Task, error) {
	prompt := fmt.Sprintf(
		"Decompose this software engineering request into a JSON array of subtasks. "+
			"Each item: {id, title, description, role, dependsOn[], priority (1-10), complexity (0-1)}. "+
			"Role must be one of: research, design, developer, tester, validator. Request: %s", a.Text)

	resp, err := d.Provider.Complete(ctx, provider.Request{
		Messages: []provider.Message{{Role: "user", Content: prompt}},
		Model:    d.Model,
	})
	if err != nil {
		return nil, err
	}

	var raw []llmTask
	if err := json.Unmarshal([]byte(resp.Content), &raw); err != nil {
		return nil, fmt.Errorf("decompose: invalid JSON: %w", err)
	}

	tasks := make([]Task, 0, len(raw))
	for _, r := range raw {
		role := agent.Role(r.Role)
		if !agent.KnownRoles[role] {
			return nil, fmt.Errorf("decompose: unknown role %q", r.Role)
		}
		priority := r.Priority
		if priority < 1 {
			priority = 1
		}
		if priority > 10 {
			priority = 10
		}
		complexity := r.Complexity
		if complexity < 0 {
			complexity = 0
		}
		if complexity > 1 {
			complexity = 1
		}
		if r.ID == "" {
			return nil, fmt.Errorf("decompose: task missing id")
		}
		tasks = append(tasks, Task{
			ID: r.ID, Title: r.Title, Description: r.Description, Role: role,
			DependsOn: r.DependsOn, Priority: priority, EstimatedComplexity: complexity,
			Context: a.Text,
		})
	}
	return tasks, nil
}
