package planner

import (
	"sort"

	"github.com/cortexos/cortexos/internal/agent"
	"github.com/cortexos/cortexos/internal/cost"
)

// Wave is `{waveNumber, taskIds, canParallelize}` (spec §3).
type Wave struct {
	Number         int
	TaskIDs        []string
	CanParallelize bool
}

// Plan is ExecutionPlan from spec §3: a topologically sorted task
// list plus wave grouping, with cost/duration estimates attached.
type Plan struct {
	Tasks             []Task
	Waves             []Wave
	EstimatedTokens   int64
	EstimatedCostUSD  float64
	EstimatedDuration float64 // seconds
}

// roleModel is the coarse role→model table the planner prices
// estimates against (spec §4.H).
var roleModel = map[agent.Role]string{
	agent.RoleResearch:  "claude-3-5-haiku-20241022",
	agent.RoleDesign:    "claude-sonnet-4-5-20250929",
	agent.RoleDeveloper: "claude-sonnet-4-5-20250929",
	agent.RoleTester:    "claude-3-5-haiku-20241022",
	agent.RoleValidator: "claude-3-5-haiku-20241022",
}

// ModelForRole returns the model a role is priced and dispatched
// against, falling back to the default developer-tier model for any
// role outside the known table.
func ModelForRole(role agent.Role) string {
	if m, ok := roleModel[role]; ok {
		return m
	}
	return "claude-sonnet-4-5-20250929"
}

// Planner performs a priority-aware topological sort (Kahn's
// algorithm, re-sorting the ready queue by descending priority before
// each pop) with deterministic cycle-break: any task remaining once
// the queue drains is appended in original order so planning never
// deadlocks (spec §4.H, P3, Open Question 1 — unlike the teacher's
// CalculateWaves, which errors on a cycle).
type Planner struct{}

func NewPlanner() *Planner { return &Planner{} }

// Plan builds the ExecutionPlan for tasks.
func (p *Planner) Plan(tasks []Task) Plan {
	order := priorityAwareTopoSort(tasks)
	waves := buildWaves(order, tasks)

	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var totalTokens int64
	var totalCost float64
	var totalDuration float64
	pricing := cost.DefaultCostModel()

	for _, w := range waves {
		var waveDuration float64
		for _, id := range w.TaskIDs {
			t := byID[id]
			inputTokens := int64(2000 + 8000*t.EstimatedComplexity)
			outputTokens := int64(500 + 3000*t.EstimatedComplexity)
			totalTokens += inputTokens + outputTokens

			model := roleModel[t.Role]
			price, ok := pricing[model]
			if !ok {
				price = pricing["claude-sonnet-4-5-20250929"]
			}
			totalCost += float64(inputTokens)/1_000_000*price.InputPer1M + float64(outputTokens)/1_000_000*price.OutputPer1M

			duration := 3 + 27*t.EstimatedComplexity // 3..30s by complexity
			if duration > waveDuration {
				waveDuration = duration
			}
		}
		totalDuration += waveDuration
	}

	return Plan{
		Tasks:             order,
		Waves:             waves,
		EstimatedTokens:   totalTokens,
		EstimatedCostUSD:  totalCost,
		EstimatedDuration: totalDuration,
	}
}

// priorityAwareTopoSort runs Kahn's algorithm where the ready queue is
// re-sorted by descending priority before each pop. Tasks left over
// once the queue drains (a cycle) are appended in their original
// input order — the plan still runs, it never deadlocks (spec P3).
func priorityAwareTopoSort(tasks []Task) []Task {
	byID := make(map[string]Task, len(tasks))
	inDegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string)
	originalIndex := make(map[string]int, len(tasks))

	for i, t := range tasks {
		byID[t.ID] = t
		originalIndex[t.ID] = i
		if _, ok := inDegree[t.ID]; !ok {
			inDegree[t.ID] = 0
		}
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				continue // self-edge: never a real dependency (spec §3 invariant)
			}
			if _, exists := byID[dep]; !exists {
				continue
			}
			dependents[dep] = append(dependents[dep], t.ID)
			inDegree[t.ID]++
		}
	}

	var ready []string
	for _, t := range tasks {
		if inDegree[t.ID] == 0 {
			ready = append(ready, t.ID)
		}
	}

	visited := make(map[string]bool, len(tasks))
	var order []Task

	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool {
			return byID[ready[i]].Priority > byID[ready[j]].Priority
		})
		next := ready[0]
		ready = ready[1:]

		order = append(order, byID[next])
		visited[next] = true

		for _, dep := range dependents[next] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) < len(tasks) {
		var remaining []Task
		for _, t := range tasks {
			if !visited[t.ID] {
				remaining = append(remaining, t)
			}
		}
		sort.SliceStable(remaining, func(i, j int) bool {
			return originalIndex[remaining[i].ID] < originalIndex[remaining[j].ID]
		})
		order = append(order, remaining...)
	}

	return order
}

// buildWaves repeatedly selects every not-yet-scheduled task whose
// dependencies are all already placed in an earlier wave (spec §4.H).
// This re-derives waves from the already totally-ordered task list so
// broken-cycle tasks (whose dependency may itself be unscheduled) are
// still placed exactly once, never blocking wave construction.
func buildWaves(order []Task, all []Task) []Wave {
	placed := make(map[string]int) // taskID -> wave number
	byID := make(map[string]Task, len(all))
	for _, t := range all {
		byID[t.ID] = t
	}

	remaining := make([]Task, len(order))
	copy(remaining, order)

	var waves []Wave
	waveNum := 0
	for len(remaining) > 0 {
		var current []string
		var next []Task
		for _, t := range remaining {
			ready := true
			for _, dep := range t.DependsOn {
				if dep == t.ID {
					continue
				}
				if _, exists := byID[dep]; !exists {
					continue // dangling dependency ignored, spec tolerance
				}
				if _, done := placed[dep]; !done {
					ready = false
					break
				}
			}
			if ready {
				current = append(current, t.ID)
			} else {
				next = append(next, t)
			}
		}

		if len(current) == 0 {
			// Residual cycle: force every remaining task into this wave
			// so the plan never deadlocks (spec P3).
			for _, t := range next {
				current = append(current, t.ID)
			}
			next = nil
		}

		for _, id := range current {
			placed[id] = waveNum
		}
		waves = append(waves, Wave{Number: waveNum, TaskIDs: current, CanParallelize: len(current) > 1})
		waveNum++
		remaining = next
	}

	return waves
}
