// Package cost implements CortexOS's Cost Ledger & Budget (spec
// §4.B): per-call token/USD accounting with pre-authorization, and
// per-run/per-day budget enforcement. The pricing-table shape comes
// from the teacher's billing-window tracker; its 5-hour usage blocks
// do not: spend is totalled per run and per day only.
package cost

import (
	"fmt"
	"sync"
	"time"

	"github.com/cortexos/cortexos/internal/cortexerr"
)

// ModelPricing is USD-per-1M-tokens, input and output priced
// separately.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// DefaultCostModel is the pricing table used when the engine has no
// override; mirrors the teacher's known Claude model prices.
func DefaultCostModel() map[string]ModelPricing {
	return map[string]ModelPricing{
		"claude-opus-4-5-20251101":  {InputPer1M: 15.00, OutputPer1M: 75.00},
		"claude-sonnet-4-5-20250929": {InputPer1M: 3.00, OutputPer1M: 15.00},
		"claude-sonnet-3-7-20250219": {InputPer1M: 3.00, OutputPer1M: 15.00},
		"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
		"claude-3-5-haiku-20241022":  {InputPer1M: 1.00, OutputPer1M: 5.00},
		"claude-3-opus-20240229":     {InputPer1M: 15.00, OutputPer1M: 75.00},
		"claude-3-haiku-20240307":    {InputPer1M: 0.25, OutputPer1M: 1.25},
	}
}

// pessimisticDefault prices an unknown model conservatively so an
// unrecognized model never slips past budget enforcement for free.
var pessimisticDefault = ModelPricing{InputPer1M: 15.00, OutputPer1M: 75.00}

// CostEntry is a single ledger record (spec §3).
type CostEntry struct {
	Timestamp    time.Time
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// CostSummary aggregates entries within a window.
type CostSummary struct {
	TotalCost   float64
	TotalInput  int64
	TotalOutput int64
	Calls       int
}

// Budget holds the per-run/per-day ceilings.
type Budget struct {
	PerRunUSD     float64
	PerDayUSD     float64
	WarnThreshold float64
	SafetyMargin  float64 // e.g. 1.2 per spec §4.B
}

// Ledger tracks cost entries and enforces a Budget. It is one of the
// three process-wide shared mutables (spec §5); all mutation goes
// through its mutex. When persistPath is set, writes are additionally
// guarded by an OS-level flock (persist.go's lockAndWrite) so an
// external process sharing the same on-disk ledger file never
// interleaves a write with this one.
type Ledger struct {
	mu          sync.Mutex
	entries     []CostEntry
	pricing     map[string]ModelPricing
	budget      Budget
	runTotal    float64
	dayTotal    float64
	dayStart    time.Time
	persistPath string
}

func NewLedger(pricing map[string]ModelPricing, budget Budget) *Ledger {
	if pricing == nil {
		pricing = DefaultCostModel()
	}
	return &Ledger{
		pricing:  pricing,
		budget:   budget,
		dayStart: time.Now().Truncate(24 * time.Hour),
	}
}

// WithPersistence enables flock-guarded atomic writes of the ledger to
// path after every recorded call.
func (l *Ledger) WithPersistence(path string) *Ledger {
	l.persistPath = path
	return l
}

func (l *Ledger) priceFor(model string) ModelPricing {
	if p, ok := l.pricing[model]; ok {
		return p
	}
	return pessimisticDefault
}

func estimateCost(p ModelPricing, input, output int64) float64 {
	return float64(input)/1_000_000*p.InputPer1M + float64(output)/1_000_000*p.OutputPer1M
}

// PreAuthorize checks a pessimistic (SafetyMargin×) estimate against
// both the per-run and per-day budgets before an LLM call is allowed
// to proceed. It performs no mutation of the running totals.
func (l *Ledger) PreAuthorize(estInput, estOutput int64, model string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	margin := l.budget.SafetyMargin
	if margin <= 0 {
		margin = 1.2
	}
	pessimistic := estimateCost(l.priceFor(model), estInput, estOutput) * margin

	if l.budget.PerRunUSD > 0 && l.runTotal+pessimistic > l.budget.PerRunUSD {
		return cortexerr.New(cortexerr.Budget, "pre-authorize",
			fmt.Sprintf("per-run budget exceeded: would be $%.4f of $%.4f", l.runTotal+pessimistic, l.budget.PerRunUSD))
	}
	if l.budget.PerDayUSD > 0 && l.dayTotal+pessimistic > l.budget.PerDayUSD {
		return cortexerr.New(cortexerr.Budget, "pre-authorize",
			fmt.Sprintf("per-day budget exceeded: would be $%.4f of $%.4f", l.dayTotal+pessimistic, l.budget.PerDayUSD))
	}
	return nil
}

// PreAuthorizeEstimatedCost runs the same margin-aware budget check as
// PreAuthorize but against a single pre-computed USD estimate (e.g. a
// whole ExecutionPlan's EstimatedCostUSD) rather than one call's
// token counts — the engine's single pre-flight gate before any task
// in a plan is allowed to run (spec §4.K, Scenario S3). No mutation.
func (l *Ledger) PreAuthorizeEstimatedCost(estimatedUSD float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	margin := l.budget.SafetyMargin
	if margin <= 0 {
		margin = 1.2
	}
	pessimistic := estimatedUSD * margin

	if l.budget.PerRunUSD > 0 && l.runTotal+pessimistic > l.budget.PerRunUSD {
		return cortexerr.New(cortexerr.Budget, "pre-authorize",
			fmt.Sprintf("per-run budget exceeded: would be $%.4f of $%.4f", l.runTotal+pessimistic, l.budget.PerRunUSD))
	}
	if l.budget.PerDayUSD > 0 && l.dayTotal+pessimistic > l.budget.PerDayUSD {
		return cortexerr.New(cortexerr.Budget, "pre-authorize",
			fmt.Sprintf("per-day budget exceeded: would be $%.4f of $%.4f", l.dayTotal+pessimistic, l.budget.PerDayUSD))
	}
	return nil
}

// RecordCall appends the actual post-call usage and returns the
// ledger entry (spec P6: summary.totalCost tracks recorded calls
// exactly, within 1e-9 float tolerance).
func (l *Ledger) RecordCall(provider, model string, inputTokens, outputTokens int64) CostEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rolloverDayLocked()

	cost := estimateCost(l.priceFor(model), inputTokens, outputTokens)
	entry := CostEntry{
		Timestamp:    time.Now(),
		Provider:     provider,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      cost,
	}
	l.entries = append(l.entries, entry)
	l.runTotal += cost
	l.dayTotal += cost

	if l.persistPath != "" {
		_ = lockAndWrite(l.persistPath, l.snapshotLocked())
	}
	return entry
}

func (l *Ledger) rolloverDayLocked() {
	if time.Since(l.dayStart) >= 24*time.Hour {
		l.dayStart = time.Now().Truncate(24 * time.Hour)
		l.dayTotal = 0
	}
}

// GetSummary aggregates entries whose timestamp falls within the last
// windowMs milliseconds (0 = all entries).
func (l *Ledger) GetSummary(windowMs int64) CostSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	var cutoff time.Time
	if windowMs > 0 {
		cutoff = time.Now().Add(-time.Duration(windowMs) * time.Millisecond)
	}

	var s CostSummary
	for _, e := range l.entries {
		if windowMs > 0 && e.Timestamp.Before(cutoff) {
			continue
		}
		s.TotalCost += e.CostUSD
		s.TotalInput += e.InputTokens
		s.TotalOutput += e.OutputTokens
		s.Calls++
	}
	return s
}

// RunTotal returns the current run's accumulated cost.
func (l *Ledger) RunTotal() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runTotal
}

// WarnIfApproaching returns a human-readable warning when the run
// total crosses WarnThreshold of PerRunUSD, else "".
func (l *Ledger) WarnIfApproaching() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.budget.PerRunUSD <= 0 {
		return ""
	}
	ratio := l.runTotal / l.budget.PerRunUSD
	if ratio >= l.budget.WarnThreshold && ratio < 1.0 {
		return fmt.Sprintf("budget warning: $%.4f of $%.4f (%.0f%%)", l.runTotal, l.budget.PerRunUSD, ratio*100)
	}
	return ""
}

func (l *Ledger) snapshotLocked() []byte {
	return []byte(fmt.Sprintf(`{"run_total":%f,"day_total":%f,"entries":%d}`, l.runTotal, l.dayTotal, len(l.entries)))
}
