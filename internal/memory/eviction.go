package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cortexos/cortexos/internal/cortexerr"
)

// DefaultProtectedThreshold is the importance level at or above which an
// entry is immune to eviction regardless of how far count exceeds max.
const DefaultProtectedThreshold = 0.9

// Evictor trims a Store back down to Max entries, removing the
// lowest-scoring unprotected candidates first.
type Evictor struct {
	Store              *Store
	Max                int
	ProtectedThreshold float64
}

// NewEvictor builds an Evictor with the spec's default protected threshold.
func NewEvictor(store *Store, max int) *Evictor {
	return &Evictor{Store: store, Max: max, ProtectedThreshold: DefaultProtectedThreshold}
}

// score combines importance, decay, recency, and access frequency into
// a single ranking value; higher survives longer. Protected entries
// (importance >= threshold) are never scored for removal at all.
func score(e *Entry, now time.Time) float64 {
	recencyHours := now.Sub(e.Metadata.AccessedAt).Hours()
	recencyPenalty := recencyHours / (recencyHours + 24) // asymptotes to 1 as staleness grows
	frequencyBonus := 1 - 1/(float64(e.Metadata.AccessCount)+1)

	return e.Metadata.Importance*e.Metadata.DecayFactor + 0.3*frequencyBonus - 0.5*recencyPenalty
}

// Evict removes the lowest-scoring unprotected entries until the store
// holds at most Max entries (P5: protected entries are never removed,
// even when count far exceeds Max).
func (ev *Evictor) Evict(ctx context.Context) (removed int, err error) {
	entries, err := ev.Store.All(ctx)
	if err != nil {
		return 0, cortexerr.Wrap(cortexerr.Memory, "memory.evict", err)
	}
	if len(entries) <= ev.Max {
		return 0, nil
	}

	threshold := ev.ProtectedThreshold
	if threshold == 0 {
		threshold = DefaultProtectedThreshold
	}

	var candidates []*Entry
	protected := 0
	for _, e := range entries {
		if e.Metadata.Importance >= threshold {
			protected++
			continue
		}
		candidates = append(candidates, e)
	}

	overage := len(entries) - ev.Max
	if overage > len(candidates) {
		// Even removing every unprotected candidate can't get under Max;
		// protection still wins, so only the unprotected set is evicted.
		overage = len(candidates)
	}

	now := time.Now()
	sort.Slice(candidates, func(i, j int) bool {
		return score(candidates[i], now) < score(candidates[j], now)
	})

	for i := 0; i < overage; i++ {
		if err := ev.Store.Delete(ctx, candidates[i].ID); err != nil {
			return removed, cortexerr.Wrap(cortexerr.Memory, "memory.evict", err)
		}
		removed++
	}
	return removed, nil
}
