package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictNoOpUnderCapacity(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Store(t.Context(), &Entry{Type: Working, Content: "a"}))

	ev := NewEvictor(store, 10)
	removed, err := ev.Evict(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestEvictRemovesLowestScoringFirst(t *testing.T) {
	store := openTestStore(t)

	stale := &Entry{Type: Episodic, Content: "stale", Metadata: Metadata{
		Importance:  0.1,
		AccessedAt:  time.Now().Add(-30 * 24 * time.Hour),
		DecayFactor: 1,
	}}
	fresh := &Entry{Type: Episodic, Content: "fresh", Metadata: Metadata{
		Importance:  0.5,
		AccessedAt:  time.Now(),
		AccessCount: 5,
		DecayFactor: 1,
	}}
	require.NoError(t, store.Store(t.Context(), stale))
	require.NoError(t, store.Store(t.Context(), fresh))

	ev := NewEvictor(store, 1)
	removed, err := ev.Evict(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := store.All(t.Context())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fresh", remaining[0].Content)
}

func TestEvictNeverRemovesProtectedEntries(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 20; i++ {
		require.NoError(t, store.Store(t.Context(), &Entry{
			Type:    Semantic,
			Content: "protected",
			Metadata: Metadata{
				Importance:  0.95,
				AccessedAt:  time.Now().Add(-365 * 24 * time.Hour),
				DecayFactor: 1,
			},
		}))
	}

	ev := NewEvictor(store, 1) // count (20) >> max (1)
	removed, err := ev.Evict(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "protected entries must survive even when count far exceeds max")

	n, err := store.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestEvictMixedProtectionOnlyRemovesUnprotected(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Store(t.Context(), &Entry{Type: Working, Content: "protected", Metadata: Metadata{
		Importance: 0.99, AccessedAt: time.Now(), DecayFactor: 1,
	}}))
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Store(t.Context(), &Entry{Type: Working, Content: "unprotected", Metadata: Metadata{
			Importance: 0.1, AccessedAt: time.Now().Add(-time.Duration(i) * time.Hour), DecayFactor: 1,
		}}))
	}

	ev := NewEvictor(store, 2)
	removed, err := ev.Evict(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	remaining, err := store.All(t.Context())
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	for _, e := range remaining {
		assert.True(t, e.Content == "protected" || e.Metadata.Importance < 0.99)
	}
}
