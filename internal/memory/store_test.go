package memory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "memory.sqlite")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStoreAndRecallRoundTrips(t *testing.T) {
	store := openTestStore(t)

	entry := &Entry{
		Type:      Semantic,
		Content:   "the build uses bazel",
		Metadata:  Metadata{Importance: 0.5},
		Embedding: []float32{0.1, 0.2, 0.3},
	}
	require.NoError(t, store.Store(t.Context(), entry))
	assert.NotZero(t, entry.ID)

	recalled, err := store.Recall(t.Context(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "the build uses bazel", recalled.Content)
	assert.Equal(t, Semantic, recalled.Type)
	assert.Equal(t, 1, recalled.Metadata.AccessCount)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, recalled.Embedding, 1e-6)

	recalledAgain, err := store.Recall(t.Context(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, recalledAgain.Metadata.AccessCount)
	assert.True(t, recalledAgain.Metadata.AccessedAt.After(time.Time{}))
}

func TestByTypeFiltersByKind(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Store(t.Context(), &Entry{Type: Working, Content: "w1"}))
	require.NoError(t, store.Store(t.Context(), &Entry{Type: Semantic, Content: "s1"}))
	require.NoError(t, store.Store(t.Context(), &Entry{Type: Episodic, Content: "e1"}))

	semantic, err := store.ByType(t.Context(), Semantic)
	require.NoError(t, err)
	require.Len(t, semantic, 1)
	assert.Equal(t, "s1", semantic[0].Content)
}

func TestDeleteRemovesEntry(t *testing.T) {
	store := openTestStore(t)

	entry := &Entry{Type: Working, Content: "scratch"}
	require.NoError(t, store.Store(t.Context(), entry))
	require.NoError(t, store.Delete(t.Context(), entry.ID))

	_, err := store.Recall(t.Context(), entry.ID)
	assert.Error(t, err)
}

func TestEmbeddingRoundTripsThroughEncodeDecode(t *testing.T) {
	original := []float32{1.5, -2.25, 0, 99.99}
	assert.Equal(t, original, decodeEmbedding(encodeEmbedding(original)))
	assert.Nil(t, encodeEmbedding(nil))
	assert.Nil(t, decodeEmbedding(nil))
}
