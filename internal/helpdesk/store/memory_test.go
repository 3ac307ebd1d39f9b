package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndexSelfMatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	vec := []float32{0.1, 0.5, 0.8, 0.2}
	require.NoError(t, idx.Upsert(ctx, "KB1", "vpn connection drops", vec))

	matches, err := idx.Search(ctx, vec, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "KB1", matches[0].KBID)
	assert.GreaterOrEqual(t, matches[0].Similarity, float32(0.99))
}

func TestMemoryIndexTopKOrdering(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, "KB1", "a", []float32{1, 0, 0}))
	require.NoError(t, idx.Upsert(ctx, "KB2", "b", []float32{0.9, 0.1, 0}))
	require.NoError(t, idx.Upsert(ctx, "KB3", "c", []float32{0, 1, 0}))

	matches, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "KB1", matches[0].KBID)
	assert.Equal(t, "KB2", matches[1].KBID)
	assert.True(t, matches[0].Similarity >= matches[1].Similarity)
}

func TestMemoryIndexTiesPreferNewest(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	// Identical vectors, identical similarity.
	require.NoError(t, idx.Upsert(ctx, "KBold", "old", []float32{1, 0}))
	require.NoError(t, idx.Upsert(ctx, "KBnew", "new", []float32{1, 0}))

	matches, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "KBnew", matches[0].KBID)
}

func TestMemoryIndexUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, "KB1", "first", []float32{1, 0}))
	require.NoError(t, idx.Upsert(ctx, "KB1", "second", []float32{0, 1}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	matches, err := idx.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "second", matches[0].UseCase)
}

func TestMemoryIndexDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, "KB1", "a", []float32{1, 0}))
	require.NoError(t, idx.Delete(ctx, "KB1"))
	require.NoError(t, idx.Delete(ctx, "KB1"))

	ids, err := idx.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryIndexNegativeSimilarityClamped(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, "KB1", "a", []float32{1, 0}))

	matches, err := idx.Search(ctx, []float32{-1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, float32(0), matches[0].Similarity)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, float64(cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})), 1e-6)
	assert.InDelta(t, 0.0, float64(cosineSimilarity([]float32{1, 0}, []float32{0, 1})), 1e-6)
	assert.Equal(t, float32(0), cosineSimilarity(nil, []float32{1}))
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
