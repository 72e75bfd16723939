package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddingIndexSearchRanksClosest(t *testing.T) {
	idx := NewEmbeddingIndex(t.TempDir())
	idx.Add("a", "cats and dogs")
	idx.Add("b", "cats and dogs are pets")
	idx.Add("c", "quantum physics research")

	results := idx.Search("cats and dogs", 3)
	require.Len(t, results, 3)
	require.Contains(t, []string{"a", "b"}, results[0].Key)
}

func TestEmbeddingIndexSkipsEmptyValue(t *testing.T) {
	idx := NewEmbeddingIndex(t.TempDir())
	idx.Add("a", "   ")
	require.Empty(t, idx.Search("anything", 5))
}

func TestEmbeddingIndexRemove(t *testing.T) {
	idx := NewEmbeddingIndex(t.TempDir())
	idx.Add("a", "hello world")
	idx.Remove("a")
	require.Empty(t, idx.Search("hello world", 5))
}

func TestEmbeddingIndexSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "embeddings")
	idx := NewEmbeddingIndex(dir)
	idx.Add("a", "hello world")
	require.NoError(t, idx.Save())

	reloaded := NewEmbeddingIndex(dir)
	results := reloaded.Search("hello world", 1)
	require.Len(t, results, 1)
	require.Equal(t, "a", results[0].Key)
}

func TestEmbedDeterministic(t *testing.T) {
	v1 := embed("hello world")
	v2 := embed("hello world")
	require.Equal(t, v1, v2)
	require.Len(t, v1, embeddingDim)
}

func TestEmbedL2Normalized(t *testing.T) {
	v := embed("some text to embed")
	var sumSq float64
	for _, f := range v {
		sumSq += f * f
	}
	require.InDelta(t, 1.0, sumSq, 1e-9)
}
