package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvertedIndexAddAndSearch(t *testing.T) {
	idx := NewInvertedIndex(filepath.Join(t.TempDir(), "idx.json"))
	idx.Add("k1", "The Quick Brown Fox")
	idx.Add("k2", "the lazy dog")

	require.ElementsMatch(t, []string{"k1"}, idx.Search("quick", ModeAND))
	require.ElementsMatch(t, []string{"k1", "k2"}, idx.Search("the", ModeAND))
}

func TestInvertedIndexANDvsOR(t *testing.T) {
	idx := NewInvertedIndex(filepath.Join(t.TempDir(), "idx.json"))
	idx.Add("k1", "alpha beta")
	idx.Add("k2", "alpha gamma")

	require.Empty(t, idx.Search("beta gamma", ModeAND))
	require.ElementsMatch(t, []string{"k1", "k2"}, idx.Search("beta gamma", ModeOR))
}

func TestInvertedIndexRemove(t *testing.T) {
	idx := NewInvertedIndex(filepath.Join(t.TempDir(), "idx.json"))
	idx.Add("k1", "hello world")
	idx.Remove("k1", "hello world")

	require.Empty(t, idx.Search("hello", ModeAND))
}

func TestInvertedIndexUpdate(t *testing.T) {
	idx := NewInvertedIndex(filepath.Join(t.TempDir(), "idx.json"))
	idx.Add("k1", "hello world")
	idx.Update("k1", "hello world", "goodbye moon")

	require.Empty(t, idx.Search("hello", ModeAND))
	require.ElementsMatch(t, []string{"k1"}, idx.Search("goodbye", ModeAND))
}

func TestInvertedIndexEmptyQuery(t *testing.T) {
	idx := NewInvertedIndex(filepath.Join(t.TempDir(), "idx.json"))
	idx.Add("k1", "hello")
	require.Empty(t, idx.Search("   ", ModeAND))
}

func TestInvertedIndexSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.json")
	idx := NewInvertedIndex(path)
	idx.Add("k1", "hello world")
	require.NoError(t, idx.Save())

	reloaded := NewInvertedIndex(path)
	require.ElementsMatch(t, []string{"k1"}, reloaded.Search("hello", ModeAND))
}
