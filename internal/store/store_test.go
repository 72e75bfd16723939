package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *KVStore {
	t.Helper()
	s, err := Open(t.TempDir(), Options{SnapshotInterval: 0})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGet(t *testing.T) {
	s := openTestStore(t)

	result, err := s.Set("foo", "bar", false)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, uint64(1), result.Seq)

	value, ok := s.Get("foo")
	require.True(t, ok)
	require.Equal(t, "bar", value)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, ok := s.Get("missing")
	require.False(t, ok)
}

func TestSeqMonotonic(t *testing.T) {
	s := openTestStore(t)

	r1, err := s.Set("a", "1", false)
	require.NoError(t, err)
	r2, err := s.Set("b", "2", false)
	require.NoError(t, err)
	require.Less(t, r1.Seq, r2.Seq)
}

func TestDeleteExisting(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Set("foo", "bar", false)
	require.NoError(t, err)

	result, err := s.Delete("foo")
	require.NoError(t, err)
	require.True(t, result.Success)

	_, ok := s.Get("foo")
	require.False(t, ok)
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s := openTestStore(t)
	result, err := s.Delete("never-existed")
	require.NoError(t, err)
	require.False(t, result.Success)
}

func TestBulkSetAtomicSeq(t *testing.T) {
	s := openTestStore(t)
	items := []Item{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}, {Key: "c", Value: "3"}}

	result, err := s.BulkSet(items, false)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 3, result.Count)

	for _, item := range items {
		v, ok := s.Get(item.Key)
		require.True(t, ok)
		require.Equal(t, item.Value, v)
	}
}

func TestRecoveryReplaysWAL(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, Options{SnapshotInterval: 0})
	require.NoError(t, err)
	_, err = s.Set("k1", "v1", false)
	require.NoError(t, err)
	_, err = s.Set("k2", "v2", false)
	require.NoError(t, err)
	_, err = s.Delete("k1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(dir, Options{SnapshotInterval: 0})
	require.NoError(t, err)
	defer reopened.Close()

	_, ok := reopened.Get("k1")
	require.False(t, ok)
	v, ok := reopened.Get("k2")
	require.True(t, ok)
	require.Equal(t, "v2", v)
}

func TestSearchTextModes(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Set("doc1", "the quick brown fox", false)
	require.NoError(t, err)
	_, err = s.Set("doc2", "the lazy dog", false)
	require.NoError(t, err)

	and := s.SearchText("the fox", ModeAND)
	require.ElementsMatch(t, []string{"doc1"}, and)

	or := s.SearchText("fox dog", ModeOR)
	require.ElementsMatch(t, []string{"doc1", "doc2"}, or)
}

func TestSearchTextReflectsDelete(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Set("doc1", "hello world", false)
	require.NoError(t, err)
	_, err = s.Delete("doc1")
	require.NoError(t, err)

	require.Empty(t, s.SearchText("hello", ModeAND))
}

func TestSearchSimilarReturnsTopK(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Set("a", "cats and dogs", false)
	require.NoError(t, err)
	_, err = s.Set("b", "cats and dogs are pets", false)
	require.NoError(t, err)
	_, err = s.Set("c", "quantum physics research", false)
	require.NoError(t, err)

	results := s.SearchSimilar("cats and dogs", 2)
	require.Len(t, results, 2)
	require.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestStatsKeyCount(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Set("a", "1", false)
	require.NoError(t, err)
	_, err = s.Set("b", "2", false)
	require.NoError(t, err)

	stats := s.Stats()
	require.Equal(t, 2, stats.KeyCount)
}
