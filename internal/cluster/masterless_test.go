package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"durakv/internal/store"
)

func newTestMasterlessNode(t *testing.T, id string) *MasterlessNode {
	t.Helper()
	s, err := store.Open(t.TempDir(), store.Options{})
	require.NoError(t, err)
	n := NewMasterlessNode(id, s, nil)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestMasterlessSetGetLocal(t *testing.T) {
	n := newTestMasterlessNode(t, "node-a")

	result, err := n.Set("foo", "bar", false)
	require.NoError(t, err)
	require.True(t, result.Success)

	value, ok := n.Get("foo")
	require.True(t, ok)
	require.Equal(t, "bar", value)
}

func TestMasterlessApplyReplicateAcceptsWhenNoLocalClock(t *testing.T) {
	n := newTestMasterlessNode(t, "node-a")

	n.ApplyReplicate(ReplicateRequest{Op: "SET", Key: "k", Value: "v", Clock: VectorClock{"node-b": 100}})

	value, ok := n.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", value)
}

func TestMasterlessApplyReplicateRejectsOlderClock(t *testing.T) {
	n := newTestMasterlessNode(t, "node-a")

	n.ApplyReplicate(ReplicateRequest{Op: "SET", Key: "k", Value: "newer", Clock: VectorClock{"node-b": 200}})
	n.ApplyReplicate(ReplicateRequest{Op: "SET", Key: "k", Value: "older", Clock: VectorClock{"node-b": 100}})

	value, ok := n.Get("k")
	require.True(t, ok)
	require.Equal(t, "newer", value)
}

func TestMasterlessApplyReplicateAcceptsNewerClock(t *testing.T) {
	n := newTestMasterlessNode(t, "node-a")

	n.ApplyReplicate(ReplicateRequest{Op: "SET", Key: "k", Value: "old", Clock: VectorClock{"node-b": 100}})
	n.ApplyReplicate(ReplicateRequest{Op: "SET", Key: "k", Value: "new", Clock: VectorClock{"node-b": 200}})

	value, ok := n.Get("k")
	require.True(t, ok)
	require.Equal(t, "new", value)
}

func TestMasterlessBulkSetPerKeyClockFilter(t *testing.T) {
	n := newTestMasterlessNode(t, "node-a")

	n.ApplyReplicate(ReplicateRequest{Op: "SET", Key: "k1", Value: "existing", Clock: VectorClock{"node-b": 200}})

	n.ApplyReplicate(ReplicateRequest{
		Op:    "BULK_SET",
		Items: []store.Item{{Key: "k1", Value: "stale"}, {Key: "k2", Value: "fresh"}},
		Clocks: map[string]VectorClock{
			"k1": {"node-b": 50},  // older than k1's current clock: rejected
			"k2": {"node-b": 300}, // no prior clock for k2: accepted
		},
	})

	v1, ok := n.Get("k1")
	require.True(t, ok)
	require.Equal(t, "existing", v1)

	v2, ok := n.Get("k2")
	require.True(t, ok)
	require.Equal(t, "fresh", v2)
}

func TestMasterlessHealthAndStats(t *testing.T) {
	n := newTestMasterlessNode(t, "node-a")
	health := n.Health()
	require.Equal(t, "node-a", health.NodeID)
	require.Equal(t, "ok", health.Status)

	_, err := n.Set("k", "v", false)
	require.NoError(t, err)
	stats := n.Stats()
	require.Equal(t, "node-a", stats.NodeID)
	require.Equal(t, 1, stats.KeyCount)
}
