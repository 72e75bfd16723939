package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLeaderElectionNoPeersBecomesLeader(t *testing.T) {
	var became bool
	e := NewLeaderElection(1, nil, func() { became = true })
	e.Start()
	defer e.Stop()

	require.Eventually(t, func() bool { return e.IsLeader() }, time.Second, 10*time.Millisecond)
	require.True(t, became)

	id, ok := e.LeaderID()
	require.True(t, ok)
	require.Equal(t, 1, id)
}

func TestLeaderElectionUnreachableHigherPeerStillBecomesLeader(t *testing.T) {
	// The only peer is higher-id but unreachable (nothing listens on this
	// address), so the node should time out probing it and self-promote.
	peers := []Peer{{ID: 2, Address: "127.0.0.1:1"}}
	e := NewLeaderElection(1, peers, nil)
	e.Start()
	defer e.Stop()

	require.Eventually(t, func() bool { return e.IsLeader() }, 5*time.Second, 50*time.Millisecond)
}

func TestLeaderElectionReceiveCoordinatorInstallsLeader(t *testing.T) {
	e := NewLeaderElection(2, []Peer{{ID: 5, Address: "127.0.0.1:1"}}, nil)
	e.ReceiveCoordinator(5)

	require.False(t, e.IsLeader())
	id, ok := e.LeaderID()
	require.True(t, ok)
	require.Equal(t, 5, id)

	addr, ok := e.LeaderAddress()
	require.True(t, ok)
	require.Equal(t, "127.0.0.1:1", addr)
}

func TestLeaderElectionReceiveCoordinatorSelf(t *testing.T) {
	e := NewLeaderElection(5, nil, nil)
	e.ReceiveCoordinator(5)
	require.True(t, e.IsLeader())
}

func TestLeaderElectionHeartbeatOnlyFromRecognizedLeader(t *testing.T) {
	e := NewLeaderElection(1, nil, nil)
	e.ReceiveCoordinator(2)

	e.mu.Lock()
	before := e.lastHeartbeat
	e.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	e.ReceiveHeartbeat(99) // not the recognized leader, ignored
	e.mu.Lock()
	require.Equal(t, before, e.lastHeartbeat)
	e.mu.Unlock()

	e.ReceiveHeartbeat(2)
	e.mu.Lock()
	require.True(t, e.lastHeartbeat.After(before))
	e.mu.Unlock()
}
