package cluster

import (
	"context"
	"fmt"
	"time"

	"durakv/internal/log"
	"durakv/internal/store"
)

// ClusterNode wraps a KVStore with primary-election replication: every
// mutating operation (and, for simplicity, every read) executes on the
// current leader; a non-leader forwards verbatim. After a local write
// succeeds, the leader fans the operation out to every peer, fire-and-
// forget. Search is answered locally on every node and may be stale on
// followers.
type ClusterNode struct {
	nodeID   int
	store    *store.KVStore
	election *LeaderElection
	peers    []Peer
}

// NewClusterNode wires a KVStore to a LeaderElection for this node.
func NewClusterNode(nodeID int, s *store.KVStore, peers []Peer) *ClusterNode {
	n := &ClusterNode{nodeID: nodeID, store: s, peers: peers}
	n.election = NewLeaderElection(nodeID, peers, func() {
		log.WithNode("cluster", nodeIDStr(nodeID)).Info().Msg("now acting as primary")
	})
	return n
}

// Start begins leader election.
func (n *ClusterNode) Start() { n.election.Start() }

// Stop halts leader election and closes the store.
func (n *ClusterNode) Stop() error {
	n.election.Stop()
	return n.store.Close()
}

// ErrNoLeader is returned when a write/read must forward but no leader is
// currently known.
var ErrNoLeader = fmt.Errorf("no leader available")

// ErrLeaderUnreachable is returned when forwarding to a known leader fails.
var ErrLeaderUnreachable = fmt.Errorf("leader unreachable")

// Set executes on the leader (forwarding if necessary) and, once applied
// locally by the leader, fans out a replicate message to every peer.
func (n *ClusterNode) Set(key, value string, debug bool) (store.SetResult, error) {
	if !n.election.IsLeader() {
		var out store.SetResult
		if err := n.forward("POST", http10s, "/set", setRequest{Key: key, Value: value, Debug: debug}, &out); err != nil {
			return store.SetResult{}, err
		}
		return out, nil
	}

	result, err := n.store.Set(key, value, debug)
	if err != nil {
		return store.SetResult{}, err
	}
	if result.Success {
		fireAndForget(n.peers, "/replicate", ReplicateRequest{Op: "SET", Key: key, Value: value}, 5*time.Second, "cluster")
	}
	return result, nil
}

// Get executes on the leader (forwarding if necessary), per the spec's
// policy of routing every read through the leader in the primary scheme.
func (n *ClusterNode) Get(key string) (string, bool, error) {
	if !n.election.IsLeader() {
		var out getResponse
		if err := n.forward("GET", http10s, "/get/"+key, nil, &out); err != nil {
			return "", false, err
		}
		return out.Value, out.Success, nil
	}
	v, ok := n.store.Get(key)
	return v, ok, nil
}

// Delete executes on the leader (forwarding if necessary) and fans out on
// success.
func (n *ClusterNode) Delete(key string) (store.SetResult, error) {
	if !n.election.IsLeader() {
		var out store.SetResult
		if err := n.forward("DELETE", http10s, "/delete/"+key, nil, &out); err != nil {
			return store.SetResult{}, err
		}
		return out, nil
	}

	result, err := n.store.Delete(key)
	if err != nil {
		return store.SetResult{}, err
	}
	if result.Success {
		fireAndForget(n.peers, "/replicate", ReplicateRequest{Op: "DELETE", Key: key}, 5*time.Second, "cluster")
	}
	return result, nil
}

// BulkSet executes on the leader (forwarding if necessary, with the wider
// 30 s bulk timeout) and fans out on success.
func (n *ClusterNode) BulkSet(items []store.Item, debug bool) (store.SetResult, error) {
	if !n.election.IsLeader() {
		pairs := make([][2]string, len(items))
		for i, item := range items {
			pairs[i] = [2]string{item.Key, item.Value}
		}
		var out store.SetResult
		if err := n.forward("POST", 30*time.Second, "/bulkset", bulkSetRequest{Items: pairs, Debug: debug}, &out); err != nil {
			return store.SetResult{}, err
		}
		return out, nil
	}

	result, err := n.store.BulkSet(items, debug)
	if err != nil {
		return store.SetResult{}, err
	}
	if result.Success {
		fireAndForget(n.peers, "/replicate", ReplicateRequest{Op: "BULK_SET", Items: items}, 5*time.Second, "cluster")
	}
	return result, nil
}

// SearchText answers locally, without forwarding — a follower may return
// stale results, per §4.6.
func (n *ClusterNode) SearchText(query string, mode store.Mode) []string {
	return n.store.SearchText(query, mode)
}

// SearchSimilar answers locally, without forwarding.
func (n *ClusterNode) SearchSimilar(query string, topK int) []store.Result {
	return n.store.SearchSimilar(query, topK)
}

// ApplyReplicate is the /replicate receive path: a follower applies
// whatever the leader sends blindly, no conflict resolution.
func (n *ClusterNode) ApplyReplicate(req ReplicateRequest) {
	switch req.Op {
	case "SET":
		if _, err := n.store.Set(req.Key, req.Value, false); err != nil {
			log.WithNode("cluster", nodeIDStr(n.nodeID)).Warn().Err(err).Msg("replicate set failed")
		}
	case "DELETE":
		if _, err := n.store.Delete(req.Key); err != nil {
			log.WithNode("cluster", nodeIDStr(n.nodeID)).Warn().Err(err).Msg("replicate delete failed")
		}
	case "BULK_SET":
		if _, err := n.store.BulkSet(req.Items, false); err != nil {
			log.WithNode("cluster", nodeIDStr(n.nodeID)).Warn().Err(err).Msg("replicate bulkset failed")
		}
	}
}

// ReceiveElection, ReceiveCoordinator, ReceiveHeartbeat delegate straight
// to the election state machine — exported here so the HTTP layer has one
// thing to call per endpoint.
func (n *ClusterNode) ReceiveElection(from int)         { n.election.ReceiveElection(from) }
func (n *ClusterNode) ReceiveCoordinator(leaderID int)  { n.election.ReceiveCoordinator(leaderID) }
func (n *ClusterNode) ReceiveHeartbeat(fromLeader int)  { n.election.ReceiveHeartbeat(fromLeader) }

// HealthInfo is the payload for /health: node_id, is_leader, leader_id.
type HealthInfo struct {
	NodeID   int  `json:"node_id"`
	IsLeader bool `json:"is_leader"`
	LeaderID int  `json:"leader_id,omitempty"`
}

func (n *ClusterNode) Health() HealthInfo {
	leaderID, _ := n.election.LeaderID()
	return HealthInfo{NodeID: n.nodeID, IsLeader: n.election.IsLeader(), LeaderID: leaderID}
}

// Stats reports the underlying store's stats plus node_id/is_leader.
type Stats struct {
	store.Stats
	NodeID   int  `json:"node_id"`
	IsLeader bool `json:"is_leader"`
}

func (n *ClusterNode) Stats() Stats {
	return Stats{Stats: n.store.Stats(), NodeID: n.nodeID, IsLeader: n.election.IsLeader()}
}

const http10s = 10 * time.Second

// forward sends a non-leader's request verbatim (same HTTP method) to the
// current leader.
func (n *ClusterNode) forward(method string, timeout time.Duration, path string, body, out any) error {
	addr, ok := n.election.LeaderAddress()
	if !ok {
		return ErrNoLeader
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	url := fmt.Sprintf("http://%s%s", addr, path)
	if err := doJSON(ctx, method, url, body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrLeaderUnreachable, err)
	}
	return nil
}

type setRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Debug bool   `json:"debug,omitempty"`
}

type bulkSetRequest struct {
	Items [][2]string `json:"items"`
	Debug bool        `json:"debug,omitempty"`
}

type getResponse struct {
	Success bool   `json:"success"`
	Value   string `json:"value,omitempty"`
}

// ReplicateRequest is the wire shape of the cluster-only /replicate
// endpoint, shared between the primary and masterless schemes (masterless
// additionally carries Clock/Clocks).
type ReplicateRequest struct {
	Op     string                  `json:"op"`
	Key    string                  `json:"key,omitempty"`
	Value  string                  `json:"value,omitempty"`
	Items  []store.Item            `json:"items,omitempty"`
	Clock  VectorClock             `json:"clock,omitempty"`
	Clocks map[string]VectorClock  `json:"clocks,omitempty"`
}

// NewReplicateRequest builds a ReplicateRequest for the primary scheme's
// SET/DELETE/BULK_SET ops, which carry no vector clock.
func NewReplicateRequest(op, key, value string, items []store.Item) ReplicateRequest {
	return ReplicateRequest{Op: op, Key: key, Value: value, Items: items}
}
