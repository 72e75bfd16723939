package cluster

import (
	"sync"
	"time"

	"durakv/internal/log"
	"durakv/internal/store"
)

// MasterlessNode wraps a KVStore where every node accepts writes locally
// and propagates them asynchronously — no leader, no forwarding. Per-key
// VectorClocks (node-id -> last-applied timestamp) drive last-write-wins
// reconciliation on receive.
type MasterlessNode struct {
	nodeID string
	store  *store.KVStore
	peers  []Peer

	clockMu sync.Mutex
	clocks  map[string]VectorClock // key -> clock
}

// NewMasterlessNode wires a KVStore for masterless replication. nodeID is
// this node's identity inside vector clocks (distinct from the primary
// scheme's integer node-id — any node-id space works since clocks are
// compared only by their values, not their keys).
func NewMasterlessNode(nodeID string, s *store.KVStore, peers []Peer) *MasterlessNode {
	return &MasterlessNode{
		nodeID: nodeID,
		store:  s,
		peers:  peers,
		clocks: make(map[string]VectorClock),
	}
}

func (n *MasterlessNode) Close() error { return n.store.Close() }

// Set writes locally, bumps this node's entry in key's vector clock to
// now, then fans the write out to every peer asynchronously.
func (n *MasterlessNode) Set(key, value string, debug bool) (store.SetResult, error) {
	result, err := n.store.Set(key, value, debug)
	if err != nil {
		return store.SetResult{}, err
	}
	clock := n.touchClock(key)
	if result.Success {
		fireAndForget(n.peers, "/replicate", ReplicateRequest{Op: "SET", Key: key, Value: value, Clock: clock}, 5*time.Second, "masterless")
	}
	return result, nil
}

// Get reads locally — any node answers its own reads without consulting peers.
func (n *MasterlessNode) Get(key string) (string, bool) {
	return n.store.Get(key)
}

// Delete deletes locally, bumps the clock, and fans out.
func (n *MasterlessNode) Delete(key string) (store.SetResult, error) {
	result, err := n.store.Delete(key)
	if err != nil {
		return store.SetResult{}, err
	}
	clock := n.touchClock(key)
	if result.Success {
		fireAndForget(n.peers, "/replicate", ReplicateRequest{Op: "DELETE", Key: key, Clock: clock}, 5*time.Second, "masterless")
	}
	return result, nil
}

// BulkSet writes locally as one atomic WAL record, bumps every affected
// key's clock, and fans out a single BULK_SET replicate carrying one
// clock per key.
func (n *MasterlessNode) BulkSet(items []store.Item, debug bool) (store.SetResult, error) {
	result, err := n.store.BulkSet(items, debug)
	if err != nil {
		return store.SetResult{}, err
	}
	clocks := make(map[string]VectorClock, len(items))
	for _, item := range items {
		clocks[item.Key] = n.touchClock(item.Key)
	}
	if result.Success {
		fireAndForget(n.peers, "/replicate", ReplicateRequest{Op: "BULK_SET", Items: items, Clocks: clocks}, 5*time.Second, "masterless")
	}
	return result, nil
}

func (n *MasterlessNode) SearchText(query string, mode store.Mode) []string {
	return n.store.SearchText(query, mode)
}

func (n *MasterlessNode) SearchSimilar(query string, topK int) []store.Result {
	return n.store.SearchSimilar(query, topK)
}

// ApplyReplicate is the /replicate receive path: for each affected key,
// compare max(remote_clock) against max(local_clock); apply only if the
// remote clock wins, merging the clocks on that path. A losing remote clock
// is dropped along with its write.
func (n *MasterlessNode) ApplyReplicate(req ReplicateRequest) {
	switch req.Op {
	case "SET":
		if n.shouldApply(req.Key, req.Clock) {
			if _, err := n.store.Set(req.Key, req.Value, false); err != nil {
				log.Component("masterless").Warn().Err(err).Msg("replicate set failed")
			}
		}
	case "DELETE":
		if n.shouldApply(req.Key, req.Clock) {
			if _, err := n.store.Delete(req.Key); err != nil {
				log.Component("masterless").Warn().Err(err).Msg("replicate delete failed")
			}
		}
	case "BULK_SET":
		var toApply []store.Item
		for _, item := range req.Items {
			if n.shouldApply(item.Key, req.Clocks[item.Key]) {
				toApply = append(toApply, item)
			}
		}
		if len(toApply) > 0 {
			if _, err := n.store.BulkSet(toApply, false); err != nil {
				log.Component("masterless").Warn().Err(err).Msg("replicate bulkset failed")
			}
		}
	}
}

// shouldApply implements the §4.7 merge rule for one key: no local clock
// means blind acceptance (and clock adoption); otherwise remote wins only
// if its max strictly exceeds the local max, in which case the clocks are
// merged by per-node max.
func (n *MasterlessNode) shouldApply(key string, remote VectorClock) bool {
	n.clockMu.Lock()
	defer n.clockMu.Unlock()

	local, ok := n.clocks[key]
	if !ok {
		n.clocks[key] = remote.Copy()
		return true
	}

	if remote.Max() > local.Max() {
		n.clocks[key] = local.Merge(remote)
		return true
	}
	return false
}

// touchClock bumps this node's entry in key's clock to now and returns a
// copy for the outbound replicate message.
func (n *MasterlessNode) touchClock(key string) VectorClock {
	n.clockMu.Lock()
	defer n.clockMu.Unlock()

	clock, ok := n.clocks[key]
	if !ok {
		clock = make(VectorClock)
		n.clocks[key] = clock
	}
	clock[n.nodeID] = float64(time.Now().UnixNano()) / 1e9
	return clock.Copy()
}

// Stats reports the underlying store's stats plus node_id.
type MasterlessStats struct {
	store.Stats
	NodeID string `json:"node_id"`
}

func (n *MasterlessNode) Stats() MasterlessStats {
	return MasterlessStats{Stats: n.store.Stats(), NodeID: n.nodeID}
}

// Health reports {"status":"ok","node_id":...} for this node.
type MasterlessHealth struct {
	Status string `json:"status"`
	NodeID string `json:"node_id"`
}

func (n *MasterlessNode) Health() MasterlessHealth {
	return MasterlessHealth{Status: "ok", NodeID: n.nodeID}
}
