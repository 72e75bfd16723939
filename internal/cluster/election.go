package cluster

import (
	"context"
	"strconv"
	"sync"
	"time"

	"durakv/internal/log"
)

// LeaderElection runs the Bully algorithm: the highest node-id in the
// cluster wins, and any node hearing from a higher-id peer immediately
// defers to it.
//
// States, tracked implicitly rather than as an explicit enum (matching the
// source this is grounded on): Follower (isLeader=false, election not in
// progress), Candidate (electionInProgress=true), Leader (isLeader=true).
type LeaderElection struct {
	nodeID int
	peers  []Peer

	heartbeatInterval time.Duration
	leaderTimeout     time.Duration

	onBecomeLeader func()

	mu                 sync.Mutex
	leaderID           int
	haveLeader         bool
	isLeader           bool
	electionInProgress bool
	lastHeartbeat      time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewLeaderElection builds an election state machine for nodeID among
// peers. onBecomeLeader, if non-nil, runs synchronously right after this
// node declares itself leader.
func NewLeaderElection(nodeID int, peers []Peer, onBecomeLeader func()) *LeaderElection {
	return &LeaderElection{
		nodeID:            nodeID,
		peers:             peers,
		heartbeatInterval: 2 * time.Second,
		leaderTimeout:     5 * time.Second,
		onBecomeLeader:    onBecomeLeader,
		lastHeartbeat:     time.Now(),
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
}

// Start launches the 1-second monitor loop and kicks off an initial
// election.
func (e *LeaderElection) Start() {
	go e.monitorLoop()
	go e.StartElection()
}

// Stop halts the monitor loop. Best-effort: does not wait for an
// in-flight election to settle.
func (e *LeaderElection) Stop() {
	close(e.stopCh)
	<-e.doneCh
}

func (e *LeaderElection) monitorLoop() {
	defer close(e.doneCh)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			if e.IsLeader() {
				e.sendHeartbeats()
				continue
			}
			e.mu.Lock()
			stale := time.Since(e.lastHeartbeat) > e.leaderTimeout
			e.mu.Unlock()
			if stale {
				log.WithNode("election", nodeIDStr(e.nodeID)).Info().Msg("leader timeout, starting election")
				go e.StartElection()
			}
		}
	}
}

// StartElection sends election(from=self) to every higher-id peer,
// sequentially, short-circuiting on the first OK response — a deliberate
// deviation from the textbook Bully algorithm's parallel-probe-then-wait
// phase, retained because it's what the source does and noted in
// SPEC_FULL.md as a liveness caveat under partial reachability.
func (e *LeaderElection) StartElection() {
	e.mu.Lock()
	if e.electionInProgress {
		e.mu.Unlock()
		return
	}
	e.electionInProgress = true
	e.mu.Unlock()

	higher := e.higherPeers()
	if len(higher) == 0 {
		e.becomeLeader()
		return
	}

	gotResponse := false
	for _, p := range higher {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := sendWithRetry(ctx, p, "/election", electionRequest{From: e.nodeID}, nil, 1)
		cancel()
		if err == nil {
			gotResponse = true
			break
		}
	}

	if !gotResponse {
		e.becomeLeader()
		return
	}

	// A higher peer is alive — yield and wait for its coordinator message.
	e.mu.Lock()
	e.electionInProgress = false
	e.mu.Unlock()
}

func (e *LeaderElection) becomeLeader() {
	e.mu.Lock()
	e.isLeader = true
	e.leaderID = e.nodeID
	e.haveLeader = true
	e.electionInProgress = false
	e.mu.Unlock()

	log.WithNode("election", nodeIDStr(e.nodeID)).Info().Msg("became leader")

	fireAndForget(e.peers, "/coordinator", coordinatorRequest{LeaderID: e.nodeID}, 2*time.Second, "election")

	if e.onBecomeLeader != nil {
		e.onBecomeLeader()
	}
}

// ReceiveElection handles an inbound election message from a lower-id
// peer: we respond OK (the caller's HTTP 200 is the "I'm alive" signal)
// and, if not already mid-election, kick off our own asynchronously —
// pushing the contest back toward the higher ids.
func (e *LeaderElection) ReceiveElection(from int) {
	e.mu.Lock()
	inProgress := e.electionInProgress
	e.mu.Unlock()

	if !inProgress {
		go e.StartElection()
	}
}

// ReceiveCoordinator installs leaderID as the current leader.
func (e *LeaderElection) ReceiveCoordinator(leaderID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.leaderID = leaderID
	e.haveLeader = true
	e.isLeader = leaderID == e.nodeID
	e.electionInProgress = false
	e.lastHeartbeat = time.Now()
}

// ReceiveHeartbeat refreshes lastHeartbeat if it came from the leader we
// currently recognize.
func (e *LeaderElection) ReceiveHeartbeat(fromLeader int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.haveLeader && fromLeader == e.leaderID {
		e.lastHeartbeat = time.Now()
	}
}

func (e *LeaderElection) sendHeartbeats() {
	fireAndForget(e.peers, "/heartbeat", heartbeatRequest{LeaderID: e.nodeID}, 1*time.Second, "election")
}

// IsLeader reports whether this node currently believes it is the leader.
func (e *LeaderElection) IsLeader() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isLeader
}

// LeaderID returns the currently known leader's id and whether one is known.
func (e *LeaderElection) LeaderID() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leaderID, e.haveLeader
}

// LeaderAddress returns the address of the currently known leader, or
// ("", false) if this node is the leader or no leader is known.
func (e *LeaderElection) LeaderAddress() (string, bool) {
	e.mu.Lock()
	leaderID, have := e.leaderID, e.haveLeader
	isLeader := e.isLeader
	e.mu.Unlock()

	if isLeader || !have {
		return "", false
	}
	for _, p := range e.peers {
		if p.ID == leaderID {
			return p.Address, true
		}
	}
	return "", false
}

func (e *LeaderElection) higherPeers() []Peer {
	var higher []Peer
	for _, p := range e.peers {
		if p.ID > e.nodeID {
			higher = append(higher, p)
		}
	}
	return higher
}

type electionRequest struct {
	From int `json:"from"`
}

type coordinatorRequest struct {
	LeaderID int `json:"leader_id"`
}

type heartbeatRequest struct {
	LeaderID int `json:"leader_id"`
}

func nodeIDStr(id int) string {
	return strconv.Itoa(id)
}
