// Package cluster holds the node's static view of the cluster: who it
// is, who the leader is, who its peers are, and which of them are
// currently believed to be alive. Membership, leader election, and
// heartbeat probing are external collaborators, not implemented here —
// this package only models the read-mostly value they update
// out-of-band.
package cluster

import "sync"

// View is the cluster membership snapshot a node consults on every
// write and read. Readers must snapshot-and-drop the lock before
// doing any I/O, never holding it across an await/blocking call.
type View struct {
	mu sync.RWMutex

	nodeID   uint64
	leaderID uint64
	peers    []string // peer base URLs, in a fixed order
	liveness map[string]bool
}

// NewView constructs a View for a static cluster. peers are base URLs
// (e.g. "http://host:port"); liveness keying uses the same address
// string since heartbeats are by URL.
func NewView(nodeID, leaderID uint64, peers []string) *View {
	liveness := make(map[string]bool, len(peers))
	for _, p := range peers {
		liveness[p] = true
	}
	return &View{
		nodeID:   nodeID,
		leaderID: leaderID,
		peers:    append([]string(nil), peers...),
		liveness: liveness,
	}
}

// NodeID returns this node's id.
func (v *View) NodeID() uint64 {
	return v.nodeID
}

// IsLeader reports whether this node is the current leader.
func (v *View) IsLeader() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.nodeID == v.leaderID
}

// LeaderID returns the current leader's node id.
func (v *View) LeaderID() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.leaderID
}

// SetLeader updates the leader id (the external heartbeat/election
// collaborator calls this out-of-band).
func (v *View) SetLeader(leaderID uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.leaderID = leaderID
}

// Peers returns a snapshot copy of the peer base URLs. Safe to use
// after the lock is released, including across network I/O.
func (v *View) Peers() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.peers...)
}

// N returns the cluster size (peers + self).
func (v *View) N() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.peers) + 1
}

// WriteQuorum returns floor(N/2)+1.
func (v *View) WriteQuorum() int {
	n := v.N()
	return n/2 + 1
}

// ReadQuorum returns floor(N/2)+1, the same threshold as WriteQuorum.
func (v *View) ReadQuorum() int {
	return v.WriteQuorum()
}

// IsAlive reports whether peer is currently believed reachable. An
// unknown peer is treated as alive so newly-joined peers aren't
// gated before their first heartbeat.
func (v *View) IsAlive(peer string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	alive, known := v.liveness[peer]
	if !known {
		return true
	}
	return alive
}

// SetLiveness records whether peer is currently reachable. Called by
// the external heartbeat collaborator.
func (v *View) SetLiveness(peer string, alive bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.liveness[peer] = alive
}

// Liveness returns a snapshot copy of the full liveness map, used by
// the /health endpoint.
func (v *View) Liveness() map[string]bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]bool, len(v.liveness))
	for k, val := range v.liveness {
		out[k] = val
	}
	return out
}
