// Package registry implements the Peer Registry (spec.md §4.2): the set
// of connected peers with role, latency, permissions, and liveness.
package registry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// rttGauge exports each peer's measured round-trip latency, grounded on
// SPEC_FULL.md's domain-stack wiring of prometheus/client_golang.
var rttGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "replicore",
	Name:      "peer_rtt_seconds",
	Help:      "Measured round-trip latency per peer.",
}, []string{"peer"})

func init() {
	prometheus.MustRegister(rttGauge)
}

// Registry owns every types.Peer. Mutated only by the Controller's tick,
// mirroring the teacher's single-owner-per-tick discipline.
type Registry struct {
	mutex             sync.RWMutex
	peers             map[types.PeerID]*types.Peer
	timeoutThreshold  time.Duration
	maxPeers          int
	successor         types.PeerID // pre-registered host-migration successor
}

func New(timeoutThreshold time.Duration, maxPeers int) *Registry {
	return &Registry{
		peers:            make(map[types.PeerID]*types.Peer),
		timeoutThreshold: timeoutThreshold,
		maxPeers:         maxPeers,
	}
}

// Attach adds a new peer under the given role. At most one peer may
// hold role host at any time; attaching a second host is rejected.
func (r *Registry) Attach(id types.PeerID, role types.Role, protocolVersion string, now time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.peers) >= r.maxPeers {
		return &types.OvercapacityError{Resource: "peers", Limit: r.maxPeers}
	}
	if role == types.RoleHost {
		for _, p := range r.peers {
			if p.Connected && p.Role == types.RoleHost {
				return &types.RejectedError{Reason: types.ReasonPermissionDenied}
			}
		}
	}
	r.peers[id] = &types.Peer{
		ID:              id,
		Role:            role,
		LastHeard:       now,
		ProtocolVersion: protocolVersion,
		Connected:       true,
	}
	return nil
}

// Detach removes a peer explicitly (a "leave").
func (r *Registry) Detach(id types.PeerID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.peers, id)
	rttGauge.DeleteLabelValues(string(id))
}

// MarkHeard updates the liveness timestamp for id.
func (r *Registry) MarkHeard(id types.PeerID, now time.Time) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if p, ok := r.peers[id]; ok {
		p.LastHeard = now
	}
}

// RecordRTT records a fresh latency measurement for id.
func (r *Registry) RecordRTT(id types.PeerID, rtt time.Duration) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if p, ok := r.peers[id]; ok {
		p.RTT = rtt
		rttGauge.WithLabelValues(string(id)).Set(rtt.Seconds())
	}
}

// Prune removes every peer whose last-heard timestamp is older than the
// timeout threshold, returning their ids so callers (the Controller)
// can cascade lock release.
func (r *Registry) Prune(now time.Time) []types.PeerID {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var removed []types.PeerID
	for id, p := range r.peers {
		if now.Sub(p.LastHeard) > r.timeoutThreshold {
			removed = append(removed, id)
			delete(r.peers, id)
			rttGauge.DeleteLabelValues(string(id))
		}
	}
	return removed
}

// Get returns a copy of the peer record for id.
func (r *Registry) Get(id types.PeerID) (types.Peer, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	p, ok := r.peers[id]
	if !ok {
		return types.Peer{}, false
	}
	return *p, true
}

// All returns a snapshot of every connected peer.
func (r *Registry) All() []types.Peer {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	out := make([]types.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, *p)
	}
	return out
}

// Host returns the current host peer, if any.
func (r *Registry) Host() (types.Peer, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	for _, p := range r.peers {
		if p.Role == types.RoleHost && p.Connected {
			return *p, true
		}
	}
	return types.Peer{}, false
}

// DesignateSuccessor pre-registers the peer that should be promoted to
// host if the current host disappears, making host migration a
// first-class operation per spec.md §9.
func (r *Registry) DesignateSuccessor(id types.PeerID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.successor = id
}

// MigrateHost demotes the current host (if any) and promotes the
// pre-registered successor, atomically within the caller's tick. It
// returns the promoted peer id, or false if no successor was
// registered or the successor is not connected.
func (r *Registry) MigrateHost() (types.PeerID, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	successor, ok := r.peers[r.successor]
	if !ok || !successor.Connected {
		return "", false
	}
	for _, p := range r.peers {
		if p.Role == types.RoleHost {
			p.Role = types.RoleClient
		}
	}
	successor.Role = types.RoleHost
	r.successor = ""
	return successor.ID, true
}

// Count returns the number of currently registered peers.
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.peers)
}
