package relay

import "sync"

// Registry is the set of currently open peers, keyed by connection ID.
// All operations are mutually exclusive with each other.
type Registry struct {
	mu    sync.RWMutex
	peers map[ConnID]Peer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[ConnID]Peer),
	}
}

// Add inserts peer and reports whether it was not already a member.
func (r *Registry) Add(peer Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := peer.ID()
	if _, exists := r.peers[id]; exists {
		return false
	}
	r.peers[id] = peer
	return true
}

// Remove deletes the peer with the given ID and reports whether it was present.
func (r *Registry) Remove(id ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[id]; !exists {
		return false
	}
	delete(r.peers, id)
	return true
}

// Contains reports whether id is currently registered.
func (r *Registry) Contains(id ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.peers[id]
	return exists
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.peers)
}

// ForEachExcept calls fn for every member other than except and returns the
// number of peers visited. fn runs on a snapshot taken under the lock, so it
// may call back into the registry; peers joining while fn runs are not visited.
func (r *Registry) ForEachExcept(except ConnID, fn func(Peer)) int {
	targets := r.snapshotExcept(except)
	for _, peer := range targets {
		fn(peer)
	}
	return len(targets)
}

func (r *Registry) snapshotExcept(except ConnID) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]Peer, 0, len(r.peers))
	for id, peer := range r.peers {
		if id == except {
			continue
		}
		targets = append(targets, peer)
	}
	return targets
}

// Drain removes every member and returns them.
func (r *Registry) Drain() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers := make([]Peer, 0, len(r.peers))
	for id, peer := range r.peers {
		peers = append(peers, peer)
		delete(r.peers, id)
	}
	return peers
}
