package gsession

import (
	"net/netip"
	"sync"
)

// Registry holds the two session tables described in SPEC_FULL.md §3:
// unclaimed sessions (stream accepted, no datagram yet, searched
// linearly by claim secret) and claimed sessions (keyed by datagram peer
// address, reachable from datagram ingress routing).
type Registry struct {
	mu        sync.Mutex
	unclaimed []*Session
	claimed   map[netip.AddrPort]*Session
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{claimed: make(map[netip.AddrPort]*Session)}
}

// AddUnclaimed appends a freshly accepted Session to the back of the
// unclaimed table (invariant 1: a Session starts in exactly one table).
func (r *Registry) AddUnclaimed(s *Session) {
	r.mu.Lock()
	r.unclaimed = append(r.unclaimed, s)
	r.mu.Unlock()
}

// Claim implements the claim protocol (SPEC_FULL.md §4.3): it finds the
// first unclaimed session whose claim secret matches key and whose
// claimed flag is false, moves it to the claimed table under peer, and
// reports success. A non-matching secret never mutates any session
// (idempotent-on-failure, SPEC_FULL.md §8).
func (r *Registry) Claim(peer netip.AddrPort, secret uint32) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, s := range r.unclaimed {
		if s.ClaimSecret() == secret && !s.Claimed() {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, false
	}

	s := r.unclaimed[idx]
	r.unclaimed = append(r.unclaimed[:idx], r.unclaimed[idx+1:]...)
	s.markClaimed(peer)
	r.claimed[peer] = s
	return s, true
}

// Lookup returns the claimed session bound to peer, if any.
func (r *Registry) Lookup(peer netip.AddrPort) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.claimed[peer]
	return s, ok
}

// RemoveUnclaimed removes s from the unclaimed table if present.
func (r *Registry) RemoveUnclaimed(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.unclaimed {
		if c == s {
			r.unclaimed = append(r.unclaimed[:i], r.unclaimed[i+1:]...)
			return
		}
	}
}

// RemoveClaimed removes the claimed entry keyed by peer, reporting
// whether one was found.
func (r *Registry) RemoveClaimed(peer netip.AddrPort) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.claimed[peer]; !ok {
		return false
	}
	delete(r.claimed, peer)
	return true
}

// FindClaimedPeer reverse-looks-up the datagram peer key for a claimed
// session by identity, for callers that only know the Session pointer
// (e.g. post-disconnect reconciliation, which only has the stream side).
func (r *Registry) FindClaimedPeer(s *Session) (netip.AddrPort, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for peer, c := range r.claimed {
		if c == s {
			return peer, true
		}
	}
	return netip.AddrPort{}, false
}

// SnapshotClaimed returns a copy of every currently claimed session.
// Callers must release the registry lock before sending on any of the
// returned sessions' queues (SPEC_FULL.md §5's no-suspend-while-locked
// rule); this method itself never suspends.
func (r *Registry) SnapshotClaimed() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.claimed))
	for _, s := range r.claimed {
		out = append(out, s)
	}
	return out
}

// SnapshotUnclaimed returns a copy of the unclaimed table, oldest first.
func (r *Registry) SnapshotUnclaimed() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, len(r.unclaimed))
	copy(out, r.unclaimed)
	return out
}

// Counts returns the current sizes of both tables under one lock.
func (r *Registry) Counts() (claimed, unclaimed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.claimed), len(r.unclaimed)
}

// PlayerCount returns the number of claimed sessions with a nonzero
// account id (invariant 6).
func (r *Registry) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.claimed {
		if s.AccountID() != 0 {
			n++
		}
	}
	return n
}
