package core

import (
	"net"
	"sync"

	"github.com/google/uuid"
)

// PeerID stably identifies a live peer connection for the lifetime of the
// endpoint. Ids are never reused: a fresh UUID is assigned on entry and
// never recycled, even after the peer it named is evicted.
type PeerID string

// NewPeerID mints a fresh, never-reused peer identifier.
func NewPeerID() PeerID {
	return PeerID(uuid.NewString())
}

// Origin records whether a peer connection was accepted by a Listener or
// established by a Connector.
type Origin int

const (
	// Accepted means a Listener's accept loop produced this peer.
	Accepted Origin = iota
	// Connected means a Connector established this peer outbound.
	Connected
)

// Peer is a live, bidirectional TCP stream plus the bookkeeping the
// Connection Manager needs to evict and, for outbound links, reconnect it.
type Peer struct {
	ID        PeerID
	Conn      net.Conn
	Origin    Origin
	Connector *Connector // non-nil iff Origin == Connected; owns reconnection
}

// PeerSet is the single logical set of live peer connections shared by
// every listener and connector of one endpoint, observable atomically
// regardless of which listener or connector last touched it. The
// round-robin cursor indexes into this set, so all mutation and cursor
// advancement share one mutex.
type PeerSet struct {
	mu     sync.Mutex
	order  []PeerID
	peers  map[PeerID]*Peer
	cursor int
}

// NewPeerSet builds an empty PeerSet.
func NewPeerSet() *PeerSet {
	return &PeerSet{peers: make(map[PeerID]*Peer)}
}

// Add registers a newly live peer.
func (s *PeerSet) Add(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.peers[p.ID]; exists {
		return
	}
	s.peers[p.ID] = p
	s.order = append(s.order, p.ID)
}

// Remove evicts a peer by id, returning it if it was present.
func (s *PeerSet) Remove(id PeerID) (*Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		return nil, false
	}
	delete(s.peers, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			if s.cursor > i {
				s.cursor--
			}
			break
		}
	}
	if len(s.order) > 0 {
		s.cursor = s.cursor % len(s.order)
	} else {
		s.cursor = 0
	}
	return p, true
}

// Get looks up a live peer by id.
func (s *PeerSet) Get(id PeerID) (*Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	return p, ok
}

// Len reports the number of live peers.
func (s *PeerSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Snapshot returns every live peer, in an unspecified but complete order —
// enough for broadcast, which must reach every peer exactly once but makes
// no ordering promise across peers.
func (s *PeerSet) Snapshot() []*Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Peer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.peers[id])
	}
	return out
}

// Next returns the peer after the round-robin cursor and advances it.
// Picking strictly the next entry past the cursor (rather than scanning
// every live peer and returning whichever was seen last, an easy
// off-by-one that silently always returns the same peer when iteration
// order is stable) is what keeps sends fanning out evenly.
func (s *PeerSet) Next() (*Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return nil, false
	}
	idx := s.cursor % len(s.order)
	s.cursor = (idx + 1) % len(s.order)
	return s.peers[s.order[idx]], true
}
