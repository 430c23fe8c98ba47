package core

import (
	"context"
	"errors"
	"time"
)

// ErrNoPeers is returned by RoundRobin when no peer ever became live
// within the bounded backoff window. The frame is dropped; Endpoint.Send
// (PUSH) and Endpoint.SendRequest return this error to their caller.
var ErrNoPeers = errors.New("core: round-robin send found no live peer")

// ErrPeerGone is returned by Unicast when the target peer is no longer
// live. The frame is dropped silently; callers may ignore this error.
var ErrPeerGone = errors.New("core: unicast target peer is gone")

// roundRobinCapWaits is how many full cap-length (5000ms) backoff waits
// RoundRobin tolerates with no live peer before giving up on the send.
const roundRobinCapWaits = 3

// Scheduler writes an already-encoded frame to one or more peers per a
// destination policy. A peer whose write fails is evicted by closing its
// connection; the Manager's own read pump observes the resulting read
// error and performs the actual removal and (for outbound peers)
// reconnection, so Scheduler only needs to close the socket, not touch
// the peer set directly.
type Scheduler struct {
	peers *PeerSet
}

// NewScheduler builds a Scheduler over the given peer set.
func NewScheduler(peers *PeerSet) *Scheduler {
	return &Scheduler{peers: peers}
}

// Broadcast sends frame to every currently live peer (PUB). Every peer
// gets exactly one copy; a peer whose write fails is evicted but does not
// abort delivery to the rest.
func (s *Scheduler) Broadcast(frame []byte) {
	for _, p := range s.peers.Snapshot() {
		_ = s.write(p, frame)
	}
}

// RoundRobin sends frame to the next peer after the cursor (PUSH, REQ),
// advancing the cursor afterwards. If no peer is currently live it
// retries with the connector's backoff policy; after three full
// cap-length waits with no live peer, it gives up and returns
// ErrNoPeers.
func (s *Scheduler) RoundRobin(ctx context.Context, frame []byte) (PeerID, error) {
	b := newBackoff()
	capWaits := 0
	for {
		if peer, ok := s.peers.Next(); ok {
			id := peer.ID
			return id, s.write(peer, frame)
		}

		wait := b.NextBackOff()
		if wait >= 5000*time.Millisecond {
			capWaits++
			if capWaits > roundRobinCapWaits {
				return "", ErrNoPeers
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Unicast sends frame to exactly the peer identified by id (REP replies).
// If that peer is no longer live the frame is dropped.
func (s *Scheduler) Unicast(id PeerID, frame []byte) error {
	peer, ok := s.peers.Get(id)
	if !ok {
		return ErrPeerGone
	}
	return s.write(peer, frame)
}

// write performs the actual socket write. Go's net package never raises
// SIGPIPE for a broken pipe (the runtime treats EPIPE as an ordinary
// write error), so there is nothing extra to suppress here: a short
// write or any error is enough to evict the peer.
func (s *Scheduler) write(p *Peer, frame []byte) error {
	n, err := p.Conn.Write(frame)
	if err != nil {
		_ = p.Conn.Close()
		return err
	}
	if n != len(frame) {
		_ = p.Conn.Close()
		return errors.New("core: short write")
	}
	return nil
}
