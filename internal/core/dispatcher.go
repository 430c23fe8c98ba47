package core

import (
	"net"
	"sync"

	"github.com/joelguittet/go-axon/internal/definition"
	"github.com/joelguittet/go-axon/pkg/amp"
)

// Route delivers one fully decoded message for peer id to its
// role-specific handler (subscription matching, reply correlation, the
// generic message callback — all Endpoint concerns, not this package's).
type Route func(id PeerID, msg *amp.Message)

// Dispatcher turns raw reads off a peer socket into whole decoded AMP
// frames and hands each to Route. It holds one accumulation buffer per
// peer, since a single read may contain a partial frame, several whole
// frames, or both.
type Dispatcher struct {
	mu    sync.Mutex
	bufs  map[PeerID][]byte
	log   definition.Logger
	route Route
}

// NewDispatcher builds a Dispatcher. route is invoked once per decoded
// message. Decode failures are logged internally and never reach the
// endpoint's error callback; the link stays up and its buffer is simply
// discarded.
func NewDispatcher(log definition.Logger, route Route) *Dispatcher {
	return &Dispatcher{
		bufs:  make(map[PeerID][]byte),
		log:   log,
		route: route,
	}
}

// Feed is the DataHandler wired to the Manager: one raw read off id's
// socket. It decodes as many whole frames as the accumulated buffer
// holds and routes each in order, then stores whatever partial frame is
// left over for the next read.
func (d *Dispatcher) Feed(id PeerID, _ net.Conn, data []byte) {
	d.mu.Lock()
	buf := append(d.bufs[id], data...)

	var ready []*amp.Message
decodeLoop:
	for {
		msg, consumed, err := amp.Decode(buf)
		switch err {
		case nil:
			if consumed <= 0 {
				// Never trust a decode that didn't advance the buffer;
				// looping on it would spin forever on the same bytes.
				// The link stays up; this is never surfaced to the
				// endpoint's error callback, only logged internally.
				d.log.Debugf("peer %s: decode made no progress, discarding buffer", id)
				buf = nil
				break decodeLoop
			}
			buf = buf[consumed:]
			if msg.Len() > 0 {
				ready = append(ready, msg)
			}
			// Zero-field messages carry no payload and are dropped silently.
		case amp.ErrIncomplete:
			break decodeLoop
		default: // amp.ErrMalformed or any other decode failure
			// Discard the buffer and keep the link; never fire the
			// endpoint's error callback for a decode failure.
			d.log.Debugf("peer %s: dropping buffer after decode error: %v", id, err)
			buf = nil
			break decodeLoop
		}
	}

	d.bufs[id] = buf
	d.mu.Unlock()

	for _, msg := range ready {
		d.route(id, msg)
	}
}

// Drop releases id's accumulation buffer once its peer is evicted.
func (d *Dispatcher) Drop(id PeerID) {
	d.mu.Lock()
	delete(d.bufs, id)
	d.mu.Unlock()
}
