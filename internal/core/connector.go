package core

import (
	"context"
	"fmt"
	"sync"
)

// connectorState tracks a connector through
// IDLE → CONNECTING → LIVE → (CLOSED_BY_LOCAL | LINK_DROPPED) → CONNECTING …
type connectorState int

const (
	connectorIdle connectorState = iota
	connectorConnecting
	connectorLive
	connectorClosed
)

// Connector is an outbound (hostname, port) descriptor plus its current
// peer connection, if any. It reconnects on every failure with exponential
// backoff and never gives up — its lifecycle spans from the Connect call
// until endpoint teardown.
type Connector struct {
	Host string
	Port int

	mu    sync.Mutex
	peer  *Peer
	state connectorState

	ctx    context.Context
	cancel context.CancelFunc
}

func newConnector(host string, port int, ctx context.Context, cancel context.CancelFunc) *Connector {
	return &Connector{
		Host:   host,
		Port:   port,
		state:  connectorIdle,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Address returns the "host:port" dial target.
func (c *Connector) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Matches reports whether this connector was created for exactly the
// given (host, port) pair. IsConnected is defined purely in terms of
// this — whether a connector exists for the pair — regardless of whether
// it is currently linked, since Connect registers durable intent rather
// than reporting live link state.
func (c *Connector) Matches(host string, port int) bool {
	return c.Host == host && c.Port == port
}

func (c *Connector) setPeer(p *Peer) {
	c.mu.Lock()
	c.peer = p
	if p != nil {
		c.state = connectorLive
	}
	c.mu.Unlock()
}

func (c *Connector) clearPeer() {
	c.mu.Lock()
	c.peer = nil
	if c.state != connectorClosed {
		c.state = connectorConnecting
	}
	c.mu.Unlock()
}

func (c *Connector) close() {
	c.mu.Lock()
	c.state = connectorClosed
	peer := c.peer
	c.mu.Unlock()
	c.cancel()
	if peer != nil {
		_ = peer.Conn.Close()
	}
}
