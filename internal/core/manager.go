package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/joelguittet/go-axon/internal/definition"
)

// ErrManagerClosed is returned by Bind/Connect once CloseAll has run.
var ErrManagerClosed = errors.New("core: connection manager is closed")

// DataHandler receives one raw read off a peer's socket. Frame boundaries
// are not yet known; the Receive Dispatcher (not this package) is what
// turns this into decoded messages.
type DataHandler func(id PeerID, conn net.Conn, data []byte)

// ErrorHandler reports a non-fatal failure to the endpoint's error
// callback.
type ErrorHandler func(err string)

// Manager owns every listener and outbound connector for one endpoint
// and publishes a single live peer set shared by the Send Scheduler and
// Receive Dispatcher.
type Manager struct {
	log     definition.Logger
	invoker *Invoker
	peers   *PeerSet
	onData  DataHandler
	onError ErrorHandler
	onEvict func(PeerID)

	mu         sync.Mutex
	closed     bool
	listeners  []*Listener
	connectors []*Connector
	wg         sync.WaitGroup
}

// NewManager builds a Manager. onData is invoked (on the invoker's
// per-peer lane, so per-connection FIFO holds) for every raw read off a
// live peer; onError forwards non-fatal failures to the endpoint.
func NewManager(log definition.Logger, invoker *Invoker, onData DataHandler, onError ErrorHandler) *Manager {
	return &Manager{
		log:     log,
		invoker: invoker,
		peers:   NewPeerSet(),
		onData:  onData,
		onError: onError,
	}
}

// Peers exposes the shared live peer set for the Send Scheduler.
func (m *Manager) Peers() *PeerSet {
	return m.peers
}

// SetOnEvict registers a hook invoked once, with no ordering guarantee
// relative to other peers, whenever a peer is evicted (link drop or
// teardown). The Dispatcher uses this to release its per-peer buffer.
func (m *Manager) SetOnEvict(f func(PeerID)) {
	m.onEvict = f
}

// Bind starts a listener on port (0 for an ephemeral port). It returns
// once the socket is bound and listening; onBind, if non-nil, is invoked
// with the actual bound port once that succeeds. A failure to set up the
// listening socket is both returned and reported through onError.
func (m *Manager) Bind(port int, onBind func(int)) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.mu.Unlock()

	lc := net.ListenConfig{Control: setReuseAddr}
	ctx, cancel := context.WithCancel(context.Background())
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		cancel()
		err = fmt.Errorf("bind: %w", err)
		m.onError(err.Error())
		return err
	}

	l := newListener(ln, ctx, cancel)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		l.close()
		return ErrManagerClosed
	}
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.acceptLoop(l)

	if onBind != nil {
		onBind(l.Port())
	}
	return nil
}

// Connect starts an outbound connector to (host, port). It returns
// immediately; the first connection attempt, and every reconnection
// after a failure, run asynchronously and never give up.
func (m *Manager) Connect(host string, port int) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := newConnector(host, port, ctx, cancel)
	m.connectors = append(m.connectors, c)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.connectLoop(c)
	return nil
}

// IsConnected reports whether a connector was ever created for exactly
// (host, port) — not whether it is currently linked. A connector that is
// mid-reconnect after a link drop still reports connected: Connect is
// treated as registering durable intent to reach that peer, not as a
// promise that the link is up right now.
func (m *Manager) IsConnected(host string, port int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.connectors {
		if c.Matches(host, port) {
			return true
		}
	}
	return false
}

// CloseAll tears down every listener, connector and live peer, and stops
// the invoker. It blocks until every worker has exited.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	listeners := m.listeners
	connectors := m.connectors
	m.mu.Unlock()

	for _, l := range listeners {
		l.close()
	}
	for _, c := range connectors {
		c.close()
	}
	for _, p := range m.peers.Snapshot() {
		_ = p.Conn.Close()
	}
	m.wg.Wait()
	m.invoker.Stop()
}

func (m *Manager) acceptLoop(l *Listener) {
	defer m.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
				return
			default:
			}
			m.onError(fmt.Sprintf("accept: %v", err))
			return
		}

		peer := &Peer{ID: NewPeerID(), Conn: conn, Origin: Accepted}
		m.peers.Add(peer)
		l.peers.Add(peer)

		m.wg.Add(1)
		go m.readPump(peer, func(p *Peer, _ error) {
			defer m.wg.Done()
			m.peers.Remove(p.ID)
			l.peers.Remove(p.ID)
			m.invoker.DropLane(p.ID)
			_ = p.Conn.Close()
			if m.onEvict != nil {
				m.onEvict(p.ID)
			}
		})
	}
}

func (m *Manager) connectLoop(c *Connector) {
	defer m.wg.Done()
	b := newBackoff()
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		conn, err := net.DialTimeout("tcp", c.Address(), 5*time.Second)
		if err != nil {
			m.onError(fmt.Sprintf("connect %s: %v", c.Address(), err))
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(b.NextBackOff()):
			}
			continue
		}
		b.Reset()

		peer := &Peer{ID: NewPeerID(), Conn: conn, Origin: Connected, Connector: c}
		m.peers.Add(peer)
		c.setPeer(peer)

		done := make(chan struct{})
		go m.readPump(peer, func(p *Peer, _ error) {
			m.peers.Remove(p.ID)
			m.invoker.DropLane(p.ID)
			_ = p.Conn.Close()
			c.clearPeer()
			if m.onEvict != nil {
				m.onEvict(p.ID)
			}
			close(done)
		})

		select {
		case <-c.ctx.Done():
			_ = conn.Close()
			<-done
			return
		case <-done:
			// link dropped; loop back around to reconnecting.
		}
	}
}

// readPump blocks reading off one peer's socket until it errors or is
// closed, handing each read to onData on that peer's serial lane so
// per-connection FIFO ordering holds even though reads across peers are
// dispatched concurrently. onDead runs exactly once, however the read
// loop ends.
func (m *Manager) readPump(peer *Peer, onDead func(*Peer, error)) {
	buf := make([]byte, 64*1024)
	for {
		n, err := peer.Conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			id := peer.ID
			conn := peer.Conn
			m.invoker.SubmitSerial(id, func() { m.onData(id, conn, data) })
		}
		if err != nil {
			onDead(peer, err)
			return
		}
		if n == 0 {
			onDead(peer, nil)
			return
		}
	}
}
