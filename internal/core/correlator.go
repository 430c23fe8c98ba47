package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joelguittet/go-axon/pkg/amp"
)

// ErrReplyTimeout is returned by Wait when no reply arrived before the
// caller's deadline.
var ErrReplyTimeout = errors.New("core: reply timeout")

// ErrTeardown is returned by Wait when the endpoint was torn down while a
// request was in flight, instead of silently hanging until the deadline.
var ErrTeardown = errors.New("core: endpoint torn down while awaiting reply")

// Correlator mints process-unique request ids and provides a one-shot,
// timed rendezvous between the goroutine that sent a REQ and the
// dispatcher goroutine that eventually delivers the matching reply.
type Correlator struct {
	pid     int
	counter uint64

	mu      sync.Mutex
	pending map[string]chan *amp.Message
}

// NewCorrelator builds a Correlator for one REQ-role endpoint.
func NewCorrelator() *Correlator {
	return &Correlator{
		pid:     os.Getpid(),
		pending: make(map[string]chan *amp.Message),
	}
}

// NextID mints a fresh request id of the form "<pid>:<counter>", unique
// within this process's lifetime.
func (c *Correlator) NextID() string {
	n := atomic.AddUint64(&c.counter, 1)
	return fmt.Sprintf("%d:%d", c.pid, n)
}

// Register opens a rendezvous slot for id and returns the channel the
// reply (or nothing, on timeout/teardown) will arrive on. It must be
// called before the request frame is handed to the Send Scheduler, so a
// reply that races back ahead of the send still finds its slot.
func (c *Correlator) Register(id string) chan *amp.Message {
	ch := make(chan *amp.Message, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

// Cancel destroys a rendezvous slot without waiting on it, used when the
// send itself failed outright (e.g. ErrNoPeers) and no reply will ever
// arrive.
func (c *Correlator) Cancel(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Wait blocks on the slot ch (returned by Register for id) until either
// the matching reply is delivered, timeout elapses, or ctx is cancelled
// (endpoint teardown). The slot is destroyed either way.
func (c *Correlator) Wait(ctx context.Context, id string, ch chan *amp.Message, timeout time.Duration) (*amp.Message, error) {
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	select {
	case msg := <-ch:
		return msg, nil
	case <-time.After(timeout):
		return nil, ErrReplyTimeout
	case <-ctx.Done():
		return nil, ErrTeardown
	}
}

// Deliver places msg into the rendezvous slot for id, waking the waiting
// caller. It reports whether a pending slot existed; a false return means
// the reply arrived after its deadline and is dropped.
func (c *Correlator) Deliver(id string, msg *amp.Message) bool {
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
	default:
	}
	return true
}
