package socket

import (
	"context"
	"sync"
	"time"

	"github.com/joelguittet/go-axon/internal/core"
	"github.com/joelguittet/go-axon/internal/definition"
	"github.com/joelguittet/go-axon/pkg/amp"
)

// Endpoint is a single logical messaging participant, created with one
// immutable role, owning a connection manager and the role-specific
// state (subscriptions for SUB/PULL, the request/reply correlator for
// REQ).
type Endpoint struct {
	role Role
	log  definition.Logger

	invoker    *core.Invoker
	manager    *core.Manager
	dispatcher *core.Dispatcher
	scheduler  *core.Scheduler
	subs       *core.Subscriptions // non-nil only for SUB, PULL
	correlator *core.Correlator    // non-nil only for REQ

	cbMu      sync.RWMutex
	onBind    BindFunc
	onMessage MessageFunc
	onError   ErrorFunc

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// New creates an Endpoint for the given role. The endpoint has no
// listeners or outbound connections until Bind/Connect are called.
func New(role Role, opts ...Option) *Endpoint {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	invoker := core.NewInvoker()

	e := &Endpoint{
		role:      role,
		log:       cfg.logger,
		invoker:   invoker,
		onBind:    cfg.onBind,
		onMessage: cfg.onMessage,
		onError:   cfg.onError,
		ctx:       ctx,
		cancel:    cancel,
	}

	if role == SUB || role == PULL {
		e.subs = core.NewSubscriptions()
	}
	if role == REQ {
		e.correlator = core.NewCorrelator()
	}

	e.dispatcher = core.NewDispatcher(e.log, e.route)
	e.manager = core.NewManager(e.log, invoker, e.dispatcher.Feed, e.reportError)
	e.manager.SetOnEvict(e.dispatcher.Drop)
	e.scheduler = core.NewScheduler(e.manager.Peers())

	return e
}

// Role returns the endpoint's immutable role.
func (e *Endpoint) Role() Role {
	return e.role
}

// Bind starts a listener on port (0 picks an ephemeral port), legal for
// every role.
func (e *Endpoint) Bind(port int) error {
	return e.manager.Bind(port, func(actual int) {
		e.cbMu.RLock()
		cb := e.onBind
		e.cbMu.RUnlock()
		if cb != nil {
			cb(actual)
		}
	})
}

// Connect starts an outbound connector to (host, port), legal for every
// role. It returns once the connector is registered; the connection
// itself, and every reconnection after a failure, happen asynchronously.
func (e *Endpoint) Connect(host string, port int) error {
	return e.manager.Connect(host, port)
}

// IsConnected reports whether Connect was ever called for exactly
// (host, port), regardless of whether that link is currently up.
func (e *Endpoint) IsConnected(host string, port int) bool {
	return e.manager.IsConnected(host, port)
}

// OnBind registers the bind callback, legal for every role.
func (e *Endpoint) OnBind(f BindFunc) error {
	e.cbMu.Lock()
	e.onBind = f
	e.cbMu.Unlock()
	return nil
}

// OnMessage registers the generic message callback. Legal for SUB, PULL,
// REQ, REP.
func (e *Endpoint) OnMessage(f MessageFunc) error {
	switch e.role {
	case SUB, PULL, REQ, REP:
		e.cbMu.Lock()
		e.onMessage = f
		e.cbMu.Unlock()
		return nil
	default:
		return roleMismatch("OnMessage", e.role)
	}
}

// OnError registers the error callback, legal for every role.
func (e *Endpoint) OnError(f ErrorFunc) error {
	e.cbMu.Lock()
	e.onError = f
	e.cbMu.Unlock()
	return nil
}

// Subscribe registers pattern (an extended POSIX regular expression)
// with cb, replacing any existing callback for the same pattern. Legal
// for SUB, PULL only.
func (e *Endpoint) Subscribe(pattern string, cb SubFunc) error {
	if e.subs == nil {
		return roleMismatch("Subscribe", e.role)
	}
	return e.subs.Register(pattern, func(topic string, msg *amp.Message, _ interface{}) {
		cb(topic, msg)
	}, nil)
}

// Unsubscribe removes pattern. Removing a pattern that isn't registered
// is a no-op success. Legal for SUB, PULL only.
func (e *Endpoint) Unsubscribe(pattern string) error {
	if e.subs == nil {
		return roleMismatch("Unsubscribe", e.role)
	}
	e.subs.Unregister(pattern)
	return nil
}

// Send broadcasts (PUB) or round-robins (PUSH) fields as one message to
// live peers. Legal for PUB, PUSH only; use SendRequest for REQ.
func (e *Endpoint) Send(fields ...amp.Field) error {
	msg := amp.New(fields...)
	frame, err := amp.Encode(msg)
	if err != nil {
		return err
	}

	switch e.role {
	case PUB:
		e.scheduler.Broadcast(frame)
		return nil
	case PUSH:
		_, err := e.scheduler.RoundRobin(e.ctx, frame)
		return err
	default:
		return roleMismatch("Send", e.role)
	}
}

// SendRequest sends fields as a request (REQ only), appending the
// correlation id as the final field, and blocks until either the
// matching reply arrives or timeout elapses. timeout bounds the whole
// call, including the time spent waiting for a live peer to round-robin
// onto, not just the reply wait: the call returns within timeout + ε
// whether or not a reply is ever produced. Legal for REQ only.
func (e *Endpoint) SendRequest(timeout time.Duration, fields ...amp.Field) (*amp.Message, error) {
	if e.role != REQ {
		return nil, roleMismatch("SendRequest", e.role)
	}

	deadline := time.Now().Add(timeout)
	sendCtx, cancel := context.WithDeadline(e.ctx, deadline)
	defer cancel()

	id := e.correlator.NextID()
	ch := e.correlator.Register(id)

	msg := amp.New(fields...).Push(amp.NewString(id))
	frame, err := amp.Encode(msg)
	if err != nil {
		e.correlator.Cancel(id)
		return nil, err
	}

	if _, err := e.scheduler.RoundRobin(sendCtx, frame); err != nil {
		e.correlator.Cancel(id)
		switch err {
		case context.DeadlineExceeded:
			return nil, core.ErrReplyTimeout
		case context.Canceled:
			return nil, core.ErrTeardown
		default:
			return nil, err
		}
	}

	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	return e.correlator.Wait(e.ctx, id, ch, remaining)
}

// Close tears down every listener, connector and worker owned by the
// endpoint. In-flight REQ calls wake up with core.ErrTeardown. No further
// callback invocations occur once Close returns.
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() {
		e.cancel()
		e.manager.CloseAll()
	})
}

// route dispatches one decoded inbound message according to the
// endpoint's role.
func (e *Endpoint) route(id core.PeerID, msg *amp.Message) {
	switch e.role {
	case SUB, PULL:
		e.routeSubscriber(msg)
	case REP:
		e.routeReplier(id, msg)
	case REQ:
		e.routeRequester(msg)
	case PUB, PUSH:
		// Inbound frames aren't expected in these roles; ignore them.
	}
}

func (e *Endpoint) routeSubscriber(msg *amp.Message) {
	if cb := e.getOnMessage(); cb != nil {
		cb(msg)
	}

	if e.subs == nil {
		return
	}
	first, ok := msg.First()
	if !ok || first.Type != amp.String {
		return
	}
	topic, err := first.String()
	if err != nil {
		return
	}
	e.subs.Dispatch(topic, msg.DropFirst())
}

func (e *Endpoint) routeReplier(id core.PeerID, msg *amp.Message) {
	last, ok := msg.Last()
	if !ok {
		return
	}
	reqID, err := last.String()
	if err != nil {
		e.reportError("rep: request id field is not a string")
		return
	}
	body := msg.DropLast()

	cb := e.getOnMessage()
	if cb == nil {
		return
	}
	reply := cb(body)
	if reply == nil {
		return
	}

	out := reply.Clone().Push(amp.NewString(reqID))
	frame, err := amp.Encode(out)
	if err != nil {
		e.reportError("rep: failed encoding reply: " + err.Error())
		return
	}
	_ = e.scheduler.Unicast(id, frame)
}

func (e *Endpoint) routeRequester(msg *amp.Message) {
	last, ok := msg.Last()
	if !ok {
		return
	}
	reqID, err := last.String()
	if err != nil {
		return
	}
	e.correlator.Deliver(reqID, msg.DropLast())
}

func (e *Endpoint) getOnMessage() MessageFunc {
	e.cbMu.RLock()
	defer e.cbMu.RUnlock()
	return e.onMessage
}

func (e *Endpoint) reportError(msg string) {
	e.cbMu.RLock()
	cb := e.onError
	e.cbMu.RUnlock()
	if cb != nil {
		cb(msg)
	} else {
		e.log.Errorf("%s", msg)
	}
}
