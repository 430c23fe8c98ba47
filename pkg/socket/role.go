// Package socket binds the connection manager, receive dispatcher, send
// scheduler, request/reply correlator and subscription matcher into one
// user-visible endpoint, enforcing which operations are legal for an
// endpoint's role.
package socket

import "fmt"

// Role fixes which operations and which routing rules apply to an
// Endpoint; it is immutable for the endpoint's lifetime.
type Role int

const (
	// PUB broadcasts every Send to all live peers.
	PUB Role = iota
	// SUB receives PUB broadcasts and may hold topic subscriptions.
	SUB
	// PUSH round-robins every Send across live peers.
	PUSH
	// PULL receives PUSH sends and may hold topic subscriptions.
	PULL
	// REQ sends a request round-robin and waits for a correlated reply.
	REQ
	// REP receives requests and answers them.
	REP
)

func (r Role) String() string {
	switch r {
	case PUB:
		return "PUB"
	case SUB:
		return "SUB"
	case PUSH:
		return "PUSH"
	case PULL:
		return "PULL"
	case REQ:
		return "REQ"
	case REP:
		return "REP"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}
