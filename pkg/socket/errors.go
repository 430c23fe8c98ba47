package socket

import (
	"errors"
	"fmt"
)

// ErrRoleMismatch is returned when an operation is invoked on an endpoint
// whose role does not support it. The operation has no side effect.
var ErrRoleMismatch = errors.New("socket: operation not legal for this endpoint's role")

// ErrClosed names the closed-endpoint condition. No Endpoint method
// returns it: after Close, Bind and Connect return core.ErrManagerClosed,
// a PUSH Send returns context.Canceled and SendRequest returns
// core.ErrTeardown.
var ErrClosed = errors.New("socket: endpoint is closed")

func roleMismatch(op string, role Role) error {
	return fmt.Errorf("%w: %s on a %s endpoint", ErrRoleMismatch, op, role)
}
