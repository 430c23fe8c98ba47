//go:build unix

package core

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setReuseAddr applies SO_REUSEADDR to the listening socket before bind,
// so a quick rebind to the same port after teardown doesn't hit
// "address already in use".
func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
