//go:build windows

package core

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// setReuseAddr applies SO_REUSEADDR to the listening socket before bind,
// so a quick rebind to the same port after teardown doesn't hit
// "address already in use".
func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
