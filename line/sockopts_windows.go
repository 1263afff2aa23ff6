//go:build windows

package line

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
)

// controlReuseAddr is installed as a Dialer/ListenConfig Control hook so
// SO_REUSEADDR is set before connect/bind.
func controlReuseAddr(_, _ string, c syscall.RawConn) error {
	return setReuseAddr(c)
}

func setReuseAddr(c syscall.RawConn) error {
	return controlSetsockopt(c, func(fd windows.Handle) error {
		return windows.SetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
}

func setBroadcast(c syscall.RawConn) error {
	return controlSetsockopt(c, func(fd windows.Handle) error {
		return windows.SetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_BROADCAST, 1)
	})
}

func setIPv6Only(c syscall.RawConn) error {
	return controlSetsockopt(c, func(fd windows.Handle) error {
		return windows.SetsockoptInt(fd, windows.IPPROTO_IPV6, windows.IPV6_V6ONLY, 1)
	})
}

// controlSetsockopt runs fn against the raw SOCKET handle behind c,
// folding the RawConn.Control error and fn's own error into one.
func controlSetsockopt(c syscall.RawConn, fn func(fd windows.Handle) error) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = fn(windows.Handle(fd))
	})
	if err != nil {
		return fmt.Errorf("raw conn control: %w", err)
	}
	return sockErr
}
