//go:build !windows

package line

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// controlReuseAddr is installed as a Dialer/ListenConfig Control hook so
// SO_REUSEADDR is set before connect/bind, matching spec.md §4.4 step 7
// and §4.5 step 4.
func controlReuseAddr(_, _ string, c syscall.RawConn) error {
	return setReuseAddr(c)
}

func setReuseAddr(c syscall.RawConn) error {
	return controlSetsockopt(c, func(fd int) error {
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
}

func setBroadcast(c syscall.RawConn) error {
	return controlSetsockopt(c, func(fd int) error {
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
}

func setIPv6Only(c syscall.RawConn) error {
	return controlSetsockopt(c, func(fd int) error {
		return unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1)
	})
}

// controlSetsockopt runs fn against the raw descriptor behind c, folding
// the RawConn.Control error and fn's own error into one.
func controlSetsockopt(c syscall.RawConn, fn func(fd int) error) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		//nolint:gosec // fd is a kernel-provided descriptor, always a small positive int
		sockErr = fn(int(fd))
	})
	if err != nil {
		return fmt.Errorf("raw conn control: %w", err)
	}
	return sockErr
}
