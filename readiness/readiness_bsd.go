//go:build darwin || freebsd || netbsd || openbsd

package readiness

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// readable falls back to unix.Select on BSD-family kernels. These
// platforms are out of scope for the scalability requirement (spec.md's
// 2048-handle scenario targets Linux); unix.Select remains bound by the
// native FD_SETSIZE, documented here rather than silently accepted.
func readable(handles []Handle, timeout time.Duration) ([]Handle, error) {
	maxFD := int(handles[0])
	for _, h := range handles {
		if int(h) > maxFD {
			maxFD = int(h)
		}
	}
	if maxFD >= unix.FD_SETSIZE {
		return nil, fmt.Errorf("readiness: handle %d exceeds platform FD_SETSIZE %d", maxFD, unix.FD_SETSIZE)
	}

	var set unix.FdSet
	for _, h := range handles {
		fdSet(&set, int(h))
	}

	ts := unix.NsecToTimeval(timeout.Nanoseconds())

	n, err := unix.Select(maxFD+1, &set, nil, nil, &ts)
	if err != nil {
		return nil, fmt.Errorf("readiness: select: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	result := make([]Handle, 0, len(handles))
	for _, h := range handles {
		if fdIsSet(&set, int(h)) {
			result = append(result, h)
		}
	}
	return result, nil
}

// fdSet and fdIsSet work in terms of unix.FdSet.Bits' native element width
// (32 bits on Darwin, NetBSD and OpenBSD; 64 bits on 64-bit FreeBSD) rather
// than assuming a fixed word, since this file is the non-scalable fallback
// bound by the platform's own FD_SETSIZE.
const bsdWordBits = int(unsafe.Sizeof(unix.FdSet{}.Bits[0])) * 8

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/bsdWordBits] |= 1 << (uint(fd) % bsdWordBits)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/bsdWordBits]&(1<<(uint(fd)%bsdWordBits)) != 0
}
