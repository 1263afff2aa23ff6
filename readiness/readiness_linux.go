//go:build linux

package readiness

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// bitsPerWord is the width of one word in the custom descriptor-set
// bitmap. 64 matches the native word size pselect6 expects per fd_set
// word on amd64/arm64 Linux.
const bitsPerWord = 64

// readable builds a descriptor-set bitmap sized to the actual range of
// handles rather than the fixed FD_SETSIZE (1024) the libc fd_set macros
// enforce, then invokes pselect6 directly via unix.Syscall6 so the kernel
// never sees the FD_SETSIZE-capped layout at all.
func readable(handles []Handle, timeout time.Duration) ([]Handle, error) {
	maxFD := handles[0]
	for _, h := range handles {
		if h > maxFD {
			maxFD = h
		}
	}

	wordCount := int(maxFD)/bitsPerWord + 1
	bitmap := make([]uint64, wordCount)
	for _, h := range handles {
		bitmap[int(h)/bitsPerWord] |= 1 << (uint(h) % bitsPerWord)
	}

	// Per spec: nfds is sized to word_count * bitsPerWord, not maxFD+1.
	// This is what lets the bitmap (and therefore the handle set) grow
	// past the traditional 1024-descriptor FD_SETSIZE cap.
	nfds := wordCount * bitsPerWord

	ts := unix.NsecToTimespec(timeout.Nanoseconds())

	n, _, errno := unix.Syscall6(
		unix.SYS_PSELECT6,
		uintptr(nfds),
		uintptr(unsafe.Pointer(&bitmap[0])),
		0, // writefds
		0, // exceptfds
		uintptr(unsafe.Pointer(&ts)),
		0, // sigmask
	)
	if errno != 0 {
		return nil, fmt.Errorf("readiness: pselect6: %w", errno)
	}
	if n == 0 {
		return nil, nil
	}

	result := make([]Handle, 0, len(handles))
	for _, h := range handles {
		word := bitmap[int(h)/bitsPerWord]
		if word&(1<<(uint(h)%bitsPerWord)) != 0 {
			result = append(result, h)
		}
	}
	return result, nil
}
