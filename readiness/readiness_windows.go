//go:build windows

package readiness

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows' fd_set is a length-prefixed array of SOCKET handles, not a
// bitmap, so it has no FD_SETSIZE-style cardinality problem to work
// around: the implementation just allocates storage sized to len(handles),
// copies the handle array in, calls select(), and copies the (shrunk)
// array back out.
//
// ws2_32.dll's select() is resolved lazily rather than linked statically,
// matching the dynamic-loading posture spec.md §6 describes for the
// Windows address-resolution API.
var (
	ws2_32     = windows.NewLazySystemDLL("ws2_32.dll")
	procSelect = ws2_32.NewProc("select")
)

const socketError = ^uintptr(0) // SOCKET_ERROR, i.e. -1 as uintptr

// winTimeval mirrors the Winsock `struct timeval`, whose fields are
// 32-bit even on 64-bit Windows.
type winTimeval struct {
	Sec  int32
	Usec int32
}

// fdSetHeaderBytes is sizeof(u_int) plus the padding Winsock inserts
// before the SOCKET array to keep it 8-byte aligned on 64-bit Windows.
const fdSetHeaderBytes = 8

// socketBytes is sizeof(SOCKET) on 64-bit Windows.
const socketBytes = 8

func readable(handles []Handle, timeout time.Duration) ([]Handle, error) {
	n := len(handles)
	buf := make([]byte, fdSetHeaderBytes+n*socketBytes)
	*(*uint32)(unsafe.Pointer(&buf[0])) = uint32(n) //nolint:gosec // n bounded by caller-supplied slice
	for i, h := range handles {
		*(*uint64)(unsafe.Pointer(&buf[fdSetHeaderBytes+i*socketBytes])) = uint64(h)
	}

	tv := winTimeval{
		Sec:  int32(timeout / time.Second),
		Usec: int32((timeout % time.Second) / time.Microsecond),
	}

	// The first argument (nfds) is ignored by Winsock's select(); it is
	// retained in the signature only for BSD-socket source compatibility.
	r1, _, callErr := procSelect.Call(
		0,
		uintptr(unsafe.Pointer(&buf[0])),
		0,
		0,
		uintptr(unsafe.Pointer(&tv)),
	)
	if r1 == socketError {
		return nil, fmt.Errorf("readiness: select: %w", callErr)
	}
	if r1 == 0 {
		return nil, nil
	}

	readyCount := *(*uint32)(unsafe.Pointer(&buf[0]))
	ready := make(map[Handle]struct{}, readyCount)
	for i := uint32(0); i < readyCount; i++ {
		h := Handle(*(*uint64)(unsafe.Pointer(&buf[fdSetHeaderBytes+int(i)*socketBytes])))
		ready[h] = struct{}{}
	}

	result := make([]Handle, 0, len(handles))
	for _, h := range handles {
		if _, ok := ready[h]; ok {
			result = append(result, h)
		}
	}
	return result, nil
}
