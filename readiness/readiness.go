// Package readiness implements the scalable readiness multiplexer: given a
// set of OS socket handles and a millisecond timeout, it reports the subset
// that is currently readable (data available, peer closed, or an incoming
// connection pending).
//
// The POSIX implementation builds its own descriptor-set bitmap sized to
// the actual handle range rather than the platform's fixed FD_SETSIZE
// (typically 1024), which is the one piece of this design that must be
// preserved exactly: sizing nfds to word_count*bits_per_word is what
// unlocks more than 1024 descriptors. The Windows implementation mirrors
// the native length-prefixed handle-array ABI instead, since Windows'
// select() has no such cap to work around.
package readiness

import (
	"errors"
	"time"
)

// Handle is an OS socket descriptor: an fd on POSIX, a SOCKET on Windows.
type Handle uintptr

// ErrNegativeTimeout is returned when timeout is negative.
var ErrNegativeTimeout = errors.New("readiness: timeout must be >= 0")

// Readable blocks up to timeout waiting for any handle in handles to
// become readable, then returns the subset that is ready. A zero timeout
// performs a non-blocking poll. An empty handles slice returns an empty
// result immediately regardless of timeout.
//
// The readiness primitive gives no ordering guarantee among ready
// descriptors; Readable preserves the input order in its output.
func Readable(handles []Handle, timeout time.Duration) ([]Handle, error) {
	if timeout < 0 {
		return nil, ErrNegativeTimeout
	}
	if len(handles) == 0 {
		return nil, nil
	}
	return readable(handles, timeout)
}

// ReadableAny is a convenience wrapper: true iff Readable(handles, timeout)
// returns a non-empty set.
func ReadableAny(handles []Handle, timeout time.Duration) (bool, error) {
	ready, err := Readable(handles, timeout)
	if err != nil {
		return false, err
	}
	return len(ready) > 0, nil
}
