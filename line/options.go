package line

import (
	"fmt"
	"net"
	"syscall"
	"time"
)

const (
	// defaultAcceptBacklog stands for the SOMAXCONN backlog of spec.md §4.5
	// step 5. It is not passed anywhere: net.ListenConfig has no backlog
	// setting, and the net package picks the listen backlog from the OS.
	defaultAcceptBacklog = 0
)

// EnableNoDelay sets TCP_NODELAY. Valid for TCP Lines only.
func (l *Line) EnableNoDelay() error {
	tc, ok := l.conn.(*net.TCPConn)
	if !ok {
		return fmt.Errorf("%w: EnableNoDelay requires an active TCP Line", ErrIO)
	}
	if err := tc.SetNoDelay(true); err != nil {
		return fmt.Errorf("%w: set TCP_NODELAY: %w", ErrIO, err)
	}
	return nil
}

// EnableKeepAlive sets SO_KEEPALIVE. Valid for TCP Lines only.
func (l *Line) EnableKeepAlive() error {
	tc, ok := l.conn.(*net.TCPConn)
	if !ok {
		return fmt.Errorf("%w: EnableKeepAlive requires an active TCP Line", ErrIO)
	}
	if err := tc.SetKeepAlive(true); err != nil {
		return fmt.Errorf("%w: set SO_KEEPALIVE: %w", ErrIO, err)
	}
	return nil
}

// EnableBroadcast sets SO_BROADCAST. Valid for UDP Lines only.
func (l *Line) EnableBroadcast() error {
	rc, err := l.rawConnForOpts()
	if err != nil {
		return err
	}
	if l.kind != KindUDP {
		return fmt.Errorf("%w: EnableBroadcast requires a UDP Line", ErrIO)
	}
	if err := setBroadcast(rc); err != nil {
		return fmt.Errorf("%w: set SO_BROADCAST: %w", ErrIO, err)
	}
	return nil
}

// EnableIPv6Only sets IPV6_V6ONLY. A no-op returning nil when the Line's
// family is not IPv6, per spec.md's option table.
func (l *Line) EnableIPv6Only() error {
	if l.family != FamilyIPv6 {
		return nil
	}
	rc, err := l.rawConnForOpts()
	if err != nil {
		return err
	}
	if err := setIPv6Only(rc); err != nil {
		return fmt.Errorf("%w: set IPV6_V6ONLY: %w", ErrIO, err)
	}
	return nil
}

// EnableReuseAddress sets SO_REUSEADDR. Ordinarily applied pre-bind/connect
// via the Dialer/ListenConfig Control hook; this method lets a caller set
// it explicitly on an already-active Line too.
func (l *Line) EnableReuseAddress() error {
	rc, err := l.rawConnForOpts()
	if err != nil {
		return err
	}
	if err := setReuseAddr(rc); err != nil {
		return fmt.Errorf("%w: set SO_REUSEADDR: %w", ErrIO, err)
	}
	return nil
}

// SetReceiveBuffer sets SO_RCVBUF, clamped to [512, 1048576] bytes per
// spec.md's option table.
func (l *Line) SetReceiveBuffer(n int) error {
	n = clampBufferSize(n)
	setter, ok := l.bufferSetter()
	if !ok {
		return fmt.Errorf("%w: SetReceiveBuffer requires an active Line", ErrIO)
	}
	if err := setter.SetReadBuffer(n); err != nil {
		return fmt.Errorf("%w: set SO_RCVBUF: %w", ErrIO, err)
	}
	return nil
}

// SetSendBuffer sets SO_SNDBUF. The original source set SO_RCVBUF here
// instead (a copy-paste bug); this implementation sets SO_SNDBUF as
// spec.md §9 directs.
func (l *Line) SetSendBuffer(n int) error {
	n = clampBufferSize(n)
	setter, ok := l.bufferSetter()
	if !ok {
		return fmt.Errorf("%w: SetSendBuffer requires an active Line", ErrIO)
	}
	if err := setter.SetWriteBuffer(n); err != nil {
		return fmt.Errorf("%w: set SO_SNDBUF: %w", ErrIO, err)
	}
	return nil
}

func clampBufferSize(n int) int {
	if n < minReceiveBuffer {
		return minReceiveBuffer
	}
	if n > maxReceiveBuffer {
		return maxReceiveBuffer
	}
	return n
}

type bufferConn interface {
	SetReadBuffer(bytes int) error
	SetWriteBuffer(bytes int) error
}

func (l *Line) bufferSetter() (bufferConn, bool) {
	if bc, ok := l.conn.(bufferConn); ok {
		return bc, true
	}
	if bc, ok := l.packetConn.(bufferConn); ok {
		return bc, true
	}
	return nil, false
}

// SetReceiveTimeout sets the SO_RCVTIMEO-equivalent applied before each
// Recv call via the connection's read deadline.
func (l *Line) SetReceiveTimeout(d time.Duration) {
	l.recvTimeout.Store(int64(d))
}

// ReceiveTimeout returns the current receive timeout.
func (l *Line) ReceiveTimeout() time.Duration {
	return time.Duration(l.recvTimeout.Load())
}

// SetSendTimeout sets the SO_SNDTIMEO-equivalent applied before each Send
// call via the connection's write deadline.
func (l *Line) SetSendTimeout(d time.Duration) {
	l.sendTimeout.Store(int64(d))
}

// SendTimeout returns the current send timeout.
func (l *Line) SendTimeout() time.Duration {
	return time.Duration(l.sendTimeout.Load())
}

// rawConnForOpts returns a syscall.RawConn for whichever underlying
// connection type this Line currently owns.
func (l *Line) rawConnForOpts() (syscall.RawConn, error) {
	sc := l.syscallConn()
	if sc == nil {
		return nil, fmt.Errorf("%w: line has no active handle", ErrIO)
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("%w: syscall conn: %w", ErrIO, err)
	}
	return rc, nil
}
