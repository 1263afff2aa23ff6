package line

import (
	"context"
	"fmt"
	"net"
	"syscall"
)

// BindServer binds and, for TCP, starts listening on the given port on
// all interfaces. For an IPv6 Line, IPV6_V6ONLY is set so dual-stack
// support is provided by running two Lines (one per family) rather than
// one dual-stack socket, per spec.md §4.5 step 3.
func (l *Line) BindServer(ctx context.Context, port uint16) error {
	if l.Active() {
		return fmt.Errorf("%w: %w", ErrConfig, ErrLineActive)
	}

	network := networkFor(l.kind, l.family)
	addr := net.JoinHostPort("", portString(port))

	switch l.kind {
	case KindTCP:
		return l.bindTCP(ctx, network, addr)
	case KindUDP:
		return l.bindUDP(ctx, network, addr)
	default:
		return fmt.Errorf("%w: unknown kind %v", ErrConfig, l.kind)
	}
}

func (l *Line) bindTCP(ctx context.Context, network, addr string) error {
	lc := net.ListenConfig{
		Control: l.bindControl,
	}
	ln, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	l.listener = ln
	l.peerIP = l.family.defaultPeerIP()
	l.active.Store(true)
	l.fireConnected()
	return nil
}

func (l *Line) bindUDP(ctx context.Context, network, addr string) error {
	lc := net.ListenConfig{
		Control: l.bindControl,
	}
	pc, err := lc.ListenPacket(ctx, network, addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	l.packetConn = pc
	l.peerIP = l.family.defaultPeerIP()
	l.active.Store(true)
	l.fireConnected()
	return nil
}

func (l *Line) bindControl(_, _ string, c syscall.RawConn) error {
	if err := setReuseAddr(c); err != nil {
		return err
	}
	if l.family == FamilyIPv6 {
		if err := setIPv6Only(c); err != nil {
			return err
		}
	}
	return nil
}

// Accept waits for and returns the next inbound connection as a new,
// already-active Line inheriting kind, family, and callback hooks from
// the listener. UDP Lines cannot accept. A failed accept is reported as
// errSilentAbort: the caller's server loop is expected to terminate
// cleanly on seeing it.
func (l *Line) Accept() (*Line, error) {
	if l.kind != KindTCP {
		return nil, fmt.Errorf("%w", ErrUDPCannotAccept)
	}
	if !l.Active() || l.listener == nil {
		return nil, fmt.Errorf("%w: Accept requires an active listening Line", ErrNotActive)
	}

	conn, err := l.listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSilentAbort, err)
	}

	accepted := &Line{
		kind:           l.kind,
		family:         l.family,
		connectTimeout: l.connectTimeout,
		onConnected:    l.onConnected,
		onDisconnected: l.onDisconnected,
		conn:           conn,
		peerIP:         addrFromNetAddr(conn.RemoteAddr()).String(),
	}
	accepted.active.Store(true)
	accepted.fireConnected()
	return accepted, nil
}
