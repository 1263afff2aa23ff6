package line

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"time"
)

// Send writes buf to the Line's fixed peer (the connected TCP stream or a
// connect()-ed UDP socket).
//
// TCP: any error self-closes the Line (firing on_disconnected) and
// returns errSilentAbort — spec.md §4.6 treats a TCP send failure as
// evidence the connection is broken.
// UDP: an error is returned as ErrIO without closing the Line, since UDP
// send failures are often transient and per-datagram.
func (l *Line) Send(buf []byte) (int, error) {
	if !l.Active() || l.conn == nil {
		return 0, fmt.Errorf("%w: Send requires a connected Line", ErrNotActive)
	}

	if d := l.SendTimeout(); d > 0 {
		_ = l.conn.SetWriteDeadline(time.Now().Add(d))
	}

	n, err := l.conn.Write(buf)
	if err != nil {
		if l.kind == KindTCP {
			_ = l.Close()
			return n, fmt.Errorf("%w: %w", errSilentAbort, err)
		}
		return n, fmt.Errorf("%w: %w", ErrIO, err)
	}

	l.lastSent.Store(time.Now().UnixNano())
	return n, nil
}

// SendTo writes buf to addr over an unconnected UDP Line (the broadcast
// or otherwise peer-less case from spec.md §4.4 step 9).
func (l *Line) SendTo(buf []byte, addr netip.AddrPort) (int, error) {
	if !l.Active() || l.packetConn == nil {
		return 0, fmt.Errorf("%w: SendTo requires an unconnected UDP Line", ErrNotActive)
	}

	if d := l.SendTimeout(); d > 0 {
		_ = l.packetConn.SetWriteDeadline(time.Now().Add(d))
	}

	n, err := l.packetConn.WriteTo(buf, net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrIO, err)
	}

	l.lastSent.Store(time.Now().UnixNano())
	return n, nil
}

// Recv reads into buf from the Line's fixed peer.
//
// TCP: a zero-byte read (orderly peer close) or any error self-closes the
// Line and returns errSilentAbort. UDP: an error returns ErrIO without
// closing.
func (l *Line) Recv(buf []byte) (int, error) {
	if !l.Active() || l.conn == nil {
		return 0, fmt.Errorf("%w: Recv requires a connected Line", ErrNotActive)
	}

	if d := l.ReceiveTimeout(); d > 0 {
		_ = l.conn.SetReadDeadline(time.Now().Add(d))
	}

	n, err := l.conn.Read(buf)
	if err != nil {
		if l.kind == KindTCP {
			_ = l.Close()
			return n, fmt.Errorf("%w: %w", errSilentAbort, err)
		}
		return n, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if n == 0 && l.kind == KindTCP {
		_ = l.Close()
		return 0, fmt.Errorf("%w: %w", errSilentAbort, io.EOF)
	}

	l.lastReceived.Store(time.Now().UnixNano())
	return n, nil
}

// RecvFrom reads into buf from an unconnected UDP Line, returning the
// sender's address alongside the byte count.
func (l *Line) RecvFrom(buf []byte) (int, netip.AddrPort, error) {
	if !l.Active() || l.packetConn == nil {
		return 0, netip.AddrPort{}, fmt.Errorf("%w: RecvFrom requires an unconnected UDP Line", ErrNotActive)
	}

	if d := l.ReceiveTimeout(); d > 0 {
		_ = l.packetConn.SetReadDeadline(time.Now().Add(d))
	}

	n, from, err := l.packetConn.ReadFrom(buf)
	if err != nil {
		return n, netip.AddrPort{}, fmt.Errorf("%w: %w", ErrIO, err)
	}

	var ap netip.AddrPort
	if udpAddr, ok := from.(*net.UDPAddr); ok {
		ap = udpAddr.AddrPort()
	}

	l.lastReceived.Store(time.Now().UnixNano())
	return n, ap, nil
}

// IsClosedConnError reports whether err indicates the peer (or the local
// side via Close racing a blocked call) closed the connection, which is
// the expected wrapped cause of an errSilentAbort from Recv.
func IsClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
