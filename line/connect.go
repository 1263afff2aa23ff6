package line

import (
	"context"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/lineproto/netline/ipaddr"
)

// ConnectClient resolves host:port and transitions the Line to Active as
// a client endpoint. broadcast must be true to target an IPv4 broadcast
// literal; otherwise a broadcast-style host fails with ErrConfig before
// any socket is created.
//
// IPv4 "localhost" is rewritten to "127.0.0.1" per spec.md §4.4 step 4.
// An IPv6 link-local literal has its zone-id stripped before resolution;
// reapplying it at bind/connect time for scope-id-aware routing on
// multi-interface hosts is a documented gap (see SPEC_FULL.md's design
// notes) rather than attempted here.
func (l *Line) ConnectClient(ctx context.Context, host string, port uint16, broadcast bool) error {
	if l.Active() {
		return fmt.Errorf("%w: %w", ErrConfig, ErrLineActive)
	}

	host, zone, err := l.prepareHost(host, broadcast)
	if err != nil {
		return err
	}

	switch l.kind {
	case KindTCP:
		return l.connectTCP(ctx, host, port)
	case KindUDP:
		return l.connectUDP(ctx, host, port, broadcast, zone)
	default:
		return fmt.Errorf("%w: unknown kind %v", ErrConfig, l.kind)
	}
}

// prepareHost validates and rewrites host per spec.md §4.4 steps 1-5,
// returning the address to resolve and any stripped IPv6 zone-id.
func (l *Line) prepareHost(host string, broadcast bool) (resolveHost, zone string, err error) {
	if l.family == FamilyIPv6 && looksLikeIPv6(host) {
		if !ipaddr.IsIPv6ValidAddress(host) {
			return "", "", fmt.Errorf("%w: invalid IPv6 literal %q", ErrAddress, host)
		}
	}

	if ipaddr.IsBroadcast(host) && !broadcast {
		return "", "", fmt.Errorf("%w: broadcast address %q given without broadcast enabled", ErrConfig, host)
	}

	if l.family == FamilyIPv4 && host == "localhost" {
		host = "127.0.0.1"
	}

	if l.family == FamilyIPv6 && ipaddr.IsIPv6ValidAddress(host) {
		host = ipaddr.NormalizeAddress(host)
		if ipaddr.IsLinkLocal(host) {
			host, zone = ipaddr.StripZone(host)
		}
	}

	return host, zone, nil
}

func looksLikeIPv6(host string) bool {
	return strings.Contains(host, ":")
}

func (l *Line) connectTCP(ctx context.Context, host string, port uint16) error {
	ctx, cancel := context.WithTimeout(ctx, l.connectTimeout)
	defer cancel()

	dialer := net.Dialer{
		Control: controlReuseAddr,
	}
	conn, err := dialer.DialContext(ctx, networkFor(l.kind, l.family), net.JoinHostPort(host, portString(port)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}

	l.conn = conn
	l.peerIP = addrFromNetAddr(conn.RemoteAddr()).String()
	l.active.Store(true)
	l.fireConnected()
	return nil
}

func (l *Line) connectUDP(ctx context.Context, host string, port uint16, broadcast bool, zone string) error {
	_ = zone // reapplication deferred, see doc comment on ConnectClient

	network := networkFor(l.kind, l.family)
	addr := net.JoinHostPort(host, portString(port))

	if l.family == FamilyIPv4 && !broadcast {
		// Fixed-peer UDP: connect the datagram socket.
		dialer := net.Dialer{Control: controlReuseAddr}
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConnect, err)
		}
		l.conn = conn
		l.peerIP = addrFromNetAddr(conn.RemoteAddr()).String()
		l.active.Store(true)
		l.fireConnected()
		return nil
	}

	// IPv4 broadcast, or any IPv6: do not fix a peer. Open an
	// unconnected packet socket and, for broadcast, enable SO_BROADCAST.
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			if broadcast {
				return setBroadcast(c)
			}
			return nil
		},
	}
	pc, err := lc.ListenPacket(ctx, network, ":0")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}

	l.packetConn = pc
	l.peerIP = l.family.defaultPeerIP()
	l.active.Store(true)
	l.fireConnected()
	return nil
}

func portString(port uint16) string {
	return fmt.Sprintf("%d", port)
}
