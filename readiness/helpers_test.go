package readiness_test

import (
	"net"
	"syscall"
	"testing"

	"github.com/lineproto/netline/readiness"
)

// connectedTCPPair returns two ends of a live loopback TCP connection.
func connectedTCPPair(t *testing.T) (a, b net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	acceptErr := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			acceptErr <- err
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	select {
	case conn := <-accepted:
		return conn, client
	case err := <-acceptErr:
		t.Fatalf("Accept: %v", err)
		return nil, nil
	}
}

// fdOf extracts the raw OS handle backing conn, the same value Readable
// operates on.
func fdOf(t *testing.T, conn net.Conn) readiness.Handle {
	t.Helper()

	sc, ok := conn.(syscall.Conn)
	if !ok {
		t.Fatalf("%T does not implement syscall.Conn", conn)
	}
	rawConn, err := sc.SyscallConn()
	if err != nil {
		t.Fatalf("SyscallConn: %v", err)
	}

	var h readiness.Handle
	if err := rawConn.Control(func(fd uintptr) {
		h = readiness.Handle(fd)
	}); err != nil {
		t.Fatalf("Control: %v", err)
	}
	return h
}
