package line_test

import (
	"context"
	"errors"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/lineproto/netline/line"
	"github.com/lineproto/netline/readiness"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewDefaults(t *testing.T) {
	l := line.New()
	if l.Kind() != line.KindTCP {
		t.Errorf("default Kind = %v, want TCP", l.Kind())
	}
	if l.Family() != line.FamilyIPv4 {
		t.Errorf("default Family = %v, want IPv4", l.Family())
	}
	if l.Active() {
		t.Error("new Line should be inactive")
	}
	if l.PeerIP() != "127.0.0.1" {
		t.Errorf("default PeerIP = %q, want 127.0.0.1", l.PeerIP())
	}
}

// TestTCPEcho is the end-to-end scenario from spec.md §8.1: server binds
// port 0, accepts; client connects, sends "hello", server echoes it back.
func TestTCPEcho(t *testing.T) {
	var serverConnected, clientConnected atomic.Int32

	server := line.New(
		line.WithOnConnected(func(*line.Line) { serverConnected.Add(1) }),
	)
	if err := server.BindServer(context.Background(), 0); err != nil {
		t.Fatalf("BindServer: %v", err)
	}
	defer server.Close()

	port := tcpListenerPort(t, server)

	acceptedCh := make(chan *line.Line, 1)
	acceptErrCh := make(chan error, 1)
	go func() {
		accepted, err := server.Accept()
		if err != nil {
			acceptErrCh <- err
			return
		}
		acceptedCh <- accepted
	}()

	client := line.New(
		line.WithOnConnected(func(*line.Line) { clientConnected.Add(1) }),
	)
	if err := client.ConnectClient(context.Background(), "localhost", port, false); err != nil {
		t.Fatalf("ConnectClient: %v", err)
	}
	defer client.Close()

	var serverSide *line.Line
	select {
	case serverSide = <-acceptedCh:
	case err := <-acceptErrCh:
		t.Fatalf("Accept: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Accept")
	}
	defer serverSide.Close()

	if _, err := client.Send([]byte("hello")); err != nil {
		t.Fatalf("client Send: %v", err)
	}

	buf := make([]byte, 16)
	n, err := serverSide.Recv(buf)
	if err != nil {
		t.Fatalf("server Recv: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("server Recv = %q, want %q", buf[:n], "hello")
	}

	if _, err := serverSide.Send(buf[:n]); err != nil {
		t.Fatalf("server Send: %v", err)
	}
	n, err = client.Recv(buf)
	if err != nil {
		t.Fatalf("client Recv: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("client Recv = %q, want %q", buf[:n], "hello")
	}

	// Fires once for the listener's own bind and once more for the
	// accepted Line, which inherits the same callback hook.
	if serverConnected.Load() != 2 {
		t.Errorf("server-side on_connected fired %d times, want 2", serverConnected.Load())
	}
	if clientConnected.Load() != 1 {
		t.Errorf("client on_connected fired %d times, want 1", clientConnected.Load())
	}
}

// TestUDPUnicast is spec.md §8.2: two UDP Lines bound to ephemeral ports,
// A sends 3 bytes to B, Readable reports B ready, B's Recv yields them.
func TestUDPUnicast(t *testing.T) {
	a := line.New(line.WithKind(line.KindUDP))
	if err := a.BindServer(context.Background(), 0); err != nil {
		t.Fatalf("bind A: %v", err)
	}
	defer a.Close()

	b := line.New(line.WithKind(line.KindUDP))
	if err := b.BindServer(context.Background(), 0); err != nil {
		t.Fatalf("bind B: %v", err)
	}
	defer b.Close()

	bPort := udpListenerPort(t, b)

	aHandle, ok := a.Handle()
	if !ok {
		t.Fatal("A has no handle")
	}
	_ = aHandle

	bAddr := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), bPort)
	if _, err := a.SendTo([]byte{0x01, 0x02, 0x03}, bAddr); err != nil {
		t.Fatalf("A SendTo: %v", err)
	}

	bHandle, ok := b.Handle()
	if !ok {
		t.Fatal("B has no handle")
	}
	ready, err := readiness.Readable([]readiness.Handle{readiness.Handle(bHandle)}, time.Second)
	if err != nil {
		t.Fatalf("Readable: %v", err)
	}
	if len(ready) != 1 {
		t.Fatalf("Readable = %v, want [B]", ready)
	}

	buf := make([]byte, 16)
	n, _, err := b.RecvFrom(buf)
	if err != nil {
		t.Fatalf("B RecvFrom: %v", err)
	}
	if n != 3 || buf[0] != 1 || buf[1] != 2 || buf[2] != 3 {
		t.Fatalf("B RecvFrom = %v, want [1 2 3]", buf[:n])
	}
}

// TestUDPBroadcastRejection is spec.md §8.3: a broadcast-style IPv4
// literal without broadcast=true fails with ErrConfig before any socket
// is created.
func TestUDPBroadcastRejection(t *testing.T) {
	l := line.New(line.WithKind(line.KindUDP))
	err := l.ConnectClient(context.Background(), "255.255.255.255", 9999, false)
	if err == nil {
		t.Fatal("ConnectClient with broadcast literal and broadcast=false: want error, got nil")
	}
	if l.Active() {
		t.Fatal("Line should not be active after rejected broadcast connect")
	}
}

func TestIPv6LinkLocalNormalization(t *testing.T) {
	l := line.New(line.WithKind(line.KindUDP), line.WithFamily(line.FamilyIPv6))
	// A well-formed link-local literal with a zone must pass address and
	// broadcast validation; only the subsequent dial may fail depending
	// on whether the test host has an "lo0"/"eth0"-equivalent interface,
	// so this only asserts we got past ErrAddress/ErrConfig.
	err := l.ConnectClient(context.Background(), "fe80::1%lo0", 9999, false)
	if errors.Is(err, line.ErrAddress) || errors.Is(err, line.ErrConfig) {
		t.Fatalf("ConnectClient rejected valid link-local literal: %v", err)
	}
}

// TestIdempotentClose is spec.md §8's idempotent-close scenario:
// on_disconnected fires exactly once across multiple Close calls.
func TestIdempotentClose(t *testing.T) {
	var disconnects atomic.Int32
	server := line.New(line.WithOnDisconnected(func(*line.Line) { disconnects.Add(1) }))
	if err := server.BindServer(context.Background(), 0); err != nil {
		t.Fatalf("BindServer: %v", err)
	}

	if err := server.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if disconnects.Load() != 1 {
		t.Errorf("on_disconnected fired %d times, want 1", disconnects.Load())
	}
	if server.Active() {
		t.Error("Line should be inactive after Close")
	}
}

func TestSetKindSetFamilyRejectedWhileActive(t *testing.T) {
	l := line.New()
	if err := l.BindServer(context.Background(), 0); err != nil {
		t.Fatalf("BindServer: %v", err)
	}
	defer l.Close()

	if err := l.SetKind(line.KindUDP); err == nil {
		t.Error("SetKind on active Line: want error, got nil")
	}
	if err := l.SetFamily(line.FamilyIPv6); err == nil {
		t.Error("SetFamily on active Line: want error, got nil")
	}
}

func TestPeerClosePropagatesSilentAbort(t *testing.T) {
	server := line.New()
	if err := server.BindServer(context.Background(), 0); err != nil {
		t.Fatalf("BindServer: %v", err)
	}
	defer server.Close()
	port := tcpListenerPort(t, server)

	acceptedCh := make(chan *line.Line, 1)
	go func() {
		accepted, err := server.Accept()
		if err == nil {
			acceptedCh <- accepted
		}
	}()

	client := line.New()
	if err := client.ConnectClient(context.Background(), "localhost", port, false); err != nil {
		t.Fatalf("ConnectClient: %v", err)
	}

	serverSide := <-acceptedCh
	defer serverSide.Close()

	if err := client.Close(); err != nil {
		t.Fatalf("client Close: %v", err)
	}

	buf := make([]byte, 16)
	_, err := serverSide.Recv(buf)
	if err == nil {
		t.Fatal("Recv after peer close: want error, got nil")
	}
	if !line.ErrSilentAbort(err) {
		t.Errorf("Recv after peer close: want errSilentAbort, got %v", err)
	}
	if serverSide.Active() {
		t.Error("Line should self-close after peer close")
	}
}

func tcpListenerPort(t *testing.T, l *line.Line) uint16 {
	t.Helper()
	addr, err := l.LocalAddr()
	if err != nil {
		t.Fatalf("LocalAddr: %v", err)
	}
	return addr.Port()
}

func udpListenerPort(t *testing.T, l *line.Line) uint16 {
	t.Helper()
	return tcpListenerPort(t, l)
}
