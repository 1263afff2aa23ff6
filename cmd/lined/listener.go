package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lineproto/netline/internal/control"
	"github.com/lineproto/netline/internal/metrics"
	"github.com/lineproto/netline/line"
	"github.com/lineproto/netline/readiness"
)

// maxDatagramSize bounds a single UDP Recv buffer. Large enough for any
// realistic control-plane datagram without risking truncation.
const maxDatagramSize = 65535

// streamBufferSize is the per-connection TCP echo buffer size.
const streamBufferSize = 4096

// runListener brings up one configured Line and serves it until ctx is
// cancelled. TCP listeners accept and echo each connection; UDP listeners
// echo each received datagram back to its sender. This exercises every
// layer of the stack (Line, readiness, metrics, the admin registry) the
// same way spec.md's end-to-end scenarios do.
func runListener(ctx context.Context, lc listenerSpec, reg *control.Registry, collector *metrics.Collector, logger *slog.Logger) error {
	l := line.New(
		line.WithKind(lc.kind),
		line.WithFamily(lc.family),
		line.WithOnConnected(func(ln *line.Line) {
			collector.RegisterLine(lc.name, ln.Kind().String(), ln.Family().String())
		}),
		line.WithOnDisconnected(func(ln *line.Line) {
			collector.UnregisterLine(lc.name, ln.Kind().String(), ln.Family().String())
		}),
	)

	if err := l.BindServer(ctx, lc.port); err != nil {
		return err
	}
	defer l.Close()

	if lc.broadcast {
		if err := l.EnableBroadcast(); err != nil {
			logger.Warn("failed to enable broadcast", slog.String("listener", lc.name), slog.String("error", err.Error()))
		}
	}

	reg.Register(lc.name, l)
	defer reg.Unregister(lc.name)

	logger.Info("listener started",
		slog.String("name", lc.name),
		slog.String("kind", l.Kind().String()),
		slog.String("family", l.Family().String()),
	)

	switch lc.kind {
	case line.KindTCP:
		return serveTCP(ctx, l, lc.name, collector, logger)
	default:
		return serveUDP(ctx, l, lc.name, lc.pollInterval, collector, logger)
	}
}

// serveTCP accepts connections until ctx is cancelled, echoing each one in
// its own goroutine (spec.md §8.1's scenario run continuously).
func serveTCP(ctx context.Context, l *line.Line, name string, collector *metrics.Collector, logger *slog.Logger) error {
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if line.ErrSilentAbort(err) {
				return nil
			}
			return err
		}

		go echoTCP(conn, name, collector, logger)
	}
}

func echoTCP(conn *line.Line, name string, collector *metrics.Collector, logger *slog.Logger) {
	defer conn.Close()

	buf := make([]byte, streamBufferSize)
	for {
		n, err := conn.Recv(buf)
		if err != nil {
			if !line.ErrSilentAbort(err) {
				logger.Debug("tcp recv error", slog.String("listener", name), slog.String("error", err.Error()))
			}
			return
		}
		collector.AddBytesReceived(name, "tcp", conn.Family().String(), n)

		if _, err := conn.Send(buf[:n]); err != nil {
			collector.IncIOErrors(name, "tcp", conn.Family().String())
			return
		}
		collector.AddBytesSent(name, "tcp", conn.Family().String(), n)
	}
}

// serveUDP polls for readiness and echoes each datagram back to its
// sender, observing the poll duration via collector.
func serveUDP(ctx context.Context, l *line.Line, name string, pollInterval time.Duration, collector *metrics.Collector, logger *slog.Logger) error {
	buf := make([]byte, maxDatagramSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		handle, ok := l.Handle()
		if !ok {
			return errors.New("udp listener has no handle")
		}

		start := time.Now()
		ready, err := readiness.Readable([]readiness.Handle{readiness.Handle(handle)}, pollInterval)
		collector.ObserveReadinessPoll(name, time.Since(start).Seconds())
		if err != nil {
			return err
		}
		if len(ready) == 0 {
			continue
		}

		n, from, err := l.RecvFrom(buf)
		if err != nil {
			collector.IncIOErrors(name, "udp", l.Family().String())
			continue
		}
		collector.AddBytesReceived(name, "udp", l.Family().String(), n)

		if _, err := l.SendTo(buf[:n], from); err != nil {
			collector.IncIOErrors(name, "udp", l.Family().String())
			continue
		}
		collector.AddBytesSent(name, "udp", l.Family().String(), n)
	}
}
