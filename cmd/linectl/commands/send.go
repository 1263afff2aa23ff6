package commands

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lineproto/netline/line"
)

func sendCmd() *cobra.Command {
	var (
		kind      string
		family    string
		broadcast bool
		timeout   time.Duration
		wait      time.Duration
		data      string
	)

	cmd := &cobra.Command{
		Use:   "send <host:port>",
		Short: "Send one payload and optionally print a reply",
		Long: "send opens a Line, writes --data once, and (if --wait is nonzero) " +
			"waits that long for a single reply before closing. Useful for one-shot " +
			"UDP broadcast probes where no reply is expected.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lineKind, err := parseKind(kind)
			if err != nil {
				return err
			}
			lineFamily, err := parseFamily(family)
			if err != nil {
				return err
			}

			host, portStr, err := net.SplitHostPort(args[0])
			if err != nil {
				return fmt.Errorf("parse address %q: %w", args[0], err)
			}
			port, err := strconv.ParseUint(portStr, 10, 16)
			if err != nil {
				return fmt.Errorf("parse port %q: %w", portStr, err)
			}

			l := line.New(
				line.WithKind(lineKind),
				line.WithFamily(lineFamily),
				line.WithConnectTimeout(timeout),
			)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := l.ConnectClient(ctx, host, uint16(port), broadcast); err != nil {
				return fmt.Errorf("connect to %s: %w", args[0], err)
			}
			defer l.Close()

			if broadcast && lineKind == line.KindUDP {
				// A broadcast Line has no fixed peer; address the datagram explicitly.
				dst, err := netip.ParseAddr(host)
				if err != nil {
					return fmt.Errorf("parse broadcast address %q: %w", host, err)
				}
				if _, err := l.SendTo([]byte(data), netip.AddrPortFrom(dst, uint16(port))); err != nil {
					return fmt.Errorf("send: %w", err)
				}
			} else if _, err := l.Send([]byte(data)); err != nil {
				return fmt.Errorf("send: %w", err)
			}

			if wait <= 0 {
				fmt.Printf("sent %d bytes to %s\n", len(data), args[0])
				return nil
			}

			return waitForReply(l, wait)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&kind, "kind", "udp", "transport kind: tcp or udp")
	flags.StringVar(&family, "family", "ipv4", "address family: ipv4 or ipv6")
	flags.BoolVar(&broadcast, "broadcast", false, "target an IPv4 broadcast address (UDP only)")
	flags.DurationVar(&timeout, "timeout", 5*time.Second, "connect timeout")
	flags.DurationVar(&wait, "wait", 0, "how long to wait for a reply (0 = don't wait)")
	flags.StringVar(&data, "data", "", "payload to send")

	return cmd
}

func waitForReply(l *line.Line, wait time.Duration) error {
	l.SetReceiveTimeout(wait)

	buf := make([]byte, 65535)
	n, err := l.Recv(buf)
	if err != nil {
		return fmt.Errorf("no reply within %s: %w", wait, err)
	}

	fmt.Println(string(buf[:n]))
	return nil
}
