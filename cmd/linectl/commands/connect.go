package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lineproto/netline/line"
)

var errUnknownTransportKind = errors.New("unknown transport kind, expected tcp or udp")

func connectCmd() *cobra.Command {
	var (
		kind      string
		family    string
		broadcast bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "connect <host:port>",
		Short: "Open a Line to a remote endpoint and relay stdin/stdout",
		Long: "connect dials host:port as a Line client and runs an interactive session: " +
			"each stdin line is sent, and each reply is printed to stdout. Ctrl-D ends the session. " +
			"The relay only works over a Line with a fixed peer: with --broadcast, or for a UDP IPv6 Line, " +
			"the Line has no fixed peer and the first send fails.",
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

			fmt.Fprintf(os.Stderr, "connected to %s (%s/%s)\n", args[0], kind, family)

			return relayStdin(l)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&kind, "kind", "tcp", "transport kind: tcp or udp")
	flags.StringVar(&family, "family", "ipv4", "address family: ipv4 or ipv6")
	flags.BoolVar(&broadcast, "broadcast", false, "target an IPv4 broadcast address (UDP only)")
	flags.DurationVar(&timeout, "timeout", 5*time.Second, "connect timeout")

	return cmd
}

// relayStdin sends each stdin line over l and prints whatever comes back,
// until stdin closes or the peer disconnects.
func relayStdin(l *line.Line) error {
	replies := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := l.Recv(buf)
			if err != nil {
				errc <- err
				return
			}
			out := make([]byte, n)
			copy(out, buf[:n])
			replies <- out
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if _, err := l.Send(scanner.Bytes()); err != nil {
			return fmt.Errorf("send: %w", err)
		}

		select {
		case reply := <-replies:
			fmt.Println(string(reply))
		case err := <-errc:
			if line.ErrSilentAbort(err) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
	}

	return scanner.Err()
}

func parseKind(s string) (line.Kind, error) {
	switch s {
	case "tcp":
		return line.KindTCP, nil
	case "udp":
		return line.KindUDP, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownTransportKind, s)
	}
}

func parseFamily(s string) (line.Family, error) {
	switch s {
	case "ipv4":
		return line.FamilyIPv4, nil
	case "ipv6":
		return line.FamilyIPv6, nil
	default:
		return 0, fmt.Errorf("unknown address family, expected ipv4 or ipv6: %q", s)
	}
}
