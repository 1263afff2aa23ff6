package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

const (
	formatJSON  = "json"
	formatTable = "table"
	valueNA     = "N/A"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatLines renders a slice of line statuses in the requested format.
func formatLines(lines []lineStatus, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(lines)
	case formatTable:
		return formatLinesTable(lines), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatLine renders a single line status in the requested format.
func formatLine(status lineStatus, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(status)
	case formatTable:
		return formatLineDetail(status), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// --- Table formatters ---

func formatLinesTable(lines []lineStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tFAMILY\tACTIVE\tPEER")

	for _, l := range lines {
		peer := l.PeerIP
		if peer == "" {
			peer = valueNA
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", l.Name, l.Kind, l.Family, l.Active, peer)
	}

	w.Flush() //nolint:errcheck // strings.Builder never fails to write

	return buf.String()
}

func formatLineDetail(s lineStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Name:\t%s\n", s.Name)
	fmt.Fprintf(w, "Kind:\t%s\n", s.Kind)
	fmt.Fprintf(w, "Family:\t%s\n", s.Family)
	fmt.Fprintf(w, "Active:\t%t\n", s.Active)

	peer := s.PeerIP
	if peer == "" {
		peer = valueNA
	}
	fmt.Fprintf(w, "Peer:\t%s\n", peer)

	if s.LastSentUnixNano != 0 {
		fmt.Fprintf(w, "Last Sent:\t%s\n", time.Unix(0, s.LastSentUnixNano).Format(time.RFC3339Nano))
	}
	if s.LastRecvUnixNano != 0 {
		fmt.Fprintf(w, "Last Received:\t%s\n", time.Unix(0, s.LastRecvUnixNano).Format(time.RFC3339Nano))
	}

	w.Flush() //nolint:errcheck // strings.Builder never fails to write

	return buf.String()
}

// --- JSON formatter ---

func formatJSONValue(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal to JSON: %w", err)
	}

	return string(data) + "\n", nil
}
