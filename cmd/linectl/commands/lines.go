package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// errLineNotFound mirrors the 404 body the admin API returns for an
// unknown line name.
var errLineNotFound = errors.New("line not found")

// lineStatus mirrors internal/control.LineStatus without importing the
// daemon's internal package; the admin API is the contract, not the Go type.
type lineStatus struct {
	Name             string `json:"name"`
	Kind             string `json:"kind"`
	Family           string `json:"family"`
	Active           bool   `json:"active"`
	PeerIP           string `json:"peer_ip,omitempty"`
	LastSentUnixNano int64  `json:"last_sent_unix_nano,omitempty"`
	LastRecvUnixNano int64  `json:"last_received_unix_nano,omitempty"`
}

func linesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lines",
		Short: "Inspect Line objects tracked by a running netline daemon",
	}

	cmd.AddCommand(linesListCmd())
	cmd.AddCommand(linesShowCmd())

	return cmd
}

func linesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all registered lines",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var lines []lineStatus
			if err := getJSON("/v1/lines", &lines); err != nil {
				return fmt.Errorf("list lines: %w", err)
			}

			out, err := formatLines(lines, outputFormat)
			if err != nil {
				return fmt.Errorf("format lines: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

func linesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show details of one registered line",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var status lineStatus
			if err := getJSON("/v1/lines/"+args[0], &status); err != nil {
				return fmt.Errorf("get line %q: %w", args[0], err)
			}

			out, err := formatLine(status, outputFormat)
			if err != nil {
				return fmt.Errorf("format line: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

// getJSON issues a GET against the daemon's admin API and decodes a JSON
// response body into v, translating a 404 into errLineNotFound.
func getJSON(path string, v any) error {
	resp, err := httpClient.Get(baseURL() + path)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errLineNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}

	return nil
}
