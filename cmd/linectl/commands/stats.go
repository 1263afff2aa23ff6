package commands

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// metricsAddr is the Prometheus metrics endpoint, distinct from the admin
// control API: netline exposes them as two separate listeners.
var metricsAddr string

func statsCmd() *cobra.Command {
	var filterName string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print netline Prometheus counters for one or all lines",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			lines, err := fetchMetrics()
			if err != nil {
				return fmt.Errorf("fetch metrics: %w", err)
			}

			printMetrics(lines, filterName)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&filterName, "name", "", "only print series with this name label")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "metrics endpoint address (default: --addr's host with port 9100)")

	return cmd
}

func fetchMetrics() ([]string, error) {
	addr := metricsAddr
	if addr == "" {
		addr = defaultMetricsAddr()
	}

	resp, err := httpClient.Get("http://" + addr + "/metrics")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics endpoint returned status %d", resp.StatusCode)
	}

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// defaultMetricsAddr derives the metrics port from the control address by
// convention (control uses :8090, metrics :9100 in DefaultConfig).
func defaultMetricsAddr() string {
	idx := strings.LastIndex(controlAddr, ":")
	if idx < 0 {
		return controlAddr + ":9100"
	}
	return controlAddr[:idx] + ":9100"
}

func printMetrics(lines []string, filterName string) {
	for _, ln := range lines {
		if strings.HasPrefix(ln, "#") {
			continue
		}
		if !strings.HasPrefix(ln, "netline_") {
			continue
		}
		if filterName != "" && !strings.Contains(ln, `name="`+filterName+`"`) {
			continue
		}
		fmt.Println(ln)
	}
}
