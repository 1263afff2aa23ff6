// Package commands implements the linectl CLI commands.
package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// httpClient talks to the netline daemon's admin HTTP API.
	httpClient *http.Client

	// controlAddr is the daemon's admin API address (host:port).
	controlAddr string

	// outputFormat controls the output format of the lines commands (table or json).
	outputFormat string
)

// rootCmd is the top-level cobra command for linectl.
var rootCmd = &cobra.Command{
	Use:   "linectl",
	Short: "CLI client for the netline daemon",
	Long:  "linectl queries the netline daemon's admin API and drives ad-hoc Line connections for testing.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		httpClient = &http.Client{Timeout: 10 * time.Second}
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&controlAddr, "addr", "localhost:8090",
		"netline daemon admin API address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(linesCmd())
	rootCmd.AddCommand(connectCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func baseURL() string {
	return "http://" + controlAddr
}
