package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	appversion "github.com/lineproto/netline/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print linectl build information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Print(appversion.Full("linectl"))
			fmt.Println()
		},
	}
}
