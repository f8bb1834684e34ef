package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via
// -ldflags "-X github.com/siteprint/siteprint/internal/cli.Version=1.0.0".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the siteprint version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("siteprint", Version)
	},
}
