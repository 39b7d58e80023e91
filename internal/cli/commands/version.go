package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodo1014/indexer-quick/internal/version"
)

var versionCheckFlag bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := version.GetInfo()
		if versionCheckFlag {
			info = version.GetInfoFromGithub()
		}

		if info.NewerVersionAvailable {
			fmt.Fprintln(os.Stderr, "a newer version is available")
		}
		fmt.Print(info)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheckFlag, "check", false, "check GitHub for a newer release")
}
