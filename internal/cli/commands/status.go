package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodo1014/indexer-quick/internal/indexer"
)

var statusJSONFlag bool

// statusCmd reads the persisted status file directly rather than
// reconstructing a Controller: a fresh in-process Controller would apply
// the crash-tolerance rule (running/paused -> idle) meant for recovering
// from an actual crash, which would misreport a "serve" process's genuinely
// active run as idle.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current indexing status",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		settings, err := loadSettings()
		if err != nil {
			exitWith(exitConfigError, err)
		}

		status, err := indexer.ReadPersistedStatus(statusPathFor(settings.DBPath))
		if err != nil {
			exitWith(1, fmt.Errorf("read status: %w", err))
		}

		if statusJSONFlag {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(status); err != nil {
				exitWith(1, err)
			}
			return
		}

		fmt.Printf("state:        %s\n", status.State)
		fmt.Printf("total files:  %d\n", status.TotalFiles)
		fmt.Printf("processed:    %d\n", status.ProcessedFiles)
		fmt.Printf("subtitles:    %d\n", status.SubtitleCount)
		fmt.Printf("current path: %s\n", status.CurrentPath)
		if status.ETASeconds > 0 {
			fmt.Printf("eta:          %.0fs\n", status.ETASeconds)
		}
		if status.FailReason != "" {
			fmt.Printf("fail reason:  %s\n", status.FailReason)
		}
		fmt.Printf("last updated: %s\n", status.LastUpdated.Format("2006-01-02 15:04:05"))
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSONFlag, "json", false, "print status as JSON")
}
