package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// resetCmd is the only bare lifecycle transition that makes sense from a
// stateless CLI invocation: pause/resume/stop require acting on an
// already-running in-process controller, which only "scan" (foreground,
// signal-driven) or "serve" (via its HTTP control surface) hold.
// reset has no such requirement: it only needs the repository to be idle,
// and it also clears the persisted status file back to a fresh idle state.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe the corpus and return the index to idle",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		settings, repo := openRepository()
		defer repo.Close()

		if err := repo.ResetAll(context.Background()); err != nil {
			exitWith(1, err)
		}
		if err := os.Remove(statusPathFor(settings.DBPath)); err != nil && !os.IsNotExist(err) {
			exitWith(1, fmt.Errorf("remove status file: %w", err))
		}
		fmt.Println("ok")
	},
}
