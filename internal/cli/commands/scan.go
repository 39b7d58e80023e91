package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nodo1014/indexer-quick/internal/core"
	"github.com/nodo1014/indexer-quick/internal/indexer"
	"github.com/nodo1014/indexer-quick/internal/worker"
)

var scanStrategyFlag string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Start indexing the configured library and block until it finishes",
	Long: `scan drives the same start/status control-interface calls the HTTP
layer exposes, but synchronously: it starts a run with the requested
strategy, polls status until the run reaches "completed", "stopped",
"failed" or "idle", and prints a final summary.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		strategy := core.Strategy(scanStrategyFlag)
		switch strategy {
		case core.StrategyFull, core.StrategyIncremental:
		default:
			exitWith(exitConfigError, fmt.Errorf("--strategy must be \"full\" or \"incremental\", got %q", scanStrategyFlag))
		}

		settings, repo := openRepository()
		defer repo.Close()

		if settings.RootDir == "" {
			exitWith(exitConfigError, fmt.Errorf("root_dir is required (set it in config.yaml or pass --root)"))
		}

		workers := settings.MaxWorkers
		if workers <= 0 {
			workers = worker.DefaultWorkerCount()
		}

		ctrl, err := indexer.New(indexer.Options{
			Repo:               repo,
			StatusPath:         statusPathFor(settings.DBPath),
			RootDir:            settings.RootDir,
			MediaExtensions:    settings.MediaExtensions,
			SubtitleExtensions: settings.SubtitleExtensions,
			ChannelCapacity:    settings.WorkQueueCapacity,
			Workers:            workers,
			MinEnglishRatio:    settings.MinEnglishRatio,
			LogRingSize:        settings.LogRingSize,
			Log:                logger,
		})
		if err != nil {
			exitWith(exitDBError, fmt.Errorf("build controller: %w", err))
		}

		if err := ctrl.Start(strategy); err != nil {
			exitWith(1, err)
		}

		// A foreground scan is the only place "stop" is meaningful from the
		// CLI: there is no second process to send it to, so Ctrl+C (or
		// SIGTERM) drives the same cancellation path the HTTP /index/stop
		// handler uses.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Println("\nstopping...")
			_ = ctrl.Stop()
		}()

		printProgress(ctrl)

		final := ctrl.Snapshot()
		fmt.Printf("state=%s processed=%d total=%d subtitles=%d\n",
			final.State, final.ProcessedFiles, final.TotalFiles, final.SubtitleCount)
		if final.State == core.StateFailed {
			os.Exit(1)
		}
	},
}

func mkScanBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("indexing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(31),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "#",
			SaucerPadding: "-",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// printProgress polls the controller's snapshot and drives a progress bar
// until the run reaches a terminal state, the CLI's offline equivalent of
// the websocket progress feed. The bar's max grows with the discovery
// count, since scanning runs concurrently with ingestion.
func printProgress(ctrl *indexer.Controller) {
	bar := mkScanBar(0)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		s := ctrl.Snapshot()
		if s.TotalFiles != bar.GetMax() {
			bar.ChangeMax(s.TotalFiles)
		}
		_ = bar.Set(s.ProcessedFiles)
		switch s.State {
		case core.StateCompleted, core.StateStopped, core.StateFailed, core.StateIdle:
			_ = bar.Finish()
			return
		}
	}
}

func init() {
	scanCmd.Flags().StringVar(&scanStrategyFlag, "strategy", "incremental", "indexing strategy: full or incremental")
}
