package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nodo1014/indexer-quick/internal/api"
	"github.com/nodo1014/indexer-quick/internal/indexer"
	"github.com/nodo1014/indexer-quick/internal/search"
	"github.com/nodo1014/indexer-quick/internal/worker"
)

var (
	serveHostFlag string
	servePortFlag int
)

// serveCmd hosts the HTTP+websocket control surface as a standalone
// long-running process, the counterpart to the one-shot "scan" command:
// start/pause/resume/stop/reset/status/search/bookmark/tag are all driven
// over HTTP rather than in a single blocking CLI invocation.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control/search API",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		settings, repo := openRepository()
		defer repo.Close()

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

		searchSvc := search.New(repo, logger)

		cfg := api.DefaultConfig()
		cfg.Host = serveHostFlag
		cfg.Port = servePortFlag

		srv, err := api.NewServer(cfg, ctrl, searchSvc, repo, logger)
		if err != nil {
			exitWith(1, fmt.Errorf("build api server: %w", err))
		}
		if err := srv.Start(); err != nil {
			exitWith(1, fmt.Errorf("start api server: %w", err))
		}
		logger.Info().Int("port", srv.GetPort()).Msg("serving control/search api")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		logger.Info().Msg("shutting down")
		if err := srv.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHostFlag, "host", "localhost", "host to bind the api server to")
	serveCmd.Flags().IntVar(&servePortFlag, "port", 8080, "port to bind the api server to (0 for a dynamically assigned port)")
}
