// Package commands implements the cobra-based CLI surface: a
// minimal, offline way to drive the control interface without the HTTP
// layer.
package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gookit/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nodo1014/indexer-quick/internal/config"
	"github.com/nodo1014/indexer-quick/internal/core"
	"github.com/nodo1014/indexer-quick/internal/logging"
	"github.com/nodo1014/indexer-quick/internal/repository"
)

// Exit codes reported to the shell.
const (
	exitOK            = 0
	exitConfigError   = 2
	exitDBError       = 3
	exitFtsCorruption = 4
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()

var cfgFile, dbPathFlag, rootDirFlag string

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "indexer-quick <command>",
	Short: "Index subtitle tracks alongside media files and search them by cue",
	Long: `indexer-quick scans a media library for subtitle tracks, indexes their
cues into a searchable corpus, and serves substring/full-text queries over
the result.

Example:
  indexer-quick scan --root /media/library --strategy incremental
  indexer-quick search "hello world"`,
}

// Execute runs RootCmd, whose child commands are attached in init. Called
// once by main.main().
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		color.Yellowf("Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: XDG config dir/indexer-quick/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "override db_path from config")
	RootCmd.PersistentFlags().StringVar(&rootDirFlag, "root", "", "override root_dir from config")

	RootCmd.AddCommand(scanCmd)
	RootCmd.AddCommand(resetCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(bookmarkCmd)
	RootCmd.AddCommand(tagCmd)
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if err := config.InitConfig(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not initialize config: %v\n", err)
	}
}

// loadSettings reads the active config and applies any --db/--root
// overrides from the command line.
func loadSettings() (config.Settings, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return config.Settings{}, err
	}
	if dbPathFlag != "" {
		settings.DBPath = dbPathFlag
	}
	if rootDirFlag != "" {
		settings.RootDir = rootDirFlag
	}
	if settings.DBPath == "" {
		exitWith(exitConfigError, fmt.Errorf("db_path is required (set it in config.yaml or pass --db)"))
	}
	return settings, nil
}

func statusPathFor(dbPath string) string {
	return dbPath + ".status.json"
}

func logPathFor(dbPath string) string {
	return dbPath + ".log"
}

// openRepository loads settings and opens the repository, exiting the
// process with the documented exit codes on failure (2 config, 3 DB bootstrap,
// 4 unrecoverable FTS corruption) rather than returning, since every CLI
// command needs identical handling here.
func openRepository() (config.Settings, *repository.Repository) {
	settings, err := loadSettings()
	if err != nil {
		exitWith(exitConfigError, fmt.Errorf("load settings: %w", err))
	}
	if err := os.MkdirAll(filepath.Dir(settings.DBPath), 0o755); err != nil && settings.DBPath != "" {
		exitWith(exitDBError, fmt.Errorf("create db directory: %w", err))
	}

	// Once the db location is known, upgrade the console-only bootstrap
	// logger to one that also writes the rotating log file next to it.
	logger = logging.New(logPathFor(settings.DBPath))

	repo, err := repository.Open(settings.DBPath, settings.BusyTimeoutMs, logger)
	if err != nil {
		if isFtsCorruption(err) {
			exitWith(exitFtsCorruption, err)
		}
		exitWith(exitDBError, err)
	}
	return settings, repo
}

func exitWith(code int, err error) {
	color.Redf("Error: %v\n", err)
	os.Exit(code)
}

// isFtsCorruption reports whether err is the FtsCorruption kind
// surfaced by repository.Open's startup consistency check.
func isFtsCorruption(err error) bool {
	var pe *core.ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind == core.KindFtsCorruption
	}
	return false
}
