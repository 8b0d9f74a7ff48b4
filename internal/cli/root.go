// Package cli provides the command-line interface for gafscrape.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/raphaelgruber/gafscrape/internal/config"
	"github.com/raphaelgruber/gafscrape/internal/fetch"
	"github.com/raphaelgruber/gafscrape/internal/metrics"
	"github.com/raphaelgruber/gafscrape/internal/service"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string

	// Loaded in PersistentPreRunE
	cfg        config.Config
	runID      string
	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gafscrape",
	Short: "Build a browsable Gene Ontology annotation dataset",
	Long: `Gafscrape downloads the Gene Ontology and the per-organism gene
association (GAF) files, converts them to JSON, finds example genes for a
few GO terms in each organism, and writes a datasets.json manifest for the
browser front-end.

Downloads are cached in the download directory; a re-run after a failure
only fetches what is still missing.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if configPath != "" {
			var err error
			cfg, err = config.LoadFile(cfg, configPath)
			if err != nil {
				return err
			}
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		// The progress bar owns stdout; keep stderr logs to warnings while it runs
		stderrLevel := cfg.LogLevel
		if cmd == scrapeCmd && useProgressUI() && stderrLevel < slog.LevelWarn {
			stderrLevel = slog.LevelWarn
		}

		runID = uuid.New().String()[:8] // Short ID for convenience
		var logger *slog.Logger
		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel, stderrLevel, runID)
		slog.SetDefault(logger)
		return nil
	},
}

// newScrapeService wires the fetch cache and service from the loaded config.
func newScrapeService(collector *metrics.Collector) *service.ScrapeService {
	cache := fetch.New(fetch.Config{
		Dir:               cfg.DownloadDir,
		HTTPClient:        &http.Client{Timeout: cfg.HTTPTimeout},
		RequestsPerSecond: cfg.RateLimit,
		Timer:             collector,
	})

	return service.NewScrapeService(
		cache,
		layout(),
		service.Sources{
			GOURL:        cfg.GOURL,
			GAFURLPrefix: cfg.GAFURLPrefix,
			MetadataURL:  cfg.MetadataURL,
		},
		cfg.ExampleTerms,
		service.NewExcluder(cfg.ExtraExcludes),
		collector,
	)
}

func layout() service.Layout {
	return service.Layout{DeployDir: cfg.DeployDir, DownloadDir: cfg.DownloadDir}
}

// Execute adds all child commands to the root command and runs it. SIGINT and
// SIGTERM cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, os.Args[1:])
}

// execute runs the root command with args. The log file is closed on every
// return path, including command errors.
func execute(ctx context.Context, args []string) error {
	defer closeLog()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func closeLog() {
	if logCleanup == nil {
		return
	}
	if err := logCleanup(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
	}
	logCleanup = nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	// Add subcommands
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(resourcesCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
