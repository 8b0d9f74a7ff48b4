package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/raphaelgruber/gafscrape/internal/metrics"
	"github.com/raphaelgruber/gafscrape/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	scrapeConcurrency int
	scrapeKeepGoing   bool
	scrapeDryRun      bool
	scrapeProgress    bool
	scrapeMetricsFile string
	scrapeStats       bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Download, convert and index all annotation datasets",
	Long: `Download the Gene Ontology and every organism's gene association file,
convert them to JSON under the deploy directory, and write datasets.json.

By default the first failing organism aborts the run and no manifest is
written. Use --keep-going to write a manifest over the organisms that
succeeded and report the failures.

Examples:
  gafscrape scrape
  gafscrape scrape --concurrency 8 --progress
  gafscrape scrape --keep-going --metrics-file /var/lib/node_exporter/gafscrape.prom
  gafscrape scrape --dry-run`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().IntVarP(&scrapeConcurrency, "concurrency", "j", 0, "organisms processed in parallel (default from config)")
	scrapeCmd.Flags().BoolVarP(&scrapeKeepGoing, "keep-going", "k", false, "write a manifest over successful organisms when some fail")
	scrapeCmd.Flags().BoolVar(&scrapeDryRun, "dry-run", false, "list the organisms that would be processed without converting anything")
	scrapeCmd.Flags().BoolVar(&scrapeProgress, "progress", false, "show a progress bar when attached to a terminal")
	scrapeCmd.Flags().StringVar(&scrapeMetricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")
	scrapeCmd.Flags().BoolVar(&scrapeStats, "stats", false, "print operation timings when done")
}

// useProgressUI reports whether the interactive progress bar should run.
func useProgressUI() bool {
	return scrapeProgress && !scrapeDryRun && term.IsTerminal(int(os.Stdout.Fd()))
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	collector := metrics.NewCollector()
	svc := newScrapeService(collector)

	concurrency := scrapeConcurrency
	if concurrency <= 0 {
		concurrency = cfg.Concurrency
	}
	opts := service.ScrapeOptions{
		Concurrency: concurrency,
		KeepGoing:   scrapeKeepGoing,
		DryRun:      scrapeDryRun,
	}

	var (
		result *service.ScrapeResult
		err    error
	)
	if useProgressUI() {
		result, err = runWithProgress(ctx, svc, opts)
	} else {
		result, err = svc.Run(ctx, opts)
	}

	if scrapeMetricsFile != "" {
		if werr := collector.WriteTextfile(scrapeMetricsFile); werr != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", werr)
		}
	}
	if err != nil {
		return err
	}

	if scrapeDryRun {
		printDryRun(svc, result)
		return nil
	}

	fmt.Printf("Wrote %s (%d organisms, %d excluded)\n", result.ManifestPath, len(result.Manifest.Organisms), len(result.Excluded))
	if scrapeStats {
		fmt.Println()
		printStats(collector.Snapshot())
	}

	if len(result.Failed) > 0 {
		fmt.Fprintf(os.Stderr, "\nFailed organisms (%d):\n", len(result.Failed))
		for _, f := range result.Failed {
			fmt.Fprintf(os.Stderr, "  • %s: %v\n", f.Resource.ID, f.Err)
		}
		return errors.New("some organisms failed; manifest covers the rest")
	}
	return nil
}

func printDryRun(svc *service.ScrapeService, result *service.ScrapeResult) {
	fmt.Printf("Dry run - would process %d organisms (%d excluded):\n", len(result.Included), len(result.Excluded))
	for _, r := range result.Included {
		fmt.Printf("  %-20s %s\n", r.ID, svc.ResourceURL(r))
	}
}

func printStats(snap metrics.Snapshot) {
	fmt.Printf("Run Statistics (%.1fs)\n", snap.UptimeSeconds)
	fmt.Printf("═══════════════════════════════════════\n")
	fmt.Printf("Organisms: %d ok, %d failed, %d excluded\n\n", snap.ResourcesOK, snap.ResourcesFailed, snap.ResourcesExcluded)

	if len(snap.Operations) == 0 {
		return
	}
	fmt.Printf("%-20s %8s %10s %10s %10s\n", "OPERATION", "COUNT", "AVG(ms)", "MIN(ms)", "MAX(ms)")
	for _, op := range snap.Operations {
		fmt.Printf("%-20s %8d %10.1f %10d %10d\n", op.Op, op.Count, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}
}
