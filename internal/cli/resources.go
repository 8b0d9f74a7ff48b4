package cli

import (
	"fmt"

	"github.com/raphaelgruber/gafscrape/internal/metrics"
	"github.com/raphaelgruber/gafscrape/internal/service"
	"github.com/spf13/cobra"
)

var resourcesAll bool

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "List organisms from the annotation metadata feed",
	Long: `Fetch the annotation metadata feed and list its organisms, marking the
ones the scrape would skip.

Examples:
  gafscrape resources
  gafscrape resources --all`,
	Args: cobra.NoArgs,
	RunE: runResources,
}

func init() {
	resourcesCmd.Flags().BoolVarP(&resourcesAll, "all", "a", false, "also list excluded organisms")
}

func runResources(cmd *cobra.Command, args []string) error {
	if err := service.Bootstrap(layout()); err != nil {
		return err
	}

	svc := newScrapeService(metrics.NewCollector())
	resources, err := svc.LoadResources(cmd.Context())
	if err != nil {
		return err
	}

	excluder := service.NewExcluder(cfg.ExtraExcludes)

	fmt.Printf("%-24s %-9s %s\n", "ID", "STATUS", "LABEL")
	fmt.Println("------------------------------------------------------------------------")

	included := 0
	for _, r := range resources {
		status := "included"
		if excluder.Skip(r.ID) {
			if !resourcesAll {
				continue
			}
			status = "excluded"
		} else {
			included++
		}
		fmt.Printf("%-24s %-9s %s\n", r.ID, status, r.Label)
	}

	fmt.Printf("\n%d of %d organisms included\n", included, len(resources))
	return nil
}
