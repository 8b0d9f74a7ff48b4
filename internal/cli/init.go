package cli

import (
	"fmt"

	"github.com/raphaelgruber/gafscrape/internal/service"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the deploy and download directories",
	Long: `Create the deploy directory (with its go/ and gaf/ subdirectories) and
the download cache directory. Existing directories are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l := layout()
		if err := service.Bootstrap(l); err != nil {
			return err
		}
		fmt.Printf("initialized %s and %s\n", l.DeployDir, l.DownloadDir)
		return nil
	},
}
