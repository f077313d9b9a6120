package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Rohianon/chatcommerce/cmd/botctl/internal/output"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Product catalog commands",
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop the cached product catalog",
	Long:  "Force the bot to reload data plans and gift card rates on the next request. Requires the admin role.",
	RunE:  runInvalidate,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(invalidateCmd)
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	if err := c.InvalidateCatalog(); err != nil {
		output.Error(err.Error())
		return nil
	}

	output.Success("Catalog cache invalidated")
	return nil
}
