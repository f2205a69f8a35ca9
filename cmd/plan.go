package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/starforge/internal/ui"
)

var planCmd = &cobra.Command{
	Use:   "plan <component>...",
	Short: "Show the resolved installation order without installing",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	printer := ui.New()

	levels, err := buildCatalog(cfg, printer).InstallationOrder(args)
	if err != nil {
		return err
	}
	printer.Plan(levels)
	return nil
}
