package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/starforge/internal/history"
	"github.com/papapumpkin/starforge/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent install, update, and uninstall batches",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of batches to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd)
	printer := ui.New()

	installDir, err := resolveInstallDir(cfg)
	if err != nil {
		return err
	}

	journal, err := history.Open(cmd.Context(), filepath.Join(installDir, history.FileName))
	if err != nil {
		return err
	}
	defer journal.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	batches, err := journal.RecentBatches(cmd.Context(), limit)
	if err != nil {
		return err
	}
	printer.HistoryList(batches)
	return nil
}
