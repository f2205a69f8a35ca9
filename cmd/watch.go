package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/starforge/internal/catalog"
	"github.com/papapumpkin/starforge/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the catalog for definition changes and re-validate",
	Long: `Monitors the components directory and re-runs graph validation when a
definition is added, edited, or removed. Intended as a dev loop for
component authors.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd)
	printer := ui.New()

	cat := buildCatalog(cfg, printer)
	watcher, err := catalog.NewWatcher(cfg.ComponentsDir)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	ctx, cancel := setupSignalContext(printer)
	defer cancel()

	printer.Info("watching " + cfg.ComponentsDir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-watcher.Changes:
			if !ok {
				return nil
			}
			name := change.Component
			if name == "" {
				name = change.File
			}
			switch change.Kind {
			case catalog.ChangeAdded:
				printer.WatchEvent("added", name)
			case catalog.ChangeRemoved:
				printer.WatchEvent("removed", name)
			default:
				printer.WatchEvent("modified", name)
			}

			cat.Reload()
			problems, err := cat.ValidateGraph()
			if err != nil {
				printer.Error(err.Error())
				continue
			}
			printer.CheckReport(problems)
		}
	}
}
