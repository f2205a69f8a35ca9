package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/starforge/internal/metastore"
	"github.com/papapumpkin/starforge/internal/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog components and their installed state",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd)
	printer := ui.New()

	descs, err := buildCatalog(cfg, printer).Discover()
	if err != nil {
		return err
	}

	installed := map[string]string{}
	if dir, err := resolveInstallDir(cfg); err == nil {
		regs, err := metastore.New(dir).InstalledComponents()
		if err != nil {
			printer.Warn(err.Error())
		}
		for name, info := range regs {
			version, _ := info["version"].(string)
			installed[name] = version
		}
	}

	printer.ComponentList(descs, installed)
	return nil
}
