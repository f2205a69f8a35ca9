package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/starforge/internal/metastore"
	"github.com/papapumpkin/starforge/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <host-config>",
	Short: "Move legacy component metadata out of a host config file",
	Long: `Extracts component registration keys that older releases stored inside
the host application's own config file, merges them into the dedicated
metadata store, and rewrites the host config without them. The host
config is backed up beside itself first.`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	printer := ui.New()

	installDir, err := resolveInstallDir(cfg)
	if err != nil {
		return err
	}

	migrated, err := metastore.New(installDir).MigrateLegacy(args[0])
	if err != nil {
		return err
	}
	if !migrated {
		printer.Info("nothing to migrate")
		return nil
	}
	printer.Info("migrated legacy metadata into " + metastore.FileName)
	return nil
}
